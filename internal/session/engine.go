package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"identra.org/internal/identity"
	"identra.org/internal/verifier"
)

const defaultTTL = 15 * time.Minute

// Engine issues, re-scopes, renews and revokes credentials. It delegates
// credential verification to the configured driver, then reconciles the
// identity through the localizer and resolves effective roles.
type Engine struct {
	identity  *identity.Service
	verifiers *verifier.Registry
	driver    string
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
}

// EngineOption configures Engine behavior.
type EngineOption func(*Engine)

// WithTTL sets the credential lifetime applied on login and renew.
func WithTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithDriver selects the verification driver used for logins.
func WithDriver(name string) EngineOption {
	return func(e *Engine) {
		if name = strings.TrimSpace(name); name != "" {
			e.driver = name
		}
	}
}

// WithTokenSecret sets the HS256 signing secret for credential transport.
func WithTokenSecret(secret string) EngineOption {
	return func(e *Engine) {
		if secret != "" {
			e.secret = []byte(secret)
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(idsvc *identity.Service, verifiers *verifier.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		identity:  idsvc,
		verifiers: verifiers,
		driver:    verifier.DriverLocal,
		ttl:       defaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoginRequest carries a login attempt.
type LoginRequest struct {
	Username      string
	Domain        *string
	Region        *string
	Confederation *string
	Credentials   map[string]string
}

// Login verifies the external credentials, localizes the identity and
// issues an unscoped (or domain-scoped, when a domain was supplied)
// credential. The roles field holds the union of globally granted roles and
// roles granted for the requested domain. The credential is materialized
// only after every resolution step has succeeded, so a failed or cancelled
// login leaves no partial session state behind.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*Credential, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", identity.ErrInvalidInput)
	}

	v, err := e.verifiers.Get(e.driver)
	if err != nil {
		return nil, err
	}
	meta, err := v.Password(ctx, username, req.Domain, req.Credentials)
	if err != nil {
		return nil, err
	}

	user, err := e.identity.Localize(ctx, identity.LocalizeParams{
		Tag:           e.driver,
		Username:      username,
		Domain:        req.Domain,
		Region:        req.Region,
		Confederation: req.Confederation,
	})
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, fmt.Errorf("%w: user %s is disabled", identity.ErrAccessDenied, user.ID)
	}

	assignments, err := e.identity.Store().Assignments().ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	global, err := e.identity.EffectiveRoles(ctx, assignments, nil, nil)
	if err != nil {
		return nil, err
	}
	roles := global
	if req.Domain != nil {
		domainRoles, err := e.identity.EffectiveRoles(ctx, assignments, req.Domain, nil)
		if err != nil {
			return nil, err
		}
		roles = unionRoles(global, domainRoles)
	}

	now := e.now().UTC()
	if err := e.identity.Store().Users().SetLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}

	return &Credential{
		UserID:        user.ID,
		Username:      user.Username,
		Tag:           user.Tag,
		Domain:        req.Domain,
		Roles:         roles,
		Region:        user.Region,
		Confederation: user.Confederation,
		Metadata:      meta,
		LoginAt:       now,
		ExpiresAt:     now.Add(e.ttl),
	}, nil
}

// Scope narrows (or widens) the credential to the requested context.
// Effective roles are replaced, not merged: after scoping to (D, T) the
// credential carries exactly the roles that apply at (D, T). Scoping to a
// tenant resolves the tenant's home domain and overrides any supplied
// domain with it, so the credential can never report a tenant outside its
// domain.
func (e *Engine) Scope(ctx context.Context, cred *Credential, domain, tenantID *string) error {
	if err := e.usable(cred); err != nil {
		return err
	}

	if tenantID != nil {
		tenant, err := e.identity.Store().Tenants().Find(ctx, *tenantID)
		if err != nil {
			return err
		}
		domain = &tenant.Domain
	}

	roles, err := e.identity.EffectiveRolesFor(ctx, cred.UserID, domain, tenantID)
	if err != nil {
		return err
	}

	cred.Domain = domain
	cred.TenantID = tenantID
	cred.Roles = roles
	return nil
}

// Renew re-validates the underlying identity and extends the credential's
// lifetime. A user record created after the session's login timestamp means
// the original identity was deleted and re-provisioned under the same
// username; such sessions are revoked and the client must log in again. Any
// renewal failure leaves the credential revoked.
func (e *Engine) Renew(ctx context.Context, cred *Credential) error {
	if err := e.usable(cred); err != nil {
		return err
	}

	user, err := e.identity.Store().Users().Find(ctx, cred.UserID)
	if err != nil {
		cred.Revoked = true
		if errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("%w: identity no longer exists", identity.ErrAccessDenied)
		}
		return err
	}
	if !user.Enabled {
		cred.Revoked = true
		return fmt.Errorf("%w: user %s is disabled", identity.ErrAccessDenied, user.ID)
	}
	if user.CreatedAt.After(cred.LoginAt) {
		cred.Revoked = true
		return fmt.Errorf("%w: identity was re-provisioned after login", identity.ErrAccessDenied)
	}

	if _, err := e.identity.Localize(ctx, identity.LocalizeParams{
		Tag:           user.Tag,
		Username:      user.Username,
		Domain:        user.Domain,
		Region:        cred.Region,
		Confederation: cred.Confederation,
		ActingUserID:  user.ID,
	}); err != nil {
		cred.Revoked = true
		return err
	}

	cred.ExpiresAt = e.now().UTC().Add(e.ttl)
	return nil
}

// Revoke transitions the credential to its terminal state. Every engine
// operation rejects a revoked credential.
func (e *Engine) Revoke(cred *Credential) {
	if cred != nil {
		cred.Revoked = true
	}
}

func (e *Engine) usable(cred *Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: no credential", identity.ErrAccessDenied)
	}
	if cred.Revoked {
		return fmt.Errorf("%w: credential is revoked", identity.ErrAccessDenied)
	}
	if !cred.ExpiresAt.IsZero() && e.now().UTC().After(cred.ExpiresAt) {
		cred.Revoked = true
		return fmt.Errorf("%w: credential expired", identity.ErrAccessDenied)
	}
	return nil
}

func unionRoles(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, r := range a {
		set[r] = struct{}{}
	}
	for _, r := range b {
		set[r] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
