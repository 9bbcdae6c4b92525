// Package session drives the credential object through its lifecycle:
// login, re-scoping to a domain or tenant, renewal and revocation.
package session

import (
	"context"
	"time"
)

// State is the credential's position in the scoping lifecycle.
type State string

const (
	StateUnscoped State = "unscoped"
	StateDomain   State = "domain"
	StateTenant   State = "tenant"
	StateRevoked  State = "revoked"
)

// Credential is the ephemeral per-session authorization context. It is
// created by Login, narrowed by Scope, refreshed by Renew and discarded on
// revocation. Roles always hold the effective role names for the current
// (Domain, TenantID) scope and nothing broader.
type Credential struct {
	UserID        string            `json:"user_id"`
	Username      string            `json:"username"`
	Tag           string            `json:"tag"`
	Domain        *string           `json:"domain,omitempty"`
	TenantID      *string           `json:"tenant_id,omitempty"`
	Roles         []string          `json:"roles"`
	Region        *string           `json:"region,omitempty"`
	Confederation *string           `json:"confederation,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LoginAt       time.Time         `json:"login_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Revoked       bool              `json:"-"`
}

// State reports the credential's lifecycle state.
func (c *Credential) State() State {
	switch {
	case c.Revoked:
		return StateRevoked
	case c.TenantID != nil:
		return StateTenant
	case c.Domain != nil:
		return StateDomain
	default:
		return StateUnscoped
	}
}

// HasRole reports whether the credential carries the role in its current
// scope.
func (c *Credential) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type credentialContextKey struct{}

// ContextWithCredential attaches the authenticated credential to the context.
func ContextWithCredential(ctx context.Context, cred *Credential) context.Context {
	if cred == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialContextKey{}, cred)
}

// CredentialFromContext extracts the credential from the context.
func CredentialFromContext(ctx context.Context) (*Credential, bool) {
	if ctx == nil {
		return nil, false
	}
	cred, ok := ctx.Value(credentialContextKey{}).(*Credential)
	if !ok || cred == nil {
		return nil, false
	}
	return cred, true
}
