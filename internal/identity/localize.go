package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"identra.org/internal/obs"
)

// LocalizeParams describes an externally authenticated identity being
// reconciled against the local user table.
type LocalizeParams struct {
	Tag           string
	Username      string
	Domain        *string
	Region        *string
	Confederation *string
	// ActingUserID, when set, is the already-authenticated identity driving
	// this localization (renewals); it may re-localize its own record from
	// a foreign context.
	ActingUserID string
}

// Localize upserts the local user record for a federated identity. The
// first successful external authentication of a (domain, username) pair
// silently provisions a roaming user row; subsequent calls validate that
// the login's region/confederation does not collide with what the record
// is bound to.
func (s *Service) Localize(ctx context.Context, p LocalizeParams) (*User, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	existing, err := s.store.Users().FindByUsername(ctx, username, p.Domain)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	if existing != nil {
		if existing.Roaming {
			if conflicts(existing.Region, p.Region) || conflicts(existing.Confederation, p.Confederation) {
				return nil, fmt.Errorf("%w: username %s", ErrContextConflict, username)
			}
			return existing, nil
		}
		// A local-only identity: a login claiming a foreign region or
		// confederation may not shadow it unless it is the same record
		// re-localizing itself.
		foreign := (p.Region != nil && *p.Region != s.region) ||
			(p.Confederation != nil && *p.Confederation != s.confederation)
		if foreign && p.ActingUserID != existing.ID {
			return nil, fmt.Errorf("%w: local username exists for roaming user %s", ErrAccessDenied, username)
		}
		return existing, nil
	}

	tag := strings.TrimSpace(p.Tag)
	if tag == "" {
		tag = TagLocal
	}
	user := &User{
		ID:            uuid.NewString(),
		Tag:           tag,
		Domain:        p.Domain,
		Username:      username,
		Enabled:       true,
		Roaming:       true,
		Region:        p.Region,
		Confederation: p.Confederation,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	obs.ObserveLocalization()
	return user, nil
}

// conflicts reports whether two recorded context values are both set and
// disagree. Either side missing means "not bound yet" and is compatible.
func conflicts(recorded, offered *string) bool {
	return recorded != nil && *recorded != "" && offered != nil && *offered != "" && *recorded != *offered
}
