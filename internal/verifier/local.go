package verifier

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"identra.org/internal/identity"
)

// DriverLocal is the registry name of the built-in password verifier.
const DriverLocal = "local"

// Local verifies passwords against bcrypt hashes stored on local user rows.
// Roaming rows never carry a usable local password: they exist only as
// localized mirrors of externally authenticated identities.
type Local struct {
	users identity.UserStore
}

var _ Verifier = (*Local)(nil)

func NewLocal(users identity.UserStore) *Local {
	return &Local{users: users}
}

func (l *Local) Password(ctx context.Context, username string, domain *string, credentials map[string]string) (Metadata, error) {
	password := credentials["password"]
	if password == "" {
		return nil, fmt.Errorf("%w: no password provided", identity.ErrAccessDenied)
	}

	user, err := l.users.FindByUsername(ctx, username, domain)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", identity.ErrAccessDenied)
		}
		return nil, err
	}
	if !user.Enabled || user.Roaming || user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: invalid credentials", identity.ErrAccessDenied)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", identity.ErrAccessDenied)
	}
	return Metadata{}, nil
}

// HashPassword hashes a plaintext password for storage on a local user row.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", identity.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
