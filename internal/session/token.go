package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "identra"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims is the wire form of a credential.
type Claims struct {
	Username      string            `json:"username"`
	Tag           string            `json:"tag,omitempty"`
	Domain        *string           `json:"domain,omitempty"`
	TenantID      *string           `json:"tenant_id,omitempty"`
	Roles         []string          `json:"roles"`
	Region        *string           `json:"region,omitempty"`
	Confederation *string           `json:"confederation,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LoginAt       *jwt.NumericDate  `json:"login_at,omitempty"`
	jwt.RegisteredClaims
}

// Sign serializes the credential into a signed HS256 token.
func (e *Engine) Sign(cred *Credential) (string, error) {
	if cred == nil || strings.TrimSpace(cred.UserID) == "" {
		return "", errors.New("session: credential without user id")
	}
	if len(e.secret) == 0 {
		return "", errors.New("session: token secret is not configured")
	}
	if cred.Revoked {
		return "", errors.New("session: refusing to sign a revoked credential")
	}

	now := e.now().UTC()
	claims := Claims{
		Username:      cred.Username,
		Tag:           cred.Tag,
		Domain:        cred.Domain,
		TenantID:      cred.TenantID,
		Roles:         cred.Roles,
		Region:        cred.Region,
		Confederation: cred.Confederation,
		Metadata:      cred.Metadata,
		LoginAt:       jwt.NewNumericDate(cred.LoginAt),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cred.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and claims and reconstructs the
// credential.
func (e *Engine) Parse(token string) (*Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	if len(e.secret) == 0 {
		return nil, errors.New("session: token secret is not configured")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return e.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return e.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims, e.now().UTC()); err != nil {
		return nil, ErrInvalidToken
	}

	cred := &Credential{
		UserID:        claims.Subject,
		Username:      claims.Username,
		Tag:           claims.Tag,
		Domain:        claims.Domain,
		TenantID:      claims.TenantID,
		Roles:         claims.Roles,
		Region:        claims.Region,
		Confederation: claims.Confederation,
		Metadata:      claims.Metadata,
		ExpiresAt:     claims.ExpiresAt.Time,
	}
	if claims.LoginAt != nil {
		cred.LoginAt = claims.LoginAt.Time
	}
	return cred, nil
}

func validateClaims(claims *Claims, now time.Time) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
