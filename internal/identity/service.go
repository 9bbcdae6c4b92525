package identity

import (
	"strings"
	"time"
)

const (
	defaultRegion        = "region1"
	defaultConfederation = "confederation1"
)

// Service provides scoped RBAC resolution, assignment authority checks and
// identity localization on top of a Store.
type Service struct {
	store Store
	now   func() time.Time

	// bootstrapUserID is the pre-seeded root identity that bypasses the
	// assignment authority check. Comes from configuration, never from a
	// literal inside authorization logic.
	bootstrapUserID string

	// Local node context used when deciding whether a roaming login may
	// shadow a local account.
	region        string
	confederation string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithBootstrapUser sets the well-known root user id.
func WithBootstrapUser(id string) ServiceOption {
	return func(s *Service) {
		s.bootstrapUserID = strings.TrimSpace(id)
	}
}

// WithLocalContext sets the region and confederation this node serves.
func WithLocalContext(region, confederation string) ServiceOption {
	return func(s *Service) {
		if region = strings.TrimSpace(region); region != "" {
			s.region = region
		}
		if confederation = strings.TrimSpace(confederation); confederation != "" {
			s.confederation = confederation
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) *Service {
	svc := &Service{
		store:         store,
		now:           time.Now,
		region:        defaultRegion,
		confederation: defaultConfederation,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Store exposes the underlying persistence for collaborators that need
// direct reads (listing views, the session engine).
func (s *Service) Store() Store {
	return s.store
}

// IsBootstrapIdentity reports whether userID is the configured bootstrap
// root identity.
func (s *Service) IsBootstrapIdentity(userID string) bool {
	return s.bootstrapUserID != "" && userID == s.bootstrapUserID
}
