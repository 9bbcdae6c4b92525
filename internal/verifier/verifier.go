// Package verifier holds the pluggable credential verification drivers the
// session engine delegates to. Drivers are registered under a configuration
// name at startup; each driver exposes one entry point per supported
// authentication method.
package verifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"identra.org/internal/identity"
)

// Metadata is driver-specific data returned on successful verification
// (upstream token ids, expiry hints) and carried into the credential.
type Metadata map[string]string

// Verifier validates external credentials for a (username, domain) pair.
type Verifier interface {
	// Password verifies the "password" authentication method.
	// Implementations fail with identity.ErrAccessDenied when the supplied
	// credentials do not check out.
	Password(ctx context.Context, username string, domain *string, credentials map[string]string) (Metadata, error)
}

// Registry resolves verifiers by driver name. The set is fixed at startup;
// lookups after that are read-only and safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Verifier)}
}

// Register adds a driver under name, replacing any previous registration.
func (r *Registry) Register(name string, v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = v
}

// Get returns the driver registered under name.
func (r *Registry) Get(name string) (Verifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: auth driver %q", identity.ErrNotFound, name)
	}
	return v, nil
}

// Names lists registered driver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
