package identity

import (
	"context"
	"time"
)

// Store describes persistence operations required by the identity core.
// Implementations must treat NULL scope columns as matchable values: two
// assignments with the same user, role and a NULL domain are duplicates.
type Store interface {
	Users() UserStore
	Domains() DomainStore
	Tenants() TenantStore
	Roles() RoleStore
	Assignments() AssignmentStore
}

// UserStore manages user records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	// FindByUsername resolves a user by (domain, username); a nil domain
	// matches only rows whose domain column is NULL.
	FindByUsername(ctx context.Context, username string, domain *string) (*User, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// DomainStore manages domain namespaces.
type DomainStore interface {
	Create(ctx context.Context, d *Domain) error
	Find(ctx context.Context, name string) (*Domain, error)
	List(ctx context.Context) ([]Domain, error)
	// ListForUser returns domains the user holds any assignment in; a
	// global assignment makes every domain visible.
	ListForUser(ctx context.Context, userID string) ([]Domain, error)
}

// TenantStore manages tenant records and parent links.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	Find(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	// ListForUser returns tenants reachable through the user's assignment
	// set: direct tenant grants, their immediate children, and every tenant
	// of a domain the user is domain- or globally-scoped into.
	ListForUser(ctx context.Context, userID string) ([]Tenant, error)
}

// RoleStore manages the role catalogue.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
}

// AssignmentStore manages role assignment rows.
type AssignmentStore interface {
	// Insert persists the assignment atomically, returning
	// ErrDuplicateAssignment when a row with the same
	// (user_id, role_id, domain, tenant_id) already exists. NULLs compare
	// equal for this check.
	Insert(ctx context.Context, a *RoleAssignment) error
	// Delete removes the row matching the scoped key with NULL-aware
	// equality; ErrNotFound when nothing matched.
	Delete(ctx context.Context, userID, roleID string, domain, tenantID *string) error
	// ListByUser returns the user's full assignment set with role names
	// resolved.
	ListByUser(ctx context.Context, userID string) ([]RoleAssignment, error)
}
