package identity

import "time"

// Reserved role names. Holding Root in any applicable scope grants every
// role known to the system; Administrator grants assignment authority
// within its scope.
const (
	RoleRoot          = "Root"
	RoleAdministrator = "Administrator"
)

// TagLocal marks user rows provisioned directly by an administrator, as
// opposed to rows localized from an external authentication driver (which
// carry the driver name as tag).
const TagLocal = "local"

// User is an identity record. Users are disabled, never deleted: a user id
// referenced by audit history must stay resolvable.
type User struct {
	ID            string     `json:"id"`
	Tag           string     `json:"tag"`
	Domain        *string    `json:"domain,omitempty"`
	TenantID      *string    `json:"tenant_id,omitempty"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	Enabled       bool       `json:"enabled"`
	Roaming       bool       `json:"roaming"`
	Region        *string    `json:"region,omitempty"`
	Confederation *string    `json:"confederation,omitempty"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Domain is a flat namespace identified by name.
type Domain struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Tenant belongs to exactly one domain. ParentID, when set, links the tenant
// into a tree; parent chains must terminate at a root (no cycles).
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	ParentID  *string   `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a named grant. Role names form the vocabulary of effective-role
// resolution; the catalogue is global, not per domain.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoleAssignment binds a user to a role within a scope. The (Domain,
// TenantID) pair reads as:
//
//	(nil, nil)  global, applies in every context
//	(D, nil)    any tenant within domain D
//	(D, T)      tenant T and all of T's descendants within domain D
//
// Rows are immutable; they are inserted and deleted, never updated.
type RoleAssignment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	Role      string    `json:"role,omitempty"`
	Domain    *string   `json:"domain,omitempty"`
	TenantID  *string   `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Scope is an authorization context: the (domain, tenant) pair a request or
// session operates in. Nil fields widen the scope.
type Scope struct {
	Domain   *string `json:"domain,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`
}

// IsGlobal reports whether the scope is unbounded.
func (s Scope) IsGlobal() bool {
	return s.Domain == nil && s.TenantID == nil
}
