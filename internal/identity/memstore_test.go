package identity

import (
	"context"
	"fmt"
	"time"
)

// memStore is a test double implementing Store over maps. It mirrors the
// NULL-aware matching semantics the Postgres store gets from
// IS NOT DISTINCT FROM.
type memStore struct {
	users       []*User
	domains     []*Domain
	tenants     map[string]*Tenant
	roles       []*Role
	assignments []*RoleAssignment

	insertErr error
}

func newMemStore() *memStore {
	return &memStore{tenants: make(map[string]*Tenant)}
}

func (m *memStore) Users() UserStore             { return (*memUsers)(m) }
func (m *memStore) Domains() DomainStore         { return (*memDomains)(m) }
func (m *memStore) Tenants() TenantStore         { return (*memTenants)(m) }
func (m *memStore) Roles() RoleStore             { return (*memRoles)(m) }
func (m *memStore) Assignments() AssignmentStore { return (*memAssignments)(m) }

func (m *memStore) addTenant(id, domain string, parent *string) {
	m.tenants[id] = &Tenant{ID: id, Name: id, Domain: domain, ParentID: parent}
}

func (m *memStore) addRole(id, name string) {
	m.roles = append(m.roles, &Role{ID: id, Name: name})
}

func (m *memStore) addAssignment(userID, roleName string, domain, tenantID *string) {
	var roleID string
	for _, r := range m.roles {
		if r.Name == roleName {
			roleID = r.ID
		}
	}
	if roleID == "" {
		roleID = "role-" + roleName
		m.addRole(roleID, roleName)
	}
	m.assignments = append(m.assignments, &RoleAssignment{
		ID:     fmt.Sprintf("a%d", len(m.assignments)+1),
		UserID: userID, RoleID: roleID, Role: roleName,
		Domain: domain, TenantID: tenantID,
	})
}

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Username == u.Username && ptrEq(existing.Domain, u.Domain) {
			return fmt.Errorf("%w: username taken", ErrInvalidInput)
		}
	}
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindByUsername(_ context.Context, username string, domain *string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username && ptrEq(u.Domain, domain) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	for _, u := range m.users {
		if u.ID == id {
			t := at
			u.LastLogin = &t
			return nil
		}
	}
	return ErrNotFound
}

func (m *memUsers) SetEnabled(_ context.Context, id string, enabled bool) error {
	for _, u := range m.users {
		if u.ID == id {
			u.Enabled = enabled
			return nil
		}
	}
	return ErrNotFound
}

type memDomains memStore

func (m *memDomains) Create(_ context.Context, d *Domain) error {
	cp := *d
	m.domains = append(m.domains, &cp)
	return nil
}

func (m *memDomains) Find(_ context.Context, name string) (*Domain, error) {
	for _, d := range m.domains {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memDomains) List(_ context.Context) ([]Domain, error) {
	res := make([]Domain, 0, len(m.domains))
	for _, d := range m.domains {
		res = append(res, *d)
	}
	return res, nil
}

func (m *memDomains) ListForUser(ctx context.Context, userID string) ([]Domain, error) {
	var res []Domain
	for _, d := range m.domains {
		for _, a := range m.assignments {
			if a.UserID != userID {
				continue
			}
			if (a.Domain != nil && *a.Domain == d.Name) || (a.Domain == nil && a.TenantID == nil) {
				res = append(res, *d)
				break
			}
		}
	}
	return res, nil
}

type memTenants memStore

func (m *memTenants) Create(_ context.Context, t *Tenant) error {
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *memTenants) Find(_ context.Context, id string) (*Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenants) List(_ context.Context) ([]Tenant, error) {
	res := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		res = append(res, *t)
	}
	return res, nil
}

func (m *memTenants) ListForUser(ctx context.Context, userID string) ([]Tenant, error) {
	var res []Tenant
	for _, t := range m.tenants {
		for _, a := range m.assignments {
			if a.UserID != userID {
				continue
			}
			direct := a.TenantID != nil && *a.TenantID == t.ID
			parent := a.TenantID != nil && t.ParentID != nil && *a.TenantID == *t.ParentID
			domainWide := a.TenantID == nil && a.Domain != nil && *a.Domain == t.Domain
			global := a.TenantID == nil && a.Domain == nil
			if direct || parent || domainWide || global {
				res = append(res, *t)
				break
			}
		}
	}
	return res, nil
}

type memRoles memStore

func (m *memRoles) Create(_ context.Context, r *Role) error {
	cp := *r
	m.roles = append(m.roles, &cp)
	return nil
}

func (m *memRoles) Find(_ context.Context, id string) (*Role, error) {
	for _, r := range m.roles {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) FindByName(_ context.Context, name string) (*Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) List(_ context.Context) ([]Role, error) {
	res := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		res = append(res, *r)
	}
	return res, nil
}

type memAssignments memStore

func (m *memAssignments) Insert(_ context.Context, a *RoleAssignment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID &&
			ptrEq(existing.Domain, a.Domain) && ptrEq(existing.TenantID, a.TenantID) {
			return ErrDuplicateAssignment
		}
	}
	cp := *a
	m.assignments = append(m.assignments, &cp)
	return nil
}

func (m *memAssignments) Delete(_ context.Context, userID, roleID string, domain, tenantID *string) error {
	for i, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID && ptrEq(a.Domain, domain) && ptrEq(a.TenantID, tenantID) {
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memAssignments) ListByUser(_ context.Context, userID string) ([]RoleAssignment, error) {
	var res []RoleAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			res = append(res, *a)
		}
	}
	return res, nil
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func strptr(s string) *string { return &s }
