package session

import (
	"context"
	"time"

	"identra.org/internal/identity"
)

// fakeStore is a minimal in-memory identity.Store for engine tests.
type fakeStore struct {
	users       map[string]*identity.User
	tenants     map[string]*identity.Tenant
	roles       []identity.Role
	assignments []identity.RoleAssignment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*identity.User),
		tenants: make(map[string]*identity.Tenant),
	}
}

func (f *fakeStore) Users() identity.UserStore             { return (*fakeUsers)(f) }
func (f *fakeStore) Domains() identity.DomainStore         { return (*fakeDomains)(f) }
func (f *fakeStore) Tenants() identity.TenantStore         { return (*fakeTenants)(f) }
func (f *fakeStore) Roles() identity.RoleStore             { return (*fakeRoles)(f) }
func (f *fakeStore) Assignments() identity.AssignmentStore { return (*fakeAssignments)(f) }

func (f *fakeStore) addUser(u identity.User) {
	cp := u
	f.users[u.ID] = &cp
}

func (f *fakeStore) addTenant(id, domain string, parent *string) {
	f.tenants[id] = &identity.Tenant{ID: id, Name: id, Domain: domain, ParentID: parent}
}

func (f *fakeStore) grant(userID, role string, domain, tenantID *string) {
	f.roles = append(f.roles, identity.Role{ID: "role-" + role, Name: role})
	f.assignments = append(f.assignments, identity.RoleAssignment{
		ID:     "a-" + role,
		UserID: userID, RoleID: "role-" + role, Role: role,
		Domain: domain, TenantID: tenantID,
	})
}

type fakeUsers fakeStore

func (f *fakeUsers) Create(_ context.Context, u *identity.User) error {
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Find(_ context.Context, id string) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string, domain *string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Username == username && ptrsEqual(u.Domain, domain) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	t := at
	u.LastLogin = &t
	return nil
}

func (f *fakeUsers) SetEnabled(_ context.Context, id string, enabled bool) error {
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	u.Enabled = enabled
	return nil
}

type fakeDomains fakeStore

func (f *fakeDomains) Create(context.Context, *identity.Domain) error { return nil }
func (f *fakeDomains) Find(context.Context, string) (*identity.Domain, error) {
	return nil, identity.ErrNotFound
}
func (f *fakeDomains) List(context.Context) ([]identity.Domain, error) { return nil, nil }
func (f *fakeDomains) ListForUser(context.Context, string) ([]identity.Domain, error) {
	return nil, nil
}

type fakeTenants fakeStore

func (f *fakeTenants) Create(_ context.Context, t *identity.Tenant) error {
	cp := *t
	f.tenants[t.ID] = &cp
	return nil
}

func (f *fakeTenants) Find(_ context.Context, id string) (*identity.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) List(context.Context) ([]identity.Tenant, error) { return nil, nil }
func (f *fakeTenants) ListForUser(context.Context, string) ([]identity.Tenant, error) {
	return nil, nil
}

type fakeRoles fakeStore

func (f *fakeRoles) Create(context.Context, *identity.Role) error { return nil }

func (f *fakeRoles) Find(_ context.Context, id string) (*identity.Role, error) {
	for _, r := range f.roles {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeRoles) FindByName(_ context.Context, name string) (*identity.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			cp := r
			return &cp, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeRoles) List(context.Context) ([]identity.Role, error) {
	return append([]identity.Role(nil), f.roles...), nil
}

type fakeAssignments fakeStore

func (f *fakeAssignments) Insert(_ context.Context, a *identity.RoleAssignment) error {
	f.assignments = append(f.assignments, *a)
	return nil
}

func (f *fakeAssignments) Delete(context.Context, string, string, *string, *string) error {
	return identity.ErrNotFound
}

func (f *fakeAssignments) ListByUser(_ context.Context, userID string) ([]identity.RoleAssignment, error) {
	var res []identity.RoleAssignment
	for _, a := range f.assignments {
		if a.UserID == userID {
			res = append(res, a)
		}
	}
	return res, nil
}

func ptrsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ptr(s string) *string { return &s }
