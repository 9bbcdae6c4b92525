package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"identra.org/internal/identity"
	"identra.org/internal/session"
	"identra.org/internal/verifier"
)

const bootstrapID = "00000000-0000-0000-0000-000000000000"

// fakeStore backs the API tests with an in-memory identity.Store.
type fakeStore struct {
	users       map[string]*identity.User
	domains     []identity.Domain
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
		if u.Username != username {
			continue
		}
		switch {
		case u.Domain == nil && domain == nil:
		case u.Domain != nil && domain != nil && *u.Domain == *domain:
		default:
			continue
		}
		cp := *u
		return &cp, nil
	}
	return nil, identity.ErrNotFound
}

func (f *fakeUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	if u, ok := f.users[id]; ok {
		t := at
		u.LastLogin = &t
		return nil
	}
	return identity.ErrNotFound
}

func (f *fakeUsers) SetEnabled(_ context.Context, id string, enabled bool) error {
	if u, ok := f.users[id]; ok {
		u.Enabled = enabled
		return nil
	}
	return identity.ErrNotFound
}

type fakeDomains fakeStore

func (f *fakeDomains) Create(_ context.Context, d *identity.Domain) error {
	f.domains = append(f.domains, *d)
	return nil
}

func (f *fakeDomains) Find(_ context.Context, name string) (*identity.Domain, error) {
	for _, d := range f.domains {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeDomains) List(_ context.Context) ([]identity.Domain, error) {
	return append([]identity.Domain(nil), f.domains...), nil
}

func (f *fakeDomains) ListForUser(_ context.Context, userID string) ([]identity.Domain, error) {
	var res []identity.Domain
	for _, d := range f.domains {
		for _, a := range f.assignments {
			if a.UserID == userID && a.Domain != nil && *a.Domain == d.Name {
				res = append(res, d)
				break
			}
		}
	}
	return res, nil
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

func (f *fakeTenants) List(_ context.Context) ([]identity.Tenant, error) {
	res := make([]identity.Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		res = append(res, *t)
	}
	return res, nil
}

func (f *fakeTenants) ListForUser(context.Context, string) ([]identity.Tenant, error) {
	return nil, nil
}

type fakeRoles fakeStore

func (f *fakeRoles) Create(_ context.Context, r *identity.Role) error {
	f.roles = append(f.roles, *r)
	return nil
}

func (f *fakeRoles) Find(_ context.Context, id string) (*identity.Role, error) {
	for _, r := range f.roles {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeRoles) FindByName(_ context.Context, name string) (*identity.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeRoles) List(_ context.Context) ([]identity.Role, error) {
	return append([]identity.Role(nil), f.roles...), nil
}

type fakeAssignments fakeStore

func (f *fakeAssignments) Insert(_ context.Context, a *identity.RoleAssignment) error {
	for _, existing := range f.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID &&
			samePtr(existing.Domain, a.Domain) && samePtr(existing.TenantID, a.TenantID) {
			return identity.ErrDuplicateAssignment
		}
	}
	f.assignments = append(f.assignments, *a)
	return nil
}

func (f *fakeAssignments) Delete(_ context.Context, userID, roleID string, domain, tenantID *string) error {
	for i, a := range f.assignments {
		if a.UserID == userID && a.RoleID == roleID && samePtr(a.Domain, domain) && samePtr(a.TenantID, tenantID) {
			f.assignments = append(f.assignments[:i], f.assignments[i+1:]...)
			return nil
		}
	}
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

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sptr(s string) *string { return &s }

// newTestAPI wires the fake store into a full API with the local password
// verifier and a deterministic token secret.
func newTestAPI(t *testing.T, store *fakeStore, opts ...Option) *API {
	t.Helper()
	idsvc := identity.NewService(store, identity.WithBootstrapUser(bootstrapID))
	registry := verifier.NewRegistry()
	registry.Register(verifier.DriverLocal, verifier.NewLocal(store.Users()))
	engine := session.NewEngine(idsvc, registry,
		session.WithTokenSecret("api-test-secret"),
		session.WithTTL(15*time.Minute),
	)
	return New(ReadyProbe{}, "test", idsvc, engine, opts...)
}

// seedLogin adds a local user with a bcrypt password so a real login flow can
// run end to end.
func seedLogin(t *testing.T, store *fakeStore, id, username, password string, domain *string) {
	t.Helper()
	hash, err := verifier.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store.users[id] = &identity.User{
		ID: id, Tag: "local", Username: username, Domain: domain,
		PasswordHash: hash, Enabled: true,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:4242"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// login runs the full POST /v1/token flow and returns the signed token.
func login(t *testing.T, handler http.Handler, username, password string, domain *string) (string, tokenResponse) {
	t.Helper()
	body := map[string]any{"username": username, "password": password}
	if domain != nil {
		body["domain"] = *domain
	}
	rr := doJSON(t, handler, http.MethodPost, "/v1/token", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp tokenResponse
	decodeBody(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("login returned empty token")
	}
	return resp.Token, resp
}
