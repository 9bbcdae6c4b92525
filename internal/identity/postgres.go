package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrForeignKeyViolation = "23503"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The role_assignments table
// carries a UNIQUE NULLS NOT DISTINCT index over the scoped key, so the
// uniqueness invariant is enforced inside a single conditional insert
// instead of a racy check-then-insert.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users() UserStore             { return &userStore{db: s.db} }
func (s *PGStore) Domains() DomainStore         { return &domainStore{db: s.db} }
func (s *PGStore) Tenants() TenantStore         { return &tenantStore{db: s.db} }
func (s *PGStore) Roles() RoleStore             { return &roleStore{db: s.db} }
func (s *PGStore) Assignments() AssignmentStore { return &assignmentStore{db: s.db} }

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, tag, domain, tenant_id, username, coalesce(password_hash, ''),
	coalesce(email, ''), coalesce(name, ''), enabled, roaming, region, confederation,
	last_login, created_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		u.CreatedAt = createdAt
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, tag, domain, tenant_id, username, password_hash,
			email, name, enabled, roaming, region, confederation, created_at)
		values ($1, $2, $3, $4, $5, nullif($6, ''), nullif($7, ''), nullif($8, ''),
			$9, $10, $11, $12, $13)
	`, u.ID, u.Tag, u.Domain, u.TenantID, u.Username, u.PasswordHash,
		u.Email, u.Name, u.Enabled, u.Roaming, u.Region, u.Confederation, createdAt)
	return mapPgError(err)
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *userStore) FindByUsername(ctx context.Context, username string, domain *string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where username = $1 and domain is not distinct from $2
	`, username, domain)
	return scanUser(row)
}

func (s *userStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `update users set last_login = $2 where id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `update users set enabled = $2 where id = $1`, id, enabled)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Tag, &u.Domain, &u.TenantID, &u.Username, &u.PasswordHash,
		&u.Email, &u.Name, &u.Enabled, &u.Roaming, &u.Region, &u.Confederation,
		&u.LastLogin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Domain store --------------------------------------------------------------

type domainStore struct{ db *sql.DB }

func (s *domainStore) Create(ctx context.Context, d *Domain) error {
	_, err := s.db.ExecContext(ctx,
		`insert into domains (id, name) values ($1, $2)`, d.ID, d.Name)
	return mapPgError(err)
}

func (s *domainStore) Find(ctx context.Context, name string) (*Domain, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at from domains where name = $1`, name)
	var d Domain
	if err := row.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *domainStore) List(ctx context.Context) ([]Domain, error) {
	return s.collect(ctx, `select id, name, created_at from domains order by name`)
}

func (s *domainStore) ListForUser(ctx context.Context, userID string) ([]Domain, error) {
	return s.collect(ctx, `
		select distinct d.id, d.name, d.created_at
		from domains d
		join role_assignments ra on ra.user_id = $1
			and (ra.domain = d.name
				or (ra.domain is null and ra.tenant_id is null))
		order by d.name
	`, userID)
}

func (s *domainStore) collect(ctx context.Context, query string, args ...any) ([]Domain, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// Tenant store --------------------------------------------------------------

type tenantStore struct{ db *sql.DB }

func (s *tenantStore) Create(ctx context.Context, t *Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenants (id, name, domain, tenant_id) values ($1, $2, $3, $4)
	`, t.ID, t.Name, t.Domain, t.ParentID)
	return mapPgError(err)
}

func (s *tenantStore) Find(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, domain, tenant_id, created_at from tenants where id = $1
	`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.ParentID, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *tenantStore) List(ctx context.Context) ([]Tenant, error) {
	return s.collect(ctx, `
		select id, name, domain, tenant_id, created_at from tenants order by name
	`)
}

func (s *tenantStore) ListForUser(ctx context.Context, userID string) ([]Tenant, error) {
	// Tenant visibility follows scope semantics: a direct tenant grant, a
	// grant on the tenant's parent, a domain-wide grant, or a global grant.
	return s.collect(ctx, `
		select distinct t.id, t.name, t.domain, t.tenant_id, t.created_at
		from tenants t
		join role_assignments ra on ra.user_id = $1
			and ((ra.tenant_id = t.id and ra.domain = t.domain)
				or (ra.tenant_id = t.tenant_id and ra.domain = t.domain)
				or (ra.tenant_id is null and ra.domain = t.domain)
				or (ra.tenant_id is null and ra.domain is null))
		order by t.name
	`, userID)
}

func (s *tenantStore) collect(ctx context.Context, query string, args ...any) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.ParentID, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// Role store ----------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, r *Role) error {
	_, err := s.db.ExecContext(ctx, `
		insert into roles (id, name, description) values ($1, $2, nullif($3, ''))
	`, r.ID, r.Name, r.Description)
	return mapPgError(err)
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	return s.findBy(ctx, `id = $1`, id)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	return s.findBy(ctx, `name = $1`, name)
}

func (s *roleStore) findBy(ctx context.Context, cond string, arg any) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(description, ''), created_at from roles where `+cond, arg)
	var r Role
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *roleStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, coalesce(description, ''), created_at from roles order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Assignment store ----------------------------------------------------------

type assignmentStore struct{ db *sql.DB }

func (s *assignmentStore) Insert(ctx context.Context, a *RoleAssignment) error {
	res, err := s.db.ExecContext(ctx, `
		insert into role_assignments (id, user_id, role_id, domain, tenant_id)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, role_id, domain, tenant_id) do nothing
	`, a.ID, a.UserID, a.RoleID, a.Domain, a.TenantID)
	if err != nil {
		return mapPgError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateAssignment
	}
	return nil
}

func (s *assignmentStore) Delete(ctx context.Context, userID, roleID string, domain, tenantID *string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where user_id = $1 and role_id = $2
			and domain is not distinct from $3
			and tenant_id is not distinct from $4
	`, userID, roleID, domain, tenantID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *assignmentStore) ListByUser(ctx context.Context, userID string) ([]RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.user_id, a.role_id, coalesce(r.name, ''), a.domain, a.tenant_id, a.created_at
		from role_assignments a
		left join roles r on a.role_id = r.id
		where a.user_id = $1
		order by a.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.Role, &a.Domain, &a.TenantID, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// helpers -------------------------------------------------------------------

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrForeignKeyViolation {
		return ErrNotFound
	}
	return err
}
