package identity

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// CanAssign reports whether the acting user may create (or remove) an
// assignment of roleName at scope (domain, tenantID). The bootstrap root
// identity is always authorized; everyone else must already hold the
// candidate role in the target context, which folds the Root super-role in
// for free since Root resolves to the entire catalogue.
func (s *Service) CanAssign(ctx context.Context, actingUserID, roleName string, domain, tenantID *string) (bool, error) {
	if s.IsBootstrapIdentity(actingUserID) {
		return true, nil
	}
	effective, err := s.EffectiveRolesFor(ctx, actingUserID, domain, tenantID)
	if err != nil {
		return false, err
	}
	return slices.Contains(effective, roleName), nil
}

// CreateAssignment grants roleID to userID at scope (domain, tenantID) on
// behalf of actingUserID.
//
// A tenant-scoped assignment always lives in the tenant's home domain: a
// missing domain is filled in from the tenant, a contradicting one fails
// with ErrInvalidScope. Uniqueness over (user, role, domain, tenant) with
// NULL-aware equality is enforced by the store's atomic conditional insert.
func (s *Service) CreateAssignment(ctx context.Context, actingUserID, userID, roleID string, domain, tenantID *string) (*RoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: user and role are required", ErrInvalidInput)
	}

	if tenantID != nil {
		tenant, err := s.store.Tenants().Find(ctx, *tenantID)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: tenant %s has no resolvable domain", ErrInvalidScope, *tenantID)
			}
			return nil, err
		}
		if domain == nil {
			domain = &tenant.Domain
		} else if *domain != tenant.Domain {
			return nil, fmt.Errorf("%w: tenant %s belongs to domain %s, not %s",
				ErrInvalidScope, tenant.ID, tenant.Domain, *domain)
		}
	}

	role, err := s.store.Roles().Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Users().Find(ctx, userID); err != nil {
		return nil, err
	}

	ok, err := s.CanAssign(ctx, actingUserID, role.Name, domain, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s not authorized in requested context", ErrAccessDenied, actingUserID)
	}

	assignment := &RoleAssignment{
		ID:       uuid.NewString(),
		UserID:   userID,
		RoleID:   role.ID,
		Role:     role.Name,
		Domain:   domain,
		TenantID: tenantID,
	}
	if err := s.store.Assignments().Insert(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// RemoveAssignment deletes the assignment row identified by the scoped key.
// Deliberately a weaker gate than creation: the acting user needs modify
// access to the target user, not authority over the role's scope.
func (s *Service) RemoveAssignment(ctx context.Context, actingUserID, userID, roleID string, domain, tenantID *string) error {
	target, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.canModifyUser(ctx, actingUserID, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %s may not modify user %s", ErrAccessDenied, actingUserID, userID)
	}
	return s.store.Assignments().Delete(ctx, userID, roleID, domain, tenantID)
}

// canModifyUser gates generic mutation of a user record: the bootstrap
// identity, the user themselves, or anyone holding Root or Administrator in
// the target user's home scope.
func (s *Service) canModifyUser(ctx context.Context, actingUserID string, target *User) (bool, error) {
	if s.IsBootstrapIdentity(actingUserID) {
		return true, nil
	}
	if actingUserID == target.ID {
		return true, nil
	}
	effective, err := s.EffectiveRolesFor(ctx, actingUserID, target.Domain, target.TenantID)
	if err != nil {
		return false, err
	}
	return slices.Contains(effective, RoleRoot) || slices.Contains(effective, RoleAdministrator), nil
}
