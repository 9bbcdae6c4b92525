package identity

import (
	"context"
	"slices"
	"sort"
)

// EffectiveRoles computes the set of role names the assignment set grants in
// the requested (domain, tenantID) context. An assignment applies when:
//
//  1. it is global (NULL domain, NULL tenant), or
//  2. its domain matches the requested domain and it is not bound to a
//     tenant, or
//  3. both domain and tenant are requested, the domains match, and the
//     assignment's tenant appears in the requested tenant's ancestor chain
//     (a grant at a parent cascades to every descendant).
//
// Holding the Root role in an applicable scope short-circuits the
// accumulation: the full role catalogue is returned. The result is
// deduplicated and sorted.
func (s *Service) EffectiveRoles(ctx context.Context, assignments []RoleAssignment, domain, tenantID *string) ([]string, error) {
	var chain []string
	if tenantID != nil {
		var err error
		chain, err = s.AncestorChain(ctx, *tenantID)
		if err != nil {
			return nil, err
		}
	}

	set := make(map[string]struct{})
	for _, a := range assignments {
		if !assignmentApplies(a, domain, tenantID, chain) {
			continue
		}
		if a.Role == RoleRoot {
			return s.roleCatalogue(ctx)
		}
		if a.Role != "" {
			set[a.Role] = struct{}{}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// EffectiveRolesFor loads the user's assignment set and resolves it against
// the requested context.
func (s *Service) EffectiveRolesFor(ctx context.Context, userID string, domain, tenantID *string) ([]string, error) {
	assignments, err := s.store.Assignments().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.EffectiveRoles(ctx, assignments, domain, tenantID)
}

func assignmentApplies(a RoleAssignment, domain, tenantID *string, chain []string) bool {
	switch {
	case a.Domain == nil && a.TenantID == nil:
		return true
	case a.TenantID == nil:
		return domain != nil && *a.Domain == *domain
	case domain != nil && tenantID != nil && a.Domain != nil && *a.Domain == *domain:
		return slices.Contains(chain, *a.TenantID)
	default:
		return false
	}
}

func (s *Service) roleCatalogue(ctx context.Context) ([]string, error) {
	roles, err := s.store.Roles().List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names, nil
}
