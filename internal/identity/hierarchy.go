package identity

import (
	"context"
	"fmt"
)

// AncestorChain walks parent links from tenantID up to its root and returns
// the visited tenant ids, ancestors first, the tenant itself last. A tenant
// with no parent (or one that does not exist) maps to itself, so a root's
// chain is just [tenantID].
//
// The walk keeps a visited set: revisiting any tenant other than through the
// root's self-mapping means the parent pointers form a cycle, which fails
// with ErrInvalidHierarchy rather than looping.
func (s *Service) AncestorChain(ctx context.Context, tenantID string) ([]string, error) {
	seen := map[string]struct{}{tenantID: {}}
	var chain []string

	cur := tenantID
	for {
		next, err := s.parentOrSelf(ctx, cur)
		if err != nil {
			return nil, err
		}
		if next == cur {
			break
		}
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("%w: tenant %s revisited", ErrInvalidHierarchy, next)
		}
		seen[next] = struct{}{}
		chain = append(chain, next)
		cur = next
	}

	return append(chain, tenantID), nil
}

// parentOrSelf resolves the parent tenant id, mapping roots and unknown ids
// to themselves. An absent row is deliberately not an error here: the walk
// treats it as "no parent".
func (s *Service) parentOrSelf(ctx context.Context, tenantID string) (string, error) {
	tenant, err := s.store.Tenants().Find(ctx, tenantID)
	switch {
	case err == nil:
		if tenant.ParentID != nil && *tenant.ParentID != "" {
			return *tenant.ParentID, nil
		}
		return tenantID, nil
	case isNotFound(err):
		return tenantID, nil
	default:
		return "", err
	}
}
