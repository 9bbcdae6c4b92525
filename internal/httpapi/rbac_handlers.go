package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"identra.org/internal/audit"
	"identra.org/internal/identity"
	"identra.org/internal/obs"
)

// handleRBACDomains lists the domains the acting user may assign roles in.
// The bootstrap root identity can assign on any domain, so it sees all of
// them.
func (a *API) handleRBACDomains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}

	var (
		domains []identity.Domain
		err     error
	)
	if a.identity.IsBootstrapIdentity(cred.UserID) {
		domains, err = a.identity.Store().Domains().List(r.Context())
	} else {
		domains, err = a.identity.Store().Domains().ListForUser(r.Context(), cred.UserID)
	}
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	names := make([]string, 0, len(domains))
	term := r.URL.Query().Get("term")
	for _, d := range domains {
		if term != "" && !strings.Contains(d.Name, term) {
			continue
		}
		names = append(names, d.Name)
	}
	writeJSON(w, http.StatusOK, names)
}

// handleRBACTenants lists tenants visible to the acting user for role
// assignment, keyed by tenant id.
func (a *API) handleRBACTenants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}

	var (
		tenants []identity.Tenant
		err     error
	)
	if a.identity.IsBootstrapIdentity(cred.UserID) {
		tenants, err = a.identity.Store().Tenants().List(r.Context())
	} else {
		tenants, err = a.identity.Store().Tenants().ListForUser(r.Context(), cred.UserID)
	}
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	byID := make(map[string]string, len(tenants))
	for _, t := range tenants {
		byID[t.ID] = t.Name
	}
	writeJSON(w, http.StatusOK, byID)
}

// handleRBACRoles lists the role catalogue keyed by role id.
func (a *API) handleRBACRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireCredential(w, r); !ok {
		return
	}
	roles, err := a.identity.Store().Roles().List(r.Context())
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	byID := make(map[string]string, len(roles))
	for _, role := range roles {
		byID[role.ID] = role.Name
	}
	writeJSON(w, http.StatusOK, byID)
}

// handleRBACUserScoped routes /v1/rbac/user/{id}[/{role}[/{domain}[/{tenant}]]].
// The literal "none" stands for a NULL domain when a tenant id follows.
func (a *API) handleRBACUserScoped(w http.ResponseWriter, r *http.Request) {
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rbac/user/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		assignments, err := a.identity.Store().Assignments().ListByUser(r.Context(), userID)
		if err != nil {
			handleIdentityError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, assignments)
		return
	}
	if len(parts) > 4 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	roleID := parts[1]
	var domain, tenantID *string
	if len(parts) >= 3 && !strings.EqualFold(parts[2], "none") {
		domain = &parts[2]
	}
	if len(parts) == 4 {
		tenantID = &parts[3]
	}

	switch r.Method {
	case http.MethodPost:
		assignment, err := a.identity.CreateAssignment(r.Context(), cred.UserID, userID, roleID, domain, tenantID)
		if err != nil {
			if errors.Is(err, identity.ErrAccessDenied) {
				obs.ObserveAssignmentDenial()
			}
			handleIdentityError(w, r, err)
			return
		}
		a.auditAssignment(r, "rbac.assignment.create", assignment.ID, userID, roleID, domain, tenantID)
		writeJSON(w, http.StatusCreated, assignment)
	case http.MethodDelete:
		err := a.identity.RemoveAssignment(r.Context(), cred.UserID, userID, roleID, domain, tenantID)
		if err != nil {
			if errors.Is(err, identity.ErrAccessDenied) {
				obs.ObserveAssignmentDenial()
			}
			handleIdentityError(w, r, err)
			return
		}
		a.auditAssignment(r, "rbac.assignment.remove", "", userID, roleID, domain, tenantID)
		w.WriteHeader(http.StatusOK)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) auditAssignment(r *http.Request, event, assignmentID, userID, roleID string, domain, tenantID *string) {
	fields := map[string]any{
		"target_user_id": userID,
		"role_id":        roleID,
	}
	if assignmentID != "" {
		fields["assignment_id"] = assignmentID
	}
	if domain != nil {
		fields["domain"] = *domain
	}
	if tenantID != nil {
		fields["tenant_id"] = *tenantID
	}
	_ = audit.LogEvent(r.Context(), event, fields)
}
