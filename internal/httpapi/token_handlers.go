package httpapi

import (
	"net/http"
	"strings"
	"time"

	"identra.org/internal/audit"
	"identra.org/internal/obs"
	"identra.org/internal/session"
)

type loginRequest struct {
	Username      string            `json:"username"`
	Password      string            `json:"password,omitempty"`
	Credentials   map[string]string `json:"credentials,omitempty"`
	Domain        *string           `json:"domain,omitempty"`
	Region        *string           `json:"region,omitempty"`
	Confederation *string           `json:"confederation,omitempty"`
}

type scopeRequest struct {
	Domain   *string `json:"domain,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`
}

type tokenResponse struct {
	Token      string              `json:"token"`
	ExpiresAt  time.Time           `json:"expires_at"`
	Credential *session.Credential `json:"credential"`
}

func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleTokenIntrospect(w, r)
	case http.MethodPost:
		a.handleLogin(w, r)
	case http.MethodPatch:
		a.handleScope(w, r)
	case http.MethodDelete:
		a.handleLogout(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleTokenIntrospect(w http.ResponseWriter, r *http.Request) {
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}

	credentials := req.Credentials
	if credentials == nil {
		credentials = map[string]string{}
	}
	if req.Password != "" {
		credentials["password"] = req.Password
	}

	cred, err := a.sessions.Login(r.Context(), session.LoginRequest{
		Username:      req.Username,
		Domain:        req.Domain,
		Region:        req.Region,
		Confederation: req.Confederation,
		Credentials:   credentials,
	})
	if err != nil {
		obs.ObserveLogin("denied")
		handleIdentityError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")

	a.respondWithToken(w, r, cred, "session.login", map[string]any{
		"username": cred.Username,
		"user_id":  cred.UserID,
	})
}

func (a *API) handleScope(w http.ResponseWriter, r *http.Request) {
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}
	var req scopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.sessions.Scope(r.Context(), cred, req.Domain, req.TenantID); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.respondWithToken(w, r, cred, "session.scope", map[string]any{
		"user_id": cred.UserID,
		"state":   cred.State(),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}
	a.sessions.Revoke(cred)
	_ = audit.LogEvent(r.Context(), "session.logout", map[string]any{
		"user_id": cred.UserID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTokenRenew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	cred, ok := a.requireCredential(w, r)
	if !ok {
		return
	}
	if err := a.sessions.Renew(r.Context(), cred); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.respondWithToken(w, r, cred, "session.renew", map[string]any{
		"user_id": cred.UserID,
	})
}

func (a *API) respondWithToken(w http.ResponseWriter, r *http.Request, cred *session.Credential, event string, fields map[string]any) {
	token, err := a.sessions.Sign(cred)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), event, fields)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:      token,
		ExpiresAt:  cred.ExpiresAt,
		Credential: cred,
	})
}
