package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"identra.org/internal/session"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth parses a bearer credential when one is supplied and requires it
// on everything but the public paths. Login itself (POST /v1/token) must
// stay reachable without a credential.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err == nil {
			cred, perr := a.sessions.Parse(token)
			if perr != nil {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			r = r.WithContext(session.ContextWithCredential(r.Context(), cred))
		} else if !isPublicPath(r.URL.Path) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireCredential fetches the request credential or writes a 401.
func (a *API) requireCredential(w http.ResponseWriter, r *http.Request) (*session.Credential, bool) {
	cred, ok := session.CredentialFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return cred, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
