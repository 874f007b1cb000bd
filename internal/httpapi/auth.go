package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authorizer decides whether a request may mutate the graph.
type Authorizer interface {
	IsAdmin(r *http.Request) bool
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(r *http.Request) bool

// IsAdmin implements Authorizer.
func (f AuthorizerFunc) IsAdmin(r *http.Request) bool { return f(r) }

// TokenAuthorizer accepts requests carrying "Authorization: Bearer <Token>".
// An empty Token denies every request.
type TokenAuthorizer struct {
	Token string
}

// IsAdmin implements Authorizer.
func (a TokenAuthorizer) IsAdmin(r *http.Request) bool {
	if a.Token == "" {
		return false
	}
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) == 1
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// requireAdmin rejects requests without credentials with 401 and requests
// the authorizer refuses with 403.
func requireAdmin(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeAPIError(w, http.StatusForbidden, CodeForbidden, "mutations are disabled")
				return
			}
			if auth.IsAdmin(r) {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("Authorization") == "" {
				writeAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header required")
				return
			}
			writeAPIError(w, http.StatusForbidden, CodeForbidden, "admin access required")
		})
	}
}
