package middleware

import (
	"context"
	"net/http"
	"strings"

	"rvnl.in/fittrack/pkg/access"
)

// unexported type prevents collisions in context
type ctxKey int

const identityKey ctxKey = iota

// Auth resolves the caller's role from the bearer token via the access
// service and stashes the identity in the request context.
func Auth(resolver access.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, "invalid auth header", http.StatusUnauthorized)
				return
			}

			identity, err := resolver.ResolveRole(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, &identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the resolved caller, or nil outside the auth chain.
func GetIdentity(r *http.Request) *access.Identity {
	id, _ := r.Context().Value(identityKey).(*access.Identity)
	return id
}

// RequireRole gates a handler on the caller holding one of the given
// roles. The role decides which material fields the caller may set; field
// ownership itself is enforced in the reconciler.
func RequireRole(roles ...access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r)
			if identity == nil {
				http.Error(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "insufficient role", http.StatusForbidden)
		})
	}
}
