package policy

import (
	"context"
	"net/http"

	"github.com/pentora/pentora/internal/platform/httpx"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
	Token    string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in the request context.
func ContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext extracts the identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(Identity)
	return ident, ok
}

// Guard admits only the listed roles. An unauthenticated request gets 401;
// an authenticated request with a role outside the set gets 403 carrying the
// fallback message and the caller's actual role, and the protected handler
// never runs.
func Guard(fallback string, allowed ...Role) func(http.Handler) http.Handler {
	set := make(map[Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			if _, ok := set[ident.Role]; !ok {
				denied(w, fallback, ident.Role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GuardMin admits roles at or above the given hierarchy level. The product
// uses this for its "admin and up" style gates.
func GuardMin(fallback string, min Role) func(http.Handler) http.Handler {
	if fallback == "" {
		fallback = DefaultFallback
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			if !ident.Role.AtLeast(min) {
				denied(w, fallback, ident.Role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GuardPath derives the guard for a dashboard route from the navigation
// tree. Unknown paths deny every role.
func GuardPath(path string) func(http.Handler) http.Handler {
	roles, ok := RolesForPath(path)
	if !ok {
		return Guard(DefaultFallback)
	}
	fallback := fallbacks[path]
	return Guard(fallback, roles...)
}

// RequireIdentity rejects unauthenticated requests without checking roles.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func denied(w http.ResponseWriter, fallback string, actual Role) {
	httpx.JSON(w, http.StatusForbidden, httpx.ProblemDetail{
		Title:  "Access Denied",
		Status: http.StatusForbidden,
		Detail: fallback,
		Role:   string(actual),
	})
}
