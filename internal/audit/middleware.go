package audit

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

var methodActions = map[string]string{
	http.MethodPost:   "create",
	http.MethodPut:    "update",
	http.MethodPatch:  "update",
	http.MethodDelete: "delete",
}

// Middleware records an audit entry for every successful mutation passing
// through it. Reads are not audited; they land in the activity feed instead.
func Middleware(recorder *Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action, audited := methodActions[r.Method]
			if !audited {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() < 200 || ww.Status() >= 300 {
				return
			}
			e := Entry{
				Action:    action,
				Resource:  resourceFromPath(r.URL.Path),
				IPAddress: shared.ClientIP(r),
				UserAgent: shared.UserAgent(r),
				Details: map[string]any{
					"method":     r.Method,
					"url":        r.URL.RequestURI(),
					"statusCode": ww.Status(),
				},
			}
			if id, ok := policy.IdentityFromContext(r.Context()); ok {
				uid := id.UserID
				e.UserID = &uid
			}
			recorder.Record(r.Context(), e)
		})
	}
}

// resourceFromPath reduces "/api/assets/12/assign" to "assets".
func resourceFromPath(path string) string {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/api"), "/")
	if trimmed == "" {
		return "root"
	}
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
