package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// APILogMiddleware records every request into the api_logs table. Writes
// happen after the response on a detached context so slow storage never
// delays or cancels them with the request.
func APILogMiddleware(logger *slog.Logger, store Store) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			entry := APILog{
				Method:       r.Method,
				Endpoint:     r.URL.Path,
				StatusCode:   ww.Status(),
				ResponseTime: time.Since(start).Milliseconds(),
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := store.InsertAPILog(ctx, entry); err != nil {
					logger.Warn("api log insert failed", slog.Any("error", err))
				}
			}()
		})
	}
}
