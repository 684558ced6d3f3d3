package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/assets"
	"github.com/pentora/pentora/internal/audit"
	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/consultation"
	"github.com/pentora/pentora/internal/dashboard"
	"github.com/pentora/pentora/internal/health"
	"github.com/pentora/pentora/internal/observability"
	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/reports"
	"github.com/pentora/pentora/internal/users"
	"github.com/pentora/pentora/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	ActivityHandler     *activity.Handler
	AssetsHandler       *assets.Handler
	ReportsHandler      *reports.Handler
	ConsultationHandler *consultation.Handler
	AuditHandler        *audit.Handler
	DashboardHandler    *dashboard.Handler
	HealthHandler       *health.Handler

	JobsHandler *jobs.Handler

	AuditRecorder *audit.Recorder
	HealthStore   health.Store
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router serving the Pentora API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(TokenAuth(params.AuthService))
		if params.HealthStore != nil {
			r.Use(health.APILogMiddleware(params.Logger, params.HealthStore))
		}
		if params.AuditRecorder != nil {
			r.Use(audit.Middleware(params.AuditRecorder))
		}

		// Public surface: login, registration, the liveness check and the
		// consultation intake form.
		params.HealthHandler.MountPublicRoutes(r)
		params.ConsultationHandler.MountPublicRoutes(r)
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(policy.RequireIdentity)
				params.AuthHandler.MountProtectedRoutes(r)
			})
		})

		// Everything below requires a resolved identity. The services apply
		// the finer-grained ownership and hierarchy rules.
		r.Group(func(r chi.Router) {
			r.Use(policy.RequireIdentity)

			r.Get("/navigation", func(w http.ResponseWriter, req *http.Request) {
				ident, _ := policy.IdentityFromContext(req.Context())
				httpx.JSON(w, http.StatusOK, map[string]any{
					"role": ident.Role,
					"menu": policy.MenuForRole(policy.Menu(), ident.Role),
				})
			})

			params.UsersHandler.MountRoutes(r)
			params.AssetsHandler.MountRoutes(r)
			params.ReportsHandler.MountRoutes(r)
			params.DashboardHandler.MountRoutes(r)
			params.HealthHandler.MountStatusRoutes(r)
		})

		// Admin and up.
		r.Group(func(r chi.Router) {
			r.Use(policy.GuardMin("", policy.RoleAdmin))
			params.ActivityHandler.MountRoutes(r)
			params.AuditHandler.MountRoutes(r)
			params.ConsultationHandler.MountRoutes(r)
			params.HealthHandler.MountAdminRoutes(r)
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})

		// Team leads and up can inspect the raw request log.
		r.Group(func(r chi.Router) {
			r.Use(policy.GuardMin("", policy.RoleTeamLeader))
			params.HealthHandler.MountLogRoutes(r)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
