package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
)

// Handler serves the per-role dashboards. Each route demands the exact role
// it is built for.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard/superadmin", h.forRole(policy.RoleSuperadmin, func(ctx context.Context, v policy.Identity) (map[string]any, error) {
		return h.service.Superadmin(ctx)
	}))
	r.Get("/dashboard/admin", h.forRole(policy.RoleAdmin, h.service.Admin))
	r.Get("/dashboard/team-leader", h.forRole(policy.RoleTeamLeader, h.service.TeamLeader))
	r.Get("/dashboard/tester", h.forRole(policy.RoleTester, h.service.Tester))
	r.Get("/dashboard/client-user", h.forRole(policy.RoleClientUser, h.service.ClientUser))
}

func (h *Handler) forRole(role policy.Role, build func(ctx context.Context, v policy.Identity) (map[string]any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer, _ := policy.IdentityFromContext(r.Context())
		if viewer.Role != role {
			httpx.Problem(w, http.StatusForbidden, "Access Denied", "Access denied")
			return
		}
		payload, err := build(r.Context(), viewer)
		if err != nil {
			h.logger.Error("build dashboard",
				slog.String("role", string(role)), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, payload)
	}
}
