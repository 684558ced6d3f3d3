package audit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Handler serves the audit trail listing.
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

// MountRoutes registers the audit trail route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit-trail", h.trail)
}

func (h *Handler) trail(w http.ResponseWriter, r *http.Request) {
	viewer, _ := policy.IdentityFromContext(r.Context())
	window := shared.ParseListWindow(r, 50, 200)
	entries, err := h.service.Trail(r.Context(), viewer, Filters{
		Resource: r.URL.Query().Get("resource"),
		Action:   r.URL.Query().Get("action"),
		Limit:    window.Limit,
		Offset:   window.Offset,
	})
	if err != nil {
		h.logger.Error("list audit trail", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}
