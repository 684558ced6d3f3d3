package health

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pentora/pentora/internal/platform/httpx"
)

// Handler serves the monitoring endpoints.
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

// MountPublicRoutes registers the unauthenticated liveness endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/health", h.liveness)
}

// MountStatusRoutes registers the status read endpoint for any signed-in
// user; writes are guarded by the caller.
func (h *Handler) MountStatusRoutes(r chi.Router) {
	r.Get("/status", h.statuses)
}

// MountAdminRoutes registers the admin monitoring endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/system-health", h.overview)
	r.Post("/status", h.setStatus)
}

// MountLogRoutes registers the API log listing.
func (h *Handler) MountLogRoutes(r chi.Router) {
	r.Get("/logs", h.logs)
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]string{
			"database": "connected",
			"server":   "running",
		},
	})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.Error("system health overview", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) statuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.Statuses(r.Context())
	if err != nil {
		h.logger.Error("list system statuses", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, statuses)
}

type statusRequest struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Details   string `json:"details"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if in.Component == "" || in.Status == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Component and status are required")
		return
	}
	updated, err := h.service.SetStatus(r.Context(), in.Component, in.Status, in.Details)
	if err != nil {
		h.logger.Error("set system status", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.Logs(r.Context(), 50)
	if err != nil {
		h.logger.Error("list api logs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}
