package activity

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Handler serves the monitoring endpoints for activity data.
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

// MountRoutes registers activity routes. The caller wraps them with the
// admin-level guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/activity-logs", h.listLogs)
	r.Get("/user-sessions", h.listSessions)
	r.Get("/asset-activity-logs", h.listAssetLogs)
	r.Get("/activity-summary", h.summary)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	logs, err := h.service.Logs(r.Context(), viewer, filterFromQuery(r))
	if err != nil {
		h.logger.Error("list activity logs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	viewer, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	sessions, err := h.service.Sessions(r.Context(), viewer, filterFromQuery(r))
	if err != nil {
		h.logger.Error("list user sessions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sessions)
}

func (h *Handler) listAssetLogs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	logs, err := h.service.AssetLogs(r.Context(), viewer, filterFromQuery(r))
	if err != nil {
		h.logger.Error("list asset activity logs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	viewer, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	start := parseTimeParam(r, "startDate")
	end := parseTimeParam(r, "endDate")
	summary, err := h.service.Summarize(r.Context(), viewer, start, end)
	if err != nil {
		h.logger.Error("activity summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func filterFromQuery(r *http.Request) Filter {
	window := shared.ParseListWindow(r, 50, 200)
	f := Filter{
		Start:        parseTimeParam(r, "startDate"),
		End:          parseTimeParam(r, "endDate"),
		ActivityType: r.URL.Query().Get("activityType"),
		Limit:        window.Limit,
		Offset:       window.Offset,
	}
	if raw := r.URL.Query().Get("userId"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.UserID = id
		}
	}
	if raw := r.URL.Query().Get("assetId"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.AssetID = id
		}
	}
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		active := raw == "true"
		f.IsActive = &active
	}
	return f
}

func parseTimeParam(r *http.Request, name string) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return time.Time{}
}
