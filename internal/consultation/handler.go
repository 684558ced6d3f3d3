package consultation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Store is the persistence surface the handler depends on.
type Store interface {
	Create(ctx context.Context, in Input) (*Request, error)
	ByID(ctx context.Context, id int64) (*Request, error)
	All(ctx context.Context) ([]Request, error)
	UpdateStatus(ctx context.Context, id int64, status, notes string, byID int64) (*Request, error)
	Delete(ctx context.Context, id int64) error
}

// Handler manages consultation request endpoints.
type Handler struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountPublicRoutes registers the unauthenticated intake endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/consultation-request", h.submit)
}

// MountRoutes registers the admin triage endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/consultation-requests", h.list)
	r.Get("/consultation-requests/{requestID}", h.detail)
	r.Patch("/consultation-requests/{requestID}/status", h.updateStatus)
	r.Delete("/consultation-requests/{requestID}", h.deleteRequest)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Failed to submit consultation request")
		return
	}
	if !slices.Contains(Services, in.Service) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Unknown service")
		return
	}
	created, err := h.store.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create consultation request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Consultation request submitted successfully",
		"id":      created.ID,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.All(r.Context())
	if err != nil {
		h.logger.Error("list consultation requests", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid request id")
		return
	}
	request, err := h.store.ByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

type statusUpdate struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := requestID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid request id")
		return
	}
	var in statusUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	updated, err := h.store.UpdateStatus(r.Context(), id, in.Status, in.Notes, caller.UserID)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request",
				fmt.Sprintf("status must be one of %v", Statuses))
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid request id")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Consultation request deleted successfully")
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Consultation request not found")
		return
	}
	h.logger.Error("consultation operation", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func requestID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
}
