package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers user management routes. Creation-matrix and creator
// checks run in the service; the admin-only routes get an extra guard here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/users/create", h.create)
	r.Get("/users/created", h.created)
	r.Get("/users/hierarchy", h.hierarchy)
	r.Get("/users/assigned", h.assigned)
	r.Get("/users/assignable/{role}", h.assignable)
	r.Get("/users/assignments", h.assignments)
	r.Post("/users/assign", h.assign)
	r.Delete("/users/assign", h.unassign)
	r.Delete("/users/{userID}", h.deleteUser)

	r.Group(func(r chi.Router) {
		r.Use(policy.GuardMin(policy.DefaultFallback, policy.RoleAdmin))
		r.Get("/users", h.all)
		r.Patch("/users/{userID}", h.update)
		r.Get("/access-control/users", h.accessControlUsers)
		r.Post("/access-control/revoke/{userID}", h.revokeAccess)
		r.Post("/access-control/restore/{userID}", h.restoreAccess)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := policy.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	var in CreateUserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user data")
		return
	}

	created, err := h.service.Create(r.Context(), caller, in, shared.ClientIP(r), shared.UserAgent(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user":    created,
		"message": "User created successfully",
	})
}

func (h *Handler) created(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	users, err := h.service.Created(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list created users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) hierarchy(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	tree, err := h.service.Hierarchy(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("build hierarchy", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) assigned(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	users, err := h.service.Assigned(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list assigned users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) assignable(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	role, ok := policy.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "unknown role")
		return
	}
	users, err := h.service.Assignable(r.Context(), caller.UserID, role)
	if err != nil {
		h.logger.Error("list assignable users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) assignments(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	assignments, err := h.service.Assignments(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list assignments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

type assignmentRequest struct {
	AssignedUserID int64 `json:"assignedUserId" validate:"required"`
	AssigneeID     int64 `json:"assigneeId" validate:"required"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "both assignedUserId and assigneeId are required")
		return
	}
	if err := h.service.Assign(r.Context(), caller, req.AssignedUserID, req.AssigneeID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User assigned successfully")
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "both assignedUserId and assigneeId are required")
		return
	}
	if err := h.service.Unassign(r.Context(), caller, req.AssignedUserID, req.AssigneeID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User unassigned successfully")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid user id")
		return
	}
	if err := h.service.Delete(r.Context(), caller, userID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User deleted successfully")
}

func (h *Handler) all(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.All(r.Context())
	if err != nil {
		h.logger.Error("list all users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid user id")
		return
	}
	var in UpdateUserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user data")
		return
	}
	user, err := h.service.Update(r.Context(), userID, in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) accessControlUsers(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	users, err := h.service.AccessControlUsers(r.Context(), caller)
	if err != nil {
		h.logger.Error("list access control users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) revokeAccess(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid user id")
		return
	}
	if err := h.service.RevokeAccess(r.Context(), caller, userID, shared.ClientIP(r), shared.UserAgent(r)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User access revoked successfully")
}

func (h *Handler) restoreAccess(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid user id")
		return
	}
	if err := h.service.RestoreAccess(r.Context(), caller, userID, shared.ClientIP(r), shared.UserAgent(r)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User access restored successfully")
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoleNotAllowed):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "Not authorized to create this role")
	case errors.Is(err, ErrUsernameTaken):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Username already exists")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Email already exists")
	case errors.Is(err, ErrNotCreator):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You can only manage users you created")
	case errors.Is(err, ErrInvalidAssignment):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You can only assign users you have created")
	case errors.Is(err, auth.ErrDuplicateUser):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "username or email already taken")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "User not found")
	default:
		h.logger.Error("user management", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
