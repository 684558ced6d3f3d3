package assets

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Directory resolves user lookups for the assignment pickers. Satisfied by
// the users service.
type Directory interface {
	ByRole(ctx context.Context, role policy.Role) ([]auth.UserDTO, error)
	Supervised(ctx context.Context, viewerID int64, role policy.Role) ([]auth.UserDTO, error)
}

// Handler manages asset endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory Directory
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directory Directory) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, directory: directory}
}

// MountRoutes registers asset routes. Role scoping happens in the service,
// which knows owner and creator relationships the guard cannot see.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/assets", h.list)
	r.Post("/assets", h.create)
	r.Get("/assets-detailed", h.listDetailed)
	r.Get("/assets/{assetID}", h.detail)
	r.Put("/assets/{assetID}", h.update)
	r.Delete("/assets/{assetID}", h.deleteAsset)
	r.Post("/assets/{assetID}/assign", h.assignTeamLeader)
	r.Delete("/assets/{assetID}/assign", h.unassignTeamLeader)
	r.Post("/tasks/{assetID}/assign", h.assignTester)
	r.Delete("/tasks/{assetID}/assign", h.unassignTester)
	r.Get("/my-tasks", h.myTasks)
	r.Get("/my-assigned-tasks", h.myAssignedTasks)
	r.Get("/client-admins", h.clientAdmins)
	r.Get("/team-leaders", h.teamLeaders)
	r.Get("/testers", h.testers)
	r.Get("/client-team-members", h.clientTeamMembers)
	r.Post("/assets/{assetID}/assign-client-team", h.assignClientTeam)
	r.Delete("/assets/{assetID}/assign-client-team", h.unassignClientTeam)
	r.Get("/my-client-team-assets", h.myClientTeamAssets)
	r.Get("/assets/{assetID}/client-team-assignments", h.clientTeamAssignments)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	assets, err := h.service.List(r.Context(), caller)
	if err != nil {
		h.respondError(w, err, "Not authorized to view assets")
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) listDetailed(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	assets, err := h.service.ListDetailed(r.Context(), caller)
	if err != nil {
		h.respondError(w, err, "Not authorized to view assets")
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	var in AssetInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := validateInput(in, true); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asset, err := h.service.Create(r.Context(), caller, in)
	if err != nil {
		h.respondError(w, err, "Not authorized to create assets")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"asset":   asset,
		"message": "Asset created successfully",
	})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	asset, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, err, "Not authorized to view this asset")
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	var in AssetInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := validateInput(in, false); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asset, err := h.service.Update(r.Context(), caller, id, in)
	if err != nil {
		h.respondError(w, err, "Not authorized to update this asset")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"asset":   asset,
		"message": "Asset updated successfully",
	})
}

func (h *Handler) deleteAsset(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		h.respondError(w, err, "Not authorized to delete this asset")
		return
	}
	httpx.Message(w, http.StatusOK, "Asset deleted successfully")
}

type teamLeaderAssignment struct {
	TeamLeaderID int64 `json:"teamLeaderId"`
}

func (h *Handler) assignTeamLeader(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	var req teamLeaderAssignment
	if err := httpx.DecodeJSON(r, &req); err != nil || req.TeamLeaderID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "Team leader ID is required")
		return
	}
	if err := h.service.AssignTeamLeader(r.Context(), caller, id, req.TeamLeaderID); err != nil {
		h.respondError(w, err, "Not authorized to assign assets")
		return
	}
	httpx.Message(w, http.StatusOK, "Asset assigned successfully")
}

func (h *Handler) unassignTeamLeader(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	if err := h.service.UnassignTeamLeader(r.Context(), caller, id); err != nil {
		h.respondError(w, err, "Not authorized to unassign assets")
		return
	}
	httpx.Message(w, http.StatusOK, "Asset unassigned successfully")
}

type testerAssignment struct {
	TesterID int64 `json:"testerId"`
}

func (h *Handler) assignTester(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	var req testerAssignment
	if err := httpx.DecodeJSON(r, &req); err != nil || req.TesterID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "Tester ID is required")
		return
	}
	if err := h.service.AssignTester(r.Context(), caller, id, req.TesterID); err != nil {
		h.respondError(w, err, "Only team leaders can assign tasks")
		return
	}
	httpx.Message(w, http.StatusOK, "Task assigned to tester successfully")
}

func (h *Handler) unassignTester(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	if err := h.service.UnassignTester(r.Context(), caller, id); err != nil {
		h.respondError(w, err, "Only team leaders can unassign tasks")
		return
	}
	httpx.Message(w, http.StatusOK, "Task unassigned from tester successfully")
}

func (h *Handler) myTasks(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	assets, err := h.service.MyTasks(r.Context(), caller)
	if err != nil {
		h.respondError(w, err, "Only team leaders can view tasks")
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) myAssignedTasks(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	assets, err := h.service.MyAssignedTasks(r.Context(), caller)
	if err != nil {
		h.respondError(w, err, "Only testers can view assigned tasks")
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) clientAdmins(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	if !caller.Role.AtLeast(policy.RoleAdmin) {
		httpx.Problem(w, http.StatusForbidden, "Access Denied", "Access denied")
		return
	}
	users, err := h.directory.ByRole(r.Context(), policy.RoleClientAdmin)
	if err != nil {
		h.logger.Error("list client admins", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) teamLeaders(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	if !caller.Role.AtLeast(policy.RoleAdmin) {
		httpx.Problem(w, http.StatusForbidden, "Access Denied", "Not authorized to access team leaders")
		return
	}
	users, err := h.directory.Supervised(r.Context(), caller.UserID, policy.RoleTeamLeader)
	if err != nil {
		h.logger.Error("list team leaders", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) testers(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	if caller.Role != policy.RoleTeamLeader {
		httpx.Problem(w, http.StatusForbidden, "Access Denied", "Only team leaders can access testers")
		return
	}
	users, err := h.directory.Supervised(r.Context(), caller.UserID, policy.RoleTester)
	if err != nil {
		h.logger.Error("list testers", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) clientTeamMembers(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	if caller.Role != policy.RoleClientAdmin {
		httpx.Problem(w, http.StatusForbidden, "Access Denied", "Access denied")
		return
	}
	users, err := h.directory.Supervised(r.Context(), caller.UserID, policy.RoleClientUser)
	if err != nil {
		h.logger.Error("list client team members", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

type clientTeamRequest struct {
	ClientTeamMemberID int64 `json:"clientTeamMemberId"`
}

func (h *Handler) assignClientTeam(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	var req clientTeamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ClientTeamMemberID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "Client team member ID is required")
		return
	}
	if err := h.service.AssignClientTeam(r.Context(), caller, id, req.ClientTeamMemberID); err != nil {
		h.respondError(w, err, "Access denied")
		return
	}
	httpx.Message(w, http.StatusOK, "Asset assigned to client team successfully")
}

func (h *Handler) unassignClientTeam(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	var req clientTeamRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ClientTeamMemberID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "Client team member ID is required")
		return
	}
	if err := h.service.UnassignClientTeam(r.Context(), caller, id, req.ClientTeamMemberID); err != nil {
		h.respondError(w, err, "Access denied")
		return
	}
	httpx.Message(w, http.StatusOK, "Asset unassigned from client team successfully")
}

func (h *Handler) myClientTeamAssets(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	assets, err := h.service.MyClientTeamAssets(r.Context(), caller)
	if err != nil {
		h.respondError(w, err, "Access denied")
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) clientTeamAssignments(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := assetID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	assignments, err := h.service.ClientTeamAssignments(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, err, "Access denied")
		return
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, forbiddenMsg string) {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		httpx.Problem(w, http.StatusForbidden, "Access Denied", forbiddenMsg)
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Asset not found")
	default:
		h.logger.Error("asset operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func assetID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "assetID"), 10, 64)
}
