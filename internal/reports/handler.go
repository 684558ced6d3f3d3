package reports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pentora/pentora/internal/platform/httpx"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

// Handler manages report, finding and note endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports", h.list)
	r.Post("/reports", h.create)
	r.Get("/reports/{reportID}", h.detail)
	r.Patch("/reports/{reportID}", h.update)
	r.Delete("/reports/{reportID}", h.deleteReport)
	r.Get("/reports/{reportID}/pdf", h.pdf)
	r.Get("/assets/{assetID}/reports", h.assetReports)
	r.Get("/reports/{reportID}/findings", h.findings)
	r.Post("/reports/{reportID}/findings", h.createFinding)
	r.Patch("/findings/{findingID}", h.updateFinding)
	r.Delete("/findings/{findingID}", h.deleteFinding)
	r.Get("/reports/{reportID}/notes", h.reportNotes)
	r.Post("/reports/{reportID}/notes", h.createNote)
	r.Get("/assets/{assetID}/notes", h.assetNotes)
	r.Patch("/notes/{noteID}", h.updateNote)
	r.Delete("/notes/{noteID}", h.deleteNote)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	reports, err := h.service.List(r.Context(), caller)
	if err != nil {
		h.respondError(w, err, "Not authorized to view reports")
		return
	}
	httpx.JSON(w, http.StatusOK, reports)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	report, err := h.service.Create(r.Context(), caller, in)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "Invalid asset ID")
			return
		}
		h.respondError(w, err, "Only testers can create reports")
		return
	}
	httpx.JSON(w, http.StatusCreated, report)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	report, err := h.service.Update(r.Context(), caller, id, in)
	if err != nil {
		if errors.Is(err, ErrFinalReserved) {
			httpx.Problem(w, http.StatusForbidden, "Access Denied", "Only team leaders can set report status to Final")
			return
		}
		h.respondError(w, err, "Not authorized to update reports")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) deleteReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		h.respondError(w, err, "You can only delete your own reports")
		return
	}
	httpx.Message(w, http.StatusOK, "Report deleted successfully")
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	doc, err := h.service.RenderPDF(r.Context(), caller, id)
	if err != nil {
		if errors.Is(err, ErrNotAuthorized) || errors.Is(err, shared.ErrNotFound) {
			h.respondError(w, err, "Access denied")
			return
		}
		h.logger.Error("render report pdf", slog.Int64("report_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "PDF Generation Failed", "Failed to generate PDF report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("Security_Report_%d.pdf", id)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *Handler) assetReports(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assetID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	reports, err := h.service.ForAsset(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "")
		return
	}
	httpx.JSON(w, http.StatusOK, reports)
}

func (h *Handler) findings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	findings, err := h.service.Findings(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "")
		return
	}
	httpx.JSON(w, http.StatusOK, findings)
}

func (h *Handler) createFinding(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	var in FindingInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if in.Title == nil || *in.Title == "" || in.Severity == nil || *in.Severity == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "vulnerabilityTitle and severity are required")
		return
	}
	finding, err := h.service.CreateFinding(r.Context(), caller, id, in)
	if err != nil {
		h.respondError(w, err, "Only testers can create vulnerability findings")
		return
	}
	httpx.JSON(w, http.StatusCreated, finding)
}

func (h *Handler) updateFinding(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "findingID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid finding id")
		return
	}
	var in FindingInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	finding, err := h.service.UpdateFinding(r.Context(), caller, id, in)
	if err != nil {
		h.respondError(w, err, "Only testers can update vulnerability findings")
		return
	}
	httpx.JSON(w, http.StatusOK, finding)
}

func (h *Handler) deleteFinding(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "findingID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid finding id")
		return
	}
	if err := h.service.DeleteFinding(r.Context(), caller, id); err != nil {
		h.respondError(w, err, "Only testers can delete vulnerability findings")
		return
	}
	httpx.Message(w, http.StatusOK, "Vulnerability finding deleted successfully")
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	var in NoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if in.Content == "" || in.AssetID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Note content and asset ID are required")
		return
	}
	note, err := h.service.CreateNote(r.Context(), caller, id, in)
	if err != nil {
		h.respondError(w, err, "Only client team members can create notes")
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) reportNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid report id")
		return
	}
	notes, err := h.service.ReportNotes(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "")
		return
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) assetNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assetID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid asset id")
		return
	}
	notes, err := h.service.AssetNotes(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "")
		return
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "noteID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid note id")
		return
	}
	var in NoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	note, err := h.service.UpdateNote(r.Context(), caller, id, in)
	if err != nil {
		h.respondError(w, err, "You can only update your own notes")
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	caller, _ := policy.IdentityFromContext(r.Context())
	id, err := pathID(r, "noteID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid note id")
		return
	}
	if err := h.service.DeleteNote(r.Context(), caller, id); err != nil {
		h.respondError(w, err, "You can only delete your own notes")
		return
	}
	httpx.Message(w, http.StatusOK, "Note deleted successfully")
}

func (h *Handler) respondError(w http.ResponseWriter, err error, forbiddenMsg string) {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		httpx.Problem(w, http.StatusForbidden, "Access Denied", forbiddenMsg)
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Report not found")
	default:
		h.logger.Error("report operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("field %s failed on %s", verrs[0].Field(), verrs[0].Tag())
	}
	return "invalid request payload"
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
