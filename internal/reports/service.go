package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/policy"
)

var (
	// ErrNotAuthorized indicates the caller may not touch the report.
	ErrNotAuthorized = errors.New("reports: not authorized")
	// ErrFinalReserved indicates a tester tried to finalize a report.
	ErrFinalReserved = errors.New("reports: only team leaders can set report status to Final")
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, r Report, createdByID int64) (*Report, error)
	ByID(ctx context.Context, id int64) (*Report, error)
	ByCreator(ctx context.Context, userID int64) ([]Report, error)
	ForLeader(ctx context.Context, leaderID int64) ([]Report, error)
	Final(ctx context.Context) ([]Report, error)
	FinalForOwner(ctx context.Context, ownerID int64) ([]Report, error)
	ByAsset(ctx context.Context, assetID int64) ([]Report, error)
	Update(ctx context.Context, r *Report) (*Report, error)
	Delete(ctx context.Context, id int64) error
	AssetContext(ctx context.Context, assetID int64) (*AssetContext, error)
	FullName(ctx context.Context, userID int64) (string, error)
	InsertFinding(ctx context.Context, f Finding) (*Finding, error)
	FindingByID(ctx context.Context, id int64) (*Finding, error)
	FindingsByReport(ctx context.Context, reportID int64) ([]Finding, error)
	UpdateFinding(ctx context.Context, f *Finding) (*Finding, error)
	DeleteFinding(ctx context.Context, id int64) error
	SeverityCounts(ctx context.Context, reportID int64) (SeverityBreakdown, error)
	UpdateSummary(ctx context.Context, reportID int64, total int, b SeverityBreakdown, rating string) error
	InsertNote(ctx context.Context, n Note, authorID int64) (*Note, error)
	NoteByID(ctx context.Context, id int64) (*Note, error)
	NotesByReport(ctx context.Context, reportID int64) ([]Note, error)
	NotesByAsset(ctx context.Context, assetID int64) ([]Note, error)
	UpdateNote(ctx context.Context, n *Note) (*Note, error)
	DeleteNote(ctx context.Context, id int64) error
}

// ActivityRecorder logs report activity.
type ActivityRecorder interface {
	Log(ctx context.Context, e activity.Entry)
}

// Renderer turns HTML into a PDF document.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Notifier is told when a report reaches Final so the distribution list can
// be emailed. Optional.
type Notifier interface {
	ReportFinalized(ctx context.Context, r *Report)
}

// Service applies the report workflow rules.
type Service struct {
	store    Store
	recorder ActivityRecorder
	renderer Renderer
	notifier Notifier
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, recorder ActivityRecorder, renderer Renderer) *Service {
	return &Service{store: store, recorder: recorder, renderer: renderer, now: time.Now}
}

// SetNotifier attaches the finalization notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Create files a new draft report. Testers only. Tester and reviewer names
// come from the assignment chain, never from the request.
func (s *Service) Create(ctx context.Context, caller policy.Identity, in CreateInput) (*Report, error) {
	if caller.Role != policy.RoleTester {
		return nil, ErrNotAuthorized
	}
	assetCtx, err := s.store.AssetContext(ctx, in.AssociatedAssetID)
	if err != nil {
		return nil, err
	}
	testerName, err := s.store.FullName(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	r := Report{
		ReportTitle:        in.ReportTitle,
		AssociatedAssetID:  in.AssociatedAssetID,
		TesterName:         testerName,
		TestStartDate:      in.TestStartDate,
		TestEndDate:        in.TestEndDate,
		TotalTestDuration:  in.TotalTestDuration,
		ExecutiveSummary:   in.ExecutiveSummary,
		CurrentStatus:      StatusDraft,
		PreparedBy:         testerName,
		ReviewedBy:         assetCtx.LeaderName,
		NextScheduledTest:  in.NextScheduledTest,
		DistributionEmails: in.DistributionEmails,
	}
	if r.DistributionEmails == nil {
		r.DistributionEmails = []string{}
	}
	created, err := s.store.Create(ctx, r, caller.UserID)
	if err != nil {
		return nil, err
	}
	s.log(ctx, caller.UserID, activity.ActionCreate, "report", created.ID, created.ReportTitle)
	return created, nil
}

// List returns the reports the caller's role may see.
func (s *Service) List(ctx context.Context, caller policy.Identity) ([]Report, error) {
	switch caller.Role {
	case policy.RoleTester:
		return s.store.ByCreator(ctx, caller.UserID)
	case policy.RoleTeamLeader:
		return s.store.ForLeader(ctx, caller.UserID)
	case policy.RoleAdmin, policy.RoleSuperadmin:
		return s.store.Final(ctx)
	case policy.RoleClientAdmin:
		return s.store.FinalForOwner(ctx, caller.UserID)
	default:
		return []Report{}, nil
	}
}

// ForAsset lists the reports filed against one asset.
func (s *Service) ForAsset(ctx context.Context, assetID int64) ([]Report, error) {
	return s.store.ByAsset(ctx, assetID)
}

// Get fetches one report.
func (s *Service) Get(ctx context.Context, id int64) (*Report, error) {
	return s.store.ByID(ctx, id)
}

// Update patches a report. Testers may edit their own drafts but cannot
// finalize; team leaders may edit reports from their assigned testers and
// stamp the finalized date on the transition to Final.
func (s *Service) Update(ctx context.Context, caller policy.Identity, id int64, in UpdateInput) (*Report, error) {
	r, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	finalized := false
	switch caller.Role {
	case policy.RoleTester:
		if r.CreatedBy == nil || r.CreatedBy.ID != caller.UserID {
			return nil, ErrNotAuthorized
		}
		if in.CurrentStatus != nil && *in.CurrentStatus == StatusFinal {
			return nil, ErrFinalReserved
		}
	case policy.RoleTeamLeader:
		assetCtx, err := s.store.AssetContext(ctx, r.AssociatedAssetID)
		if err != nil {
			return nil, err
		}
		if assetCtx.AssignedTesterByID != caller.UserID {
			return nil, ErrNotAuthorized
		}
		if in.CurrentStatus != nil && *in.CurrentStatus == StatusFinal && r.CurrentStatus != StatusFinal {
			t := s.now()
			r.FinalizedDate = &t
			finalized = true
		}
	default:
		return nil, ErrNotAuthorized
	}
	applyUpdate(r, in)
	updated, err := s.store.Update(ctx, r)
	if err != nil {
		return nil, err
	}
	s.log(ctx, caller.UserID, activity.ActionUpdate, "report", id, updated.ReportTitle)
	if finalized && s.notifier != nil {
		s.notifier.ReportFinalized(ctx, updated)
	}
	return updated, nil
}

// Delete removes a report. Testers may delete only their own.
func (s *Service) Delete(ctx context.Context, caller policy.Identity, id int64) error {
	r, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if caller.Role == policy.RoleTester && (r.CreatedBy == nil || r.CreatedBy.ID != caller.UserID) {
		return ErrNotAuthorized
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log(ctx, caller.UserID, activity.ActionDelete, "report", id, r.ReportTitle)
	return nil
}

// Findings lists a report's findings.
func (s *Service) Findings(ctx context.Context, reportID int64) ([]Finding, error) {
	return s.store.FindingsByReport(ctx, reportID)
}

// CreateFinding documents a vulnerability on a report. Testers only. The
// finding ID is generated server side and the report rollup is refreshed.
func (s *Service) CreateFinding(ctx context.Context, caller policy.Identity, reportID int64, in FindingInput) (*Finding, error) {
	if caller.Role != policy.RoleTester {
		return nil, ErrNotAuthorized
	}
	f := Finding{
		ReportID:    reportID,
		FindingID:   newFindingID(s.now()),
		Status:      "New",
		Occurrences: 1,
	}
	applyFinding(&f, in)
	created, err := s.store.InsertFinding(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.refreshSummary(ctx, reportID); err != nil {
		return nil, err
	}
	s.log(ctx, caller.UserID, activity.ActionCreate, "finding", created.ID, created.Title)
	return created, nil
}

// UpdateFinding patches a finding and refreshes the rollup. Testers only.
func (s *Service) UpdateFinding(ctx context.Context, caller policy.Identity, id int64, in FindingInput) (*Finding, error) {
	if caller.Role != policy.RoleTester {
		return nil, ErrNotAuthorized
	}
	f, err := s.store.FindingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyFinding(f, in)
	updated, err := s.store.UpdateFinding(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.refreshSummary(ctx, f.ReportID); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFinding removes a finding and refreshes the rollup. Testers only.
func (s *Service) DeleteFinding(ctx context.Context, caller policy.Identity, id int64) error {
	if caller.Role != policy.RoleTester {
		return ErrNotAuthorized
	}
	f, err := s.store.FindingByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFinding(ctx, id); err != nil {
		return err
	}
	return s.refreshSummary(ctx, f.ReportID)
}

// CreateNote attaches client feedback to a report. Client team members only.
func (s *Service) CreateNote(ctx context.Context, caller policy.Identity, reportID int64, in NoteInput) (*Note, error) {
	if caller.Role != policy.RoleClientUser {
		return nil, ErrNotAuthorized
	}
	n := Note{
		ReportID: reportID,
		AssetID:  in.AssetID,
		Content:  in.Content,
		NoteType: "Review",
		Priority: "Medium",
		Status:   "Open",
	}
	if in.NoteType != nil && *in.NoteType != "" {
		n.NoteType = *in.NoteType
	}
	if in.Priority != nil && *in.Priority != "" {
		n.Priority = *in.Priority
	}
	return s.store.InsertNote(ctx, n, caller.UserID)
}

// ReportNotes lists a report's notes.
func (s *Service) ReportNotes(ctx context.Context, reportID int64) ([]Note, error) {
	return s.store.NotesByReport(ctx, reportID)
}

// AssetNotes lists notes across all reports on an asset.
func (s *Service) AssetNotes(ctx context.Context, assetID int64) ([]Note, error) {
	return s.store.NotesByAsset(ctx, assetID)
}

// UpdateNote patches a note. Only the author may edit it.
func (s *Service) UpdateNote(ctx context.Context, caller policy.Identity, id int64, in NoteInput) (*Note, error) {
	n, err := s.store.NoteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Author == nil || n.Author.ID != caller.UserID {
		return nil, ErrNotAuthorized
	}
	if in.Content != "" {
		n.Content = in.Content
	}
	if in.NoteType != nil && *in.NoteType != "" {
		n.NoteType = *in.NoteType
	}
	if in.Priority != nil && *in.Priority != "" {
		n.Priority = *in.Priority
	}
	if in.Status != nil && *in.Status != "" {
		n.Status = *in.Status
	}
	return s.store.UpdateNote(ctx, n)
}

// DeleteNote removes a note. Only the author may delete it.
func (s *Service) DeleteNote(ctx context.Context, caller policy.Identity, id int64) error {
	n, err := s.store.NoteByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Author == nil || n.Author.ID != caller.UserID {
		return ErrNotAuthorized
	}
	return s.store.DeleteNote(ctx, id)
}

// RenderPDF generates the report document for callers with access to it.
func (s *Service) RenderPDF(ctx context.Context, caller policy.Identity, reportID int64) ([]byte, error) {
	r, err := s.store.ByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	assetCtx, err := s.store.AssetContext(ctx, r.AssociatedAssetID)
	if err != nil {
		return nil, err
	}
	if !canDownload(caller, r, assetCtx) {
		return nil, ErrNotAuthorized
	}
	findings, err := s.store.FindingsByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	html, err := renderReportHTML(r, assetCtx, findings)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, err
	}
	s.log(ctx, caller.UserID, activity.ActionView, "report-pdf", reportID, r.ReportTitle)
	return pdf, nil
}

func canDownload(caller policy.Identity, r *Report, assetCtx *AssetContext) bool {
	switch caller.Role {
	case policy.RoleSuperadmin, policy.RoleAdmin:
		return true
	case policy.RoleTeamLeader:
		return assetCtx.AssignedByID == caller.UserID
	case policy.RoleTester:
		return r.CreatedBy != nil && r.CreatedBy.ID == caller.UserID
	case policy.RoleClientAdmin, policy.RoleClientUser:
		return assetCtx.OwnerID == caller.UserID
	default:
		return false
	}
}

// refreshSummary recomputes the findings rollup. Critical findings mark the
// report Critical; any High, or more than two Medium, mark it Not Good.
func (s *Service) refreshSummary(ctx context.Context, reportID int64) error {
	b, err := s.store.SeverityCounts(ctx, reportID)
	if err != nil {
		return err
	}
	total := b.Critical + b.High + b.Medium + b.Low + b.Info
	rating := RatingGood
	switch {
	case b.Critical > 0:
		rating = RatingCritical
	case b.High > 0 || b.Medium > 2:
		rating = RatingNotGood
	}
	return s.store.UpdateSummary(ctx, reportID, total, b, rating)
}

func newFindingID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("VUL-%d-%s", now.Unix(), suffix)
}

func applyUpdate(r *Report, in UpdateInput) {
	if in.ReportTitle != nil {
		r.ReportTitle = *in.ReportTitle
	}
	if in.TestStartDate != nil {
		r.TestStartDate = *in.TestStartDate
	}
	if in.TestEndDate != nil {
		r.TestEndDate = *in.TestEndDate
	}
	if in.TotalTestDuration != nil {
		r.TotalTestDuration = *in.TotalTestDuration
	}
	if in.ExecutiveSummary != nil {
		r.ExecutiveSummary = *in.ExecutiveSummary
	}
	if in.CurrentStatus != nil {
		r.CurrentStatus = *in.CurrentStatus
	}
	if in.ReviewedBy != nil {
		r.ReviewedBy = *in.ReviewedBy
	}
	if in.NextScheduledTest != nil {
		r.NextScheduledTest = in.NextScheduledTest
	}
	if in.DistributionEmails != nil {
		r.DistributionEmails = in.DistributionEmails
	}
}

func applyFinding(f *Finding, in FindingInput) {
	if in.Title != nil {
		f.Title = *in.Title
	}
	if in.Severity != nil {
		f.Severity = *in.Severity
	}
	if in.Impact != nil {
		f.Impact = *in.Impact
	}
	if in.Likelihood != nil {
		f.Likelihood = *in.Likelihood
	}
	if in.Category != nil {
		f.Category = *in.Category
	}
	if in.Status != nil {
		f.Status = *in.Status
	}
	if in.Occurrences != nil {
		f.Occurrences = *in.Occurrences
	}
	if in.AffectedURLs != nil {
		f.AffectedURLs = in.AffectedURLs
	}
	if in.Description != nil {
		f.Description = *in.Description
	}
	if in.ProofOfConcept != nil {
		f.ProofOfConcept = *in.ProofOfConcept
	}
	if in.Recommendation != nil {
		f.Recommendation = *in.Recommendation
	}
	if in.References != nil {
		f.References = in.References
	}
	if in.AdditionalNotes != nil {
		f.AdditionalNotes = *in.AdditionalNotes
	}
	if f.AffectedURLs == nil {
		f.AffectedURLs = []string{}
	}
	if f.References == nil {
		f.References = []string{}
	}
}

func (s *Service) log(ctx context.Context, userID int64, action, resourceType string, resourceID int64, name string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Log(ctx, activity.Entry{
		UserID:       userID,
		ActivityType: activity.TypeReportManagement,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ResourceName: name,
	})
}
