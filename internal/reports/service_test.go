package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"

	_ "github.com/pentora/pentora/testing"
)

type memStore struct {
	nextReportID  int64
	nextFindingID int64
	nextNoteID    int64
	reports       map[int64]*Report
	findings      map[int64]*Finding
	notes         map[int64]*Note
	assets        map[int64]*AssetContext
	names         map[int64]string
}

func newMemStore() *memStore {
	return &memStore{
		nextReportID:  1,
		nextFindingID: 1,
		nextNoteID:    1,
		reports:       make(map[int64]*Report),
		findings:      make(map[int64]*Finding),
		notes:         make(map[int64]*Note),
		assets:        make(map[int64]*AssetContext),
		names:         make(map[int64]string),
	}
}

func (m *memStore) Create(_ context.Context, r Report, createdByID int64) (*Report, error) {
	r.ID = m.nextReportID
	m.nextReportID++
	r.CreatedBy = &UserRef{ID: createdByID}
	if a, ok := m.assets[r.AssociatedAssetID]; ok {
		r.AssetName = a.AssetName
	}
	m.reports[r.ID] = &r
	out := r
	return &out, nil
}

func (m *memStore) ByID(_ context.Context, id int64) (*Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memStore) ByCreator(_ context.Context, userID int64) ([]Report, error) {
	var out []Report
	for _, r := range m.reports {
		if r.CreatedBy != nil && r.CreatedBy.ID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ForLeader(_ context.Context, leaderID int64) ([]Report, error) {
	var out []Report
	for _, r := range m.reports {
		a, ok := m.assets[r.AssociatedAssetID]
		if !ok || a.AssignedTesterByID != leaderID {
			continue
		}
		if r.CurrentStatus == StatusInReview || r.CurrentStatus == StatusFinal {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) Final(_ context.Context) ([]Report, error) {
	var out []Report
	for _, r := range m.reports {
		if r.CurrentStatus == StatusFinal {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) FinalForOwner(_ context.Context, ownerID int64) ([]Report, error) {
	var out []Report
	for _, r := range m.reports {
		a, ok := m.assets[r.AssociatedAssetID]
		if ok && a.OwnerID == ownerID && r.CurrentStatus == StatusFinal {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ByAsset(_ context.Context, assetID int64) ([]Report, error) {
	var out []Report
	for _, r := range m.reports {
		if r.AssociatedAssetID == assetID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, r *Report) (*Report, error) {
	if _, ok := m.reports[r.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	cp := *r
	m.reports[r.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.reports[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *memStore) AssetContext(_ context.Context, assetID int64) (*AssetContext, error) {
	a, ok := m.assets[assetID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *memStore) FullName(_ context.Context, userID int64) (string, error) {
	name, ok := m.names[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return name, nil
}

func (m *memStore) InsertFinding(_ context.Context, f Finding) (*Finding, error) {
	f.ID = m.nextFindingID
	m.nextFindingID++
	m.findings[f.ID] = &f
	out := f
	return &out, nil
}

func (m *memStore) FindingByID(_ context.Context, id int64) (*Finding, error) {
	f, ok := m.findings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *f
	return &out, nil
}

func (m *memStore) FindingsByReport(_ context.Context, reportID int64) ([]Finding, error) {
	out := []Finding{}
	for _, f := range m.findings {
		if f.ReportID == reportID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memStore) UpdateFinding(_ context.Context, f *Finding) (*Finding, error) {
	if _, ok := m.findings[f.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	cp := *f
	m.findings[f.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) DeleteFinding(_ context.Context, id int64) error {
	if _, ok := m.findings[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.findings, id)
	return nil
}

func (m *memStore) SeverityCounts(_ context.Context, reportID int64) (SeverityBreakdown, error) {
	var b SeverityBreakdown
	for _, f := range m.findings {
		if f.ReportID != reportID {
			continue
		}
		switch f.Severity {
		case "Critical":
			b.Critical++
		case "High":
			b.High++
		case "Medium":
			b.Medium++
		case "Low":
			b.Low++
		case "Info":
			b.Info++
		}
	}
	return b, nil
}

func (m *memStore) UpdateSummary(_ context.Context, reportID int64, total int, b SeverityBreakdown, rating string) error {
	r, ok := m.reports[reportID]
	if !ok {
		return shared.ErrNotFound
	}
	r.TotalFindings = total
	r.SeverityBreakdown = b
	r.OverallRiskRating = rating
	return nil
}

func (m *memStore) InsertNote(_ context.Context, n Note, authorID int64) (*Note, error) {
	n.ID = m.nextNoteID
	m.nextNoteID++
	n.Author = &UserRef{ID: authorID}
	m.notes[n.ID] = &n
	out := n
	return &out, nil
}

func (m *memStore) NoteByID(_ context.Context, id int64) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *n
	return &out, nil
}

func (m *memStore) NotesByReport(_ context.Context, reportID int64) ([]Note, error) {
	out := []Note{}
	for _, n := range m.notes {
		if n.ReportID == reportID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) NotesByAsset(_ context.Context, assetID int64) ([]Note, error) {
	out := []Note{}
	for _, n := range m.notes {
		if n.AssetID == assetID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) UpdateNote(_ context.Context, n *Note) (*Note, error) {
	if _, ok := m.notes[n.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	cp := *n
	m.notes[n.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) DeleteNote(_ context.Context, id int64) error {
	if _, ok := m.notes[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

type fakeRenderer struct{ html string }

func (f *fakeRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.7 fake"), nil
}

func ident(id int64, role policy.Role) policy.Identity {
	return policy.Identity{UserID: id, Username: "u", Role: role}
}

func str(s string) *string { return &s }

// Seeds an asset where leader 5 assigned tester 6 and client admin 10 owns it.
func seedStore() *memStore {
	store := newMemStore()
	store.assets[1] = &AssetContext{
		AssetID:            1,
		AssetName:          "client-shop",
		OwnerID:            10,
		AssignedByID:       2,
		AssignedTesterByID: 5,
		LeaderName:         "Lena Leader",
	}
	store.names[6] = "Tom Tester"
	return store
}

func createDraft(t *testing.T, svc *Service, tester policy.Identity) *Report {
	t.Helper()
	r, err := svc.Create(context.Background(), tester, CreateInput{
		ReportTitle:       "Q3 Pentest",
		AssociatedAssetID: 1,
		TestStartDate:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		TestEndDate:       time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	return r
}

func TestCreateAutoFillsNamesAndDraftStatus(t *testing.T) {
	store := seedStore()
	svc := NewService(store, nil, nil)
	tester := ident(6, policy.RoleTester)

	r := createDraft(t, svc, tester)
	if r.CurrentStatus != StatusDraft {
		t.Fatalf("status = %q, want Draft", r.CurrentStatus)
	}
	if r.TesterName != "Tom Tester" || r.PreparedBy != "Tom Tester" {
		t.Fatalf("tester name = %q / prepared by = %q, want Tom Tester", r.TesterName, r.PreparedBy)
	}
	if r.ReviewedBy != "Lena Leader" {
		t.Fatalf("reviewed by = %q, want the assigning leader", r.ReviewedBy)
	}

	if _, err := svc.Create(context.Background(), ident(5, policy.RoleTeamLeader), CreateInput{
		ReportTitle: "nope", AssociatedAssetID: 1,
		TestStartDate: time.Now(), TestEndDate: time.Now(),
	}); err != ErrNotAuthorized {
		t.Fatalf("leader create error = %v, want ErrNotAuthorized", err)
	}
}

func TestListScopedByRole(t *testing.T) {
	store := seedStore()
	svc := NewService(store, nil, nil)
	tester := ident(6, policy.RoleTester)
	leader := ident(5, policy.RoleTeamLeader)

	draft := createDraft(t, svc, tester)

	// Draft is invisible to the leader until submitted for review.
	forLeader, err := svc.List(context.Background(), leader)
	if err != nil {
		t.Fatalf("leader list: %v", err)
	}
	if len(forLeader) != 0 {
		t.Fatalf("leader sees %d draft reports, want 0", len(forLeader))
	}

	if _, err := svc.Update(context.Background(), tester, draft.ID, UpdateInput{
		CurrentStatus: str(StatusInReview),
	}); err != nil {
		t.Fatalf("submit for review: %v", err)
	}

	forLeader, err = svc.List(context.Background(), leader)
	if err != nil {
		t.Fatalf("leader list after submit: %v", err)
	}
	if len(forLeader) != 1 {
		t.Fatalf("leader sees %d reports after submit, want 1", len(forLeader))
	}

	// Admin and owning client admin only see finalized reports.
	forAdmin, _ := svc.List(context.Background(), ident(1, policy.RoleAdmin))
	if len(forAdmin) != 0 {
		t.Fatalf("admin sees %d non-final reports, want 0", len(forAdmin))
	}
	if _, err := svc.Update(context.Background(), leader, draft.ID, UpdateInput{
		CurrentStatus: str(StatusFinal),
	}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	forAdmin, _ = svc.List(context.Background(), ident(1, policy.RoleAdmin))
	if len(forAdmin) != 1 {
		t.Fatalf("admin sees %d final reports, want 1", len(forAdmin))
	}
	forOwner, _ := svc.List(context.Background(), ident(10, policy.RoleClientAdmin))
	if len(forOwner) != 1 {
		t.Fatalf("owner sees %d final reports, want 1", len(forOwner))
	}
	forStranger, _ := svc.List(context.Background(), ident(11, policy.RoleClientAdmin))
	if len(forStranger) != 0 {
		t.Fatalf("stranger sees %d reports, want 0", len(forStranger))
	}
}

func TestTesterCannotFinalize(t *testing.T) {
	store := seedStore()
	svc := NewService(store, nil, nil)
	tester := ident(6, policy.RoleTester)
	r := createDraft(t, svc, tester)

	_, err := svc.Update(context.Background(), tester, r.ID, UpdateInput{CurrentStatus: str(StatusFinal)})
	if err != ErrFinalReserved {
		t.Fatalf("tester finalize error = %v, want ErrFinalReserved", err)
	}
}

type notifierSpy struct {
	finalized []int64
}

func (n *notifierSpy) ReportFinalized(_ context.Context, r *Report) {
	n.finalized = append(n.finalized, r.ID)
}

func TestLeaderFinalizeStampsDate(t *testing.T) {
	store := seedStore()
	svc := NewService(store, nil, nil)
	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return stamp }
	spy := &notifierSpy{}
	svc.SetNotifier(spy)

	r := createDraft(t, svc, ident(6, policy.RoleTester))

	// A leader who did not assign the tester may not touch the report.
	if _, err := svc.Update(context.Background(), ident(7, policy.RoleTeamLeader), r.ID, UpdateInput{
		CurrentStatus: str(StatusFinal),
	}); err != ErrNotAuthorized {
		t.Fatalf("other leader error = %v, want ErrNotAuthorized", err)
	}

	final, err := svc.Update(context.Background(), ident(5, policy.RoleTeamLeader), r.ID, UpdateInput{
		CurrentStatus: str(StatusFinal),
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.FinalizedDate == nil || !final.FinalizedDate.Equal(stamp) {
		t.Fatalf("finalized date = %v, want %v", final.FinalizedDate, stamp)
	}
	if len(spy.finalized) != 1 || spy.finalized[0] != r.ID {
		t.Fatalf("notifier calls = %v, want [%d]", spy.finalized, r.ID)
	}

	// A second save while already Final must not notify again.
	if _, err := svc.Update(context.Background(), ident(5, policy.RoleTeamLeader), r.ID, UpdateInput{
		CurrentStatus: str(StatusFinal),
	}); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if len(spy.finalized) != 1 {
		t.Fatalf("notifier calls after re-save = %d, want 1", len(spy.finalized))
	}
}

func TestFindingsRollup(t *testing.T) {
	store := seedStore()
	svc := NewService(store, nil, nil)
	tester := ident(6, policy.RoleTester)
	r := createDraft(t, svc, tester)

	add := func(severity string) *Finding {
		f, err := svc.CreateFinding(context.Background(), tester, r.ID, FindingInput{
			Title: str("issue"), Severity: str(severity),
			Impact: str("High"), Likelihood: str("Medium"),
		})
		if err != nil {
			t.Fatalf("create %s finding: %v", severity, err)
		}
		return f
	}

	add("Medium")
	add("Medium")
	current, _ := svc.Get(context.Background(), r.ID)
	if current.OverallRiskRating != RatingGood {
		t.Fatalf("rating with 2 mediums = %q, want Good", current.OverallRiskRating)
	}

	add("Medium")
	current, _ = svc.Get(context.Background(), r.ID)
	if current.OverallRiskRating != RatingNotGood {
		t.Fatalf("rating with 3 mediums = %q, want Not Good", current.OverallRiskRating)
	}

	crit := add("Critical")
	current, _ = svc.Get(context.Background(), r.ID)
	if current.OverallRiskRating != RatingCritical || current.TotalFindings != 4 {
		t.Fatalf("rating = %q total = %d, want Critical / 4", current.OverallRiskRating, current.TotalFindings)
	}
	if !strings.HasPrefix(crit.FindingID, "VUL-") {
		t.Fatalf("finding id = %q, want VUL- prefix", crit.FindingID)
	}

	if err := svc.DeleteFinding(context.Background(), tester, crit.ID); err != nil {
		t.Fatalf("delete finding: %v", err)
	}
	current, _ = svc.Get(context.Background(), r.ID)
	if current.OverallRiskRating != RatingNotGood || current.TotalFindings != 3 {
		t.Fatalf("rating after delete = %q total = %d, want Not Good / 3", current.OverallRiskRating, current.TotalFindings)
	}

	if _, err := svc.CreateFinding(context.Background(), ident(5, policy.RoleTeamLeader), r.ID, FindingInput{
		Title: str("x"), Severity: str("Low"),
	}); err != ErrNotAuthorized {
		t.Fatalf("leader finding error = %v, want ErrNotAuthorized", err)
	}
}

func TestNotesAuthorOnlyEdits(t *testing.T) {
	store := seedStore()
	svc := NewService(store, nil, nil)
	member := ident(20, policy.RoleClientUser)
	r := createDraft(t, svc, ident(6, policy.RoleTester))

	note, err := svc.CreateNote(context.Background(), member, r.ID, NoteInput{
		AssetID: 1, Content: "please clarify scope",
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.NoteType != "Review" || note.Priority != "Medium" || note.Status != "Open" {
		t.Fatalf("note defaults = %s/%s/%s, want Review/Medium/Open", note.NoteType, note.Priority, note.Status)
	}

	if _, err := svc.UpdateNote(context.Background(), ident(21, policy.RoleClientUser), note.ID, NoteInput{
		Content: "hijack",
	}); err != ErrNotAuthorized {
		t.Fatalf("stranger note update error = %v, want ErrNotAuthorized", err)
	}

	updated, err := svc.UpdateNote(context.Background(), member, note.ID, NoteInput{Status: str("Addressed")})
	if err != nil {
		t.Fatalf("author note update: %v", err)
	}
	if updated.Status != "Addressed" {
		t.Fatalf("note status = %q, want Addressed", updated.Status)
	}

	if err := svc.DeleteNote(context.Background(), ident(21, policy.RoleClientUser), note.ID); err != ErrNotAuthorized {
		t.Fatalf("stranger note delete error = %v, want ErrNotAuthorized", err)
	}
	if err := svc.DeleteNote(context.Background(), member, note.ID); err != nil {
		t.Fatalf("author note delete: %v", err)
	}
}

func TestRenderPDFAccess(t *testing.T) {
	store := seedStore()
	renderer := &fakeRenderer{}
	svc := NewService(store, nil, renderer)
	tester := ident(6, policy.RoleTester)
	r := createDraft(t, svc, tester)

	if _, err := svc.RenderPDF(context.Background(), ident(30, policy.RoleClientUser), r.ID); err != ErrNotAuthorized {
		t.Fatalf("stranger pdf error = %v, want ErrNotAuthorized", err)
	}

	pdf, err := svc.RenderPDF(context.Background(), tester, r.ID)
	if err != nil {
		t.Fatalf("tester pdf: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("empty pdf")
	}
	if !strings.Contains(renderer.html, "Q3 Pentest") || !strings.Contains(renderer.html, "client-shop") {
		t.Fatal("rendered html missing report title or asset name")
	}

	// Asset owner and admins may download too.
	if _, err := svc.RenderPDF(context.Background(), ident(10, policy.RoleClientAdmin), r.ID); err != nil {
		t.Fatalf("owner pdf: %v", err)
	}
	if _, err := svc.RenderPDF(context.Background(), ident(2, policy.RoleTeamLeader), r.ID); err != nil {
		t.Fatalf("assigning leader pdf: %v", err)
	}
	if _, err := svc.RenderPDF(context.Background(), ident(5, policy.RoleTeamLeader), r.ID); err != ErrNotAuthorized {
		t.Fatalf("non-assigning leader pdf error = %v, want ErrNotAuthorized", err)
	}
}
