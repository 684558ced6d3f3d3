package reports

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentora/pentora/internal/shared"
)

// Repository persists reports, findings and notes in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds report Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportSelect = `
SELECT r.id, r.report_title, r.asset_id, COALESCE(a.asset_name, ''),
       r.tester_name, r.test_start_date, r.test_end_date, r.total_test_duration,
       r.executive_summary, r.total_findings, r.severity_breakdown,
       r.overall_risk_rating, r.current_status, r.prepared_by, r.reviewed_by,
       r.report_finalized_date, r.next_scheduled_test, r.distribution_emails,
       r.created_at, r.updated_at,
       u.id, u.username, u.first_name, u.last_name, u.role
FROM reports r
LEFT JOIN assets a ON a.id = r.asset_id
LEFT JOIN users u ON u.id = r.created_by_id`

func scanReport(row pgx.Row) (*Report, error) {
	var (
		r         Report
		creatorID *int64
		username  *string
		firstName *string
		lastName  *string
		role      *string
	)
	err := row.Scan(
		&r.ID, &r.ReportTitle, &r.AssociatedAssetID, &r.AssetName,
		&r.TesterName, &r.TestStartDate, &r.TestEndDate, &r.TotalTestDuration,
		&r.ExecutiveSummary, &r.TotalFindings, &r.SeverityBreakdown,
		&r.OverallRiskRating, &r.CurrentStatus, &r.PreparedBy, &r.ReviewedBy,
		&r.FinalizedDate, &r.NextScheduledTest, &r.DistributionEmails,
		&r.CreatedAt, &r.UpdatedAt,
		&creatorID, &username, &firstName, &lastName, &role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if creatorID != nil {
		r.CreatedBy = &UserRef{ID: *creatorID}
		if username != nil {
			r.CreatedBy.Username = *username
		}
		if firstName != nil {
			r.CreatedBy.FirstName = *firstName
		}
		if lastName != nil {
			r.CreatedBy.LastName = *lastName
		}
		if role != nil {
			r.CreatedBy.Role = *role
		}
	}
	if r.DistributionEmails == nil {
		r.DistributionEmails = []string{}
	}
	return &r, nil
}

func (repo *Repository) collect(ctx context.Context, query string, args ...any) ([]Report, error) {
	rows, err := repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if out == nil {
		out = []Report{}
	}
	return out, rows.Err()
}

// Create inserts a report and returns the stored row.
func (repo *Repository) Create(ctx context.Context, r Report, createdByID int64) (*Report, error) {
	var id int64
	err := repo.pool.QueryRow(ctx, `
		INSERT INTO reports (
			report_title, asset_id, tester_name, test_start_date, test_end_date,
			total_test_duration, executive_summary, total_findings,
			severity_breakdown, overall_risk_rating, current_status,
			prepared_by, reviewed_by, next_scheduled_test, distribution_emails,
			created_by_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,'',$9,$10,$11,$12,$13,$14,now(),now())
		RETURNING id`,
		r.ReportTitle, r.AssociatedAssetID, r.TesterName, r.TestStartDate, r.TestEndDate,
		r.TotalTestDuration, r.ExecutiveSummary, r.SeverityBreakdown, r.CurrentStatus,
		r.PreparedBy, r.ReviewedBy, r.NextScheduledTest, r.DistributionEmails, createdByID,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return repo.ByID(ctx, id)
}

// ByID fetches one report.
func (repo *Repository) ByID(ctx context.Context, id int64) (*Report, error) {
	return scanReport(repo.pool.QueryRow(ctx, reportSelect+` WHERE r.id = $1`, id))
}

// ByCreator lists a tester's own reports, any status.
func (repo *Repository) ByCreator(ctx context.Context, userID int64) ([]Report, error) {
	return repo.collect(ctx, reportSelect+` WHERE r.created_by_id = $1 ORDER BY r.created_at DESC`, userID)
}

// ForLeader lists In Review and Final reports on assets whose tester the
// leader assigned.
func (repo *Repository) ForLeader(ctx context.Context, leaderID int64) ([]Report, error) {
	return repo.collect(ctx, reportSelect+`
		WHERE a.assigned_tester_by_id = $1 AND r.current_status IN ('In Review', 'Final')
		ORDER BY r.created_at DESC`, leaderID)
}

// Final lists all finalized reports.
func (repo *Repository) Final(ctx context.Context) ([]Report, error) {
	return repo.collect(ctx, reportSelect+` WHERE r.current_status = 'Final' ORDER BY r.created_at DESC`)
}

// FinalForOwner lists finalized reports on assets owned by the user.
func (repo *Repository) FinalForOwner(ctx context.Context, ownerID int64) ([]Report, error) {
	return repo.collect(ctx, reportSelect+`
		WHERE r.current_status = 'Final' AND a.project_owner_id = $1
		ORDER BY r.created_at DESC`, ownerID)
}

// ByAsset lists every report filed against the asset.
func (repo *Repository) ByAsset(ctx context.Context, assetID int64) ([]Report, error) {
	return repo.collect(ctx, reportSelect+` WHERE r.asset_id = $1 ORDER BY r.created_at DESC`, assetID)
}

// Update rewrites the mutable report fields.
func (repo *Repository) Update(ctx context.Context, r *Report) (*Report, error) {
	tag, err := repo.pool.Exec(ctx, `
		UPDATE reports SET
			report_title = $2, test_start_date = $3, test_end_date = $4,
			total_test_duration = $5, executive_summary = $6,
			current_status = $7, reviewed_by = $8, report_finalized_date = $9,
			next_scheduled_test = $10, distribution_emails = $11, updated_at = now()
		WHERE id = $1`,
		r.ID, r.ReportTitle, r.TestStartDate, r.TestEndDate,
		r.TotalTestDuration, r.ExecutiveSummary,
		r.CurrentStatus, r.ReviewedBy, r.FinalizedDate,
		r.NextScheduledTest, r.DistributionEmails,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return repo.ByID(ctx, r.ID)
}

// Delete removes a report. Findings and notes cascade in the schema.
func (repo *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := repo.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssetContext loads the asset state report authorization depends on.
func (repo *Repository) AssetContext(ctx context.Context, assetID int64) (*AssetContext, error) {
	var c AssetContext
	err := repo.pool.QueryRow(ctx, `
		SELECT a.id, a.asset_name,
		       COALESCE(a.project_owner_id, 0),
		       COALESCE(a.assigned_by_id, 0),
		       COALESCE(a.assigned_tester_by_id, 0),
		       COALESCE(TRIM(l.first_name || ' ' || l.last_name), '')
		FROM assets a
		LEFT JOIN users l ON l.id = a.assigned_tester_by_id
		WHERE a.id = $1`, assetID,
	).Scan(&c.AssetID, &c.AssetName, &c.OwnerID, &c.AssignedByID, &c.AssignedTesterByID, &c.LeaderName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FullName returns "First Last" for the user.
func (repo *Repository) FullName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := repo.pool.QueryRow(ctx,
		`SELECT TRIM(first_name || ' ' || last_name) FROM users WHERE id = $1`, userID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	return name, err
}

const findingSelect = `
SELECT id, report_id, finding_id, vulnerability_title, severity, impact,
       likelihood, category, vulnerability_status, number_of_occurrences,
       affected_urls, description, proof_of_concept, recommendation,
       "references", additional_notes, created_at, updated_at
FROM vulnerability_findings`

func scanFinding(row pgx.Row) (*Finding, error) {
	var f Finding
	err := row.Scan(
		&f.ID, &f.ReportID, &f.FindingID, &f.Title, &f.Severity, &f.Impact,
		&f.Likelihood, &f.Category, &f.Status, &f.Occurrences,
		&f.AffectedURLs, &f.Description, &f.ProofOfConcept, &f.Recommendation,
		&f.References, &f.AdditionalNotes, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if f.AffectedURLs == nil {
		f.AffectedURLs = []string{}
	}
	if f.References == nil {
		f.References = []string{}
	}
	return &f, nil
}

// InsertFinding stores a new finding.
func (repo *Repository) InsertFinding(ctx context.Context, f Finding) (*Finding, error) {
	var id int64
	err := repo.pool.QueryRow(ctx, `
		INSERT INTO vulnerability_findings (
			report_id, finding_id, vulnerability_title, severity, impact,
			likelihood, category, vulnerability_status, number_of_occurrences,
			affected_urls, description, proof_of_concept, recommendation,
			"references", additional_notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
		RETURNING id`,
		f.ReportID, f.FindingID, f.Title, f.Severity, f.Impact,
		f.Likelihood, f.Category, f.Status, f.Occurrences,
		f.AffectedURLs, f.Description, f.ProofOfConcept, f.Recommendation,
		f.References, f.AdditionalNotes,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return repo.FindingByID(ctx, id)
}

// FindingByID fetches one finding.
func (repo *Repository) FindingByID(ctx context.Context, id int64) (*Finding, error) {
	return scanFinding(repo.pool.QueryRow(ctx, findingSelect+` WHERE id = $1`, id))
}

// FindingsByReport lists a report's findings, newest first.
func (repo *Repository) FindingsByReport(ctx context.Context, reportID int64) ([]Finding, error) {
	rows, err := repo.pool.Query(ctx, findingSelect+` WHERE report_id = $1 ORDER BY created_at DESC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Finding{}
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// UpdateFinding rewrites the mutable finding fields.
func (repo *Repository) UpdateFinding(ctx context.Context, f *Finding) (*Finding, error) {
	tag, err := repo.pool.Exec(ctx, `
		UPDATE vulnerability_findings SET
			vulnerability_title = $2, severity = $3, impact = $4, likelihood = $5,
			category = $6, vulnerability_status = $7, number_of_occurrences = $8,
			affected_urls = $9, description = $10, proof_of_concept = $11,
			recommendation = $12, "references" = $13, additional_notes = $14,
			updated_at = now()
		WHERE id = $1`,
		f.ID, f.Title, f.Severity, f.Impact, f.Likelihood,
		f.Category, f.Status, f.Occurrences,
		f.AffectedURLs, f.Description, f.ProofOfConcept,
		f.Recommendation, f.References, f.AdditionalNotes,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return repo.FindingByID(ctx, f.ID)
}

// DeleteFinding removes a finding.
func (repo *Repository) DeleteFinding(ctx context.Context, id int64) error {
	tag, err := repo.pool.Exec(ctx, `DELETE FROM vulnerability_findings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SeverityCounts tallies the report's findings per severity.
func (repo *Repository) SeverityCounts(ctx context.Context, reportID int64) (SeverityBreakdown, error) {
	var b SeverityBreakdown
	err := repo.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE severity = 'Critical'),
		       COUNT(*) FILTER (WHERE severity = 'High'),
		       COUNT(*) FILTER (WHERE severity = 'Medium'),
		       COUNT(*) FILTER (WHERE severity = 'Low'),
		       COUNT(*) FILTER (WHERE severity = 'Info')
		FROM vulnerability_findings WHERE report_id = $1`, reportID,
	).Scan(&b.Critical, &b.High, &b.Medium, &b.Low, &b.Info)
	return b, err
}

// UpdateSummary stores the recomputed findings rollup on the report.
func (repo *Repository) UpdateSummary(ctx context.Context, reportID int64, total int, b SeverityBreakdown, rating string) error {
	_, err := repo.pool.Exec(ctx, `
		UPDATE reports SET total_findings = $2, severity_breakdown = $3,
		       overall_risk_rating = $4, updated_at = now()
		WHERE id = $1`, reportID, total, b, rating)
	return err
}

const noteSelect = `
SELECT n.id, n.report_id, n.asset_id, n.note_content, n.note_type, n.priority,
       n.status, n.created_at,
       u.id, u.username, u.first_name, u.last_name, u.role
FROM report_notes n
JOIN users u ON u.id = n.author_id`

func scanNote(row pgx.Row) (*Note, error) {
	var (
		n      Note
		author UserRef
	)
	err := row.Scan(
		&n.ID, &n.ReportID, &n.AssetID, &n.Content, &n.NoteType, &n.Priority,
		&n.Status, &n.CreatedAt,
		&author.ID, &author.Username, &author.FirstName, &author.LastName, &author.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	n.Author = &author
	return &n, nil
}

func (repo *Repository) collectNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// InsertNote stores a new note.
func (repo *Repository) InsertNote(ctx context.Context, n Note, authorID int64) (*Note, error) {
	var id int64
	err := repo.pool.QueryRow(ctx, `
		INSERT INTO report_notes (report_id, asset_id, author_id, note_content,
			note_type, priority, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		RETURNING id`,
		n.ReportID, n.AssetID, authorID, n.Content, n.NoteType, n.Priority, n.Status,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return repo.NoteByID(ctx, id)
}

// NoteByID fetches one note with its author.
func (repo *Repository) NoteByID(ctx context.Context, id int64) (*Note, error) {
	return scanNote(repo.pool.QueryRow(ctx, noteSelect+` WHERE n.id = $1`, id))
}

// NotesByReport lists a report's notes, newest first.
func (repo *Repository) NotesByReport(ctx context.Context, reportID int64) ([]Note, error) {
	return repo.collectNotes(ctx, noteSelect+` WHERE n.report_id = $1 ORDER BY n.created_at DESC`, reportID)
}

// NotesByAsset lists notes across all of the asset's reports, newest first.
func (repo *Repository) NotesByAsset(ctx context.Context, assetID int64) ([]Note, error) {
	return repo.collectNotes(ctx, noteSelect+` WHERE n.asset_id = $1 ORDER BY n.created_at DESC`, assetID)
}

// UpdateNote rewrites the mutable note fields.
func (repo *Repository) UpdateNote(ctx context.Context, n *Note) (*Note, error) {
	tag, err := repo.pool.Exec(ctx, `
		UPDATE report_notes SET note_content = $2, note_type = $3, priority = $4, status = $5
		WHERE id = $1`,
		n.ID, n.Content, n.NoteType, n.Priority, n.Status,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return repo.NoteByID(ctx, n.ID)
}

// DeleteNote removes a note.
func (repo *Repository) DeleteNote(ctx context.Context, id int64) error {
	tag, err := repo.pool.Exec(ctx, `DELETE FROM report_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
