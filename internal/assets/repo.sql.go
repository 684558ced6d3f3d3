package assets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentora/pentora/internal/platform/db"
	"github.com/pentora/pentora/internal/shared"
)

const assetSelect = `
	SELECT a.id, a.project_name, a.project_description, a.asset_name, a.asset_url, a.asset_type,
		a.technology_stack, a.environment, a.auth_method, a.private_network,
		a.scan_frequency, a.preferred_test_window, a.scope_inclusions, a.scope_exclusions,
		a.notify_on, a.notification_emails, a.plan_tier, a.tests_per_month, a.contract_expiry_date,
		a.tags, a.supporting_docs, a.assigned_at, a.assigned_tester_at, a.created_at, a.updated_at,
		o.id, o.username, o.first_name, o.last_name, o.role,
		al.id, al.username, al.first_name, al.last_name, al.role,
		ab.id, ab.username, ab.first_name, ab.last_name, ab.role,
		ts.id, ts.username, ts.first_name, ts.last_name, ts.role,
		tb.id, tb.username, tb.first_name, tb.last_name, tb.role,
		cb.id, cb.username, cb.first_name, cb.last_name, cb.role
	FROM assets a
	LEFT JOIN users o  ON o.id  = a.project_owner_id
	LEFT JOIN users al ON al.id = a.assigned_to_id
	LEFT JOIN users ab ON ab.id = a.assigned_by_id
	LEFT JOIN users ts ON ts.id = a.assigned_tester_id
	LEFT JOIN users tb ON tb.id = a.assigned_tester_by_id
	LEFT JOIN users cb ON cb.id = a.created_by_id`

// Repository provides PostgreSQL backed persistence for assets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type refScan struct {
	id        *int64
	username  *string
	firstName *string
	lastName  *string
	role      *string
}

func (r *refScan) targets() []any {
	return []any{&r.id, &r.username, &r.firstName, &r.lastName, &r.role}
}

func (r *refScan) ref() *UserRef {
	if r.id == nil {
		return nil
	}
	return &UserRef{
		ID:        *r.id,
		Username:  deref(r.username),
		FirstName: deref(r.firstName),
		LastName:  deref(r.lastName),
		Role:      deref(r.role),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	var owner, assignedTo, assignedBy, tester, testerBy, createdBy refScan
	targets := []any{
		&a.ID, &a.ProjectName, &a.ProjectDescription, &a.AssetName, &a.AssetURL, &a.AssetType,
		&a.TechnologyStack, &a.Environment, &a.AuthMethod, &a.PrivateNetwork,
		&a.ScanFrequency, &a.PreferredWindow, &a.ScopeInclusions, &a.ScopeExclusions,
		&a.NotifyOn, &a.NotificationEmails, &a.PlanTier, &a.TestsPerMonth, &a.ContractExpiry,
		&a.Tags, &a.SupportingDocs, &a.AssignedAt, &a.AssignedTesterAt, &a.CreatedAt, &a.UpdatedAt,
	}
	targets = append(targets, owner.targets()...)
	targets = append(targets, assignedTo.targets()...)
	targets = append(targets, assignedBy.targets()...)
	targets = append(targets, tester.targets()...)
	targets = append(targets, testerBy.targets()...)
	targets = append(targets, createdBy.targets()...)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	a.ProjectOwner = owner.ref()
	a.AssignedTo = assignedTo.ref()
	a.AssignedBy = assignedBy.ref()
	a.AssignedTester = tester.ref()
	a.AssignedTesterBy = testerBy.ref()
	a.CreatedBy = createdBy.ref()
	return &a, nil
}

func collectAssets(rows pgx.Rows) ([]Asset, error) {
	defer rows.Close()
	assets := make([]Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// Create inserts an asset and returns the stored row.
func (r *Repository) Create(ctx context.Context, a Asset, ownerID, createdByID int64) (*Asset, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assets (project_name, project_owner_id, project_description, asset_name, asset_url, asset_type,
			technology_stack, environment, auth_method, private_network,
			scan_frequency, preferred_test_window, scope_inclusions, scope_exclusions,
			notify_on, notification_emails, plan_tier, tests_per_month, contract_expiry_date,
			tags, supporting_docs, created_by_id)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id`,
		a.ProjectName, ownerID, a.ProjectDescription, a.AssetName, a.AssetURL, a.AssetType,
		a.TechnologyStack, a.Environment, a.AuthMethod, a.PrivateNetwork,
		a.ScanFrequency, a.PreferredWindow, a.ScopeInclusions, a.ScopeExclusions,
		a.NotifyOn, a.NotificationEmails, a.PlanTier, a.TestsPerMonth, a.ContractExpiry,
		a.Tags, a.SupportingDocs, createdByID).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.ByID(ctx, id)
}

// ByID fetches one asset with its user references.
func (r *Repository) ByID(ctx context.Context, id int64) (*Asset, error) {
	return scanAsset(r.pool.QueryRow(ctx, assetSelect+` WHERE a.id = $1`, id))
}

// All lists every asset.
func (r *Repository) All(ctx context.Context) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, assetSelect+` ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectAssets(rows)
}

// OwnedOrCreatedBy lists assets the user owns or registered.
func (r *Repository) OwnedOrCreatedBy(ctx context.Context, userID int64) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, assetSelect+`
		WHERE a.project_owner_id = $1 OR a.created_by_id = $1
		ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectAssets(rows)
}

// OwnedBy lists assets the user owns.
func (r *Repository) OwnedBy(ctx context.Context, userID int64) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, assetSelect+`
		WHERE a.project_owner_id = $1 ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectAssets(rows)
}

// AssignedToLeader lists assets assigned to the team leader.
func (r *Repository) AssignedToLeader(ctx context.Context, leaderID int64) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, assetSelect+`
		WHERE a.assigned_to_id = $1 ORDER BY a.assigned_at DESC`, leaderID)
	if err != nil {
		return nil, err
	}
	return collectAssets(rows)
}

// AssignedToTester lists assets assigned to the tester.
func (r *Repository) AssignedToTester(ctx context.Context, testerID int64) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, assetSelect+`
		WHERE a.assigned_tester_id = $1 ORDER BY a.assigned_tester_at DESC`, testerID)
	if err != nil {
		return nil, err
	}
	return collectAssets(rows)
}

// Update writes the mutable asset fields.
func (r *Repository) Update(ctx context.Context, a *Asset) (*Asset, error) {
	var ownerID *int64
	if a.ProjectOwner != nil {
		ownerID = &a.ProjectOwner.ID
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets SET
			project_name = $2, project_owner_id = $3, project_description = $4,
			asset_name = $5, asset_url = $6, asset_type = $7, technology_stack = $8,
			environment = $9, auth_method = $10, private_network = $11,
			scan_frequency = $12, preferred_test_window = $13, scope_inclusions = $14, scope_exclusions = $15,
			notify_on = $16, notification_emails = $17, plan_tier = $18, tests_per_month = $19,
			contract_expiry_date = $20, tags = $21, supporting_docs = $22, updated_at = now()
		WHERE id = $1`,
		a.ID, a.ProjectName, ownerID, a.ProjectDescription,
		a.AssetName, a.AssetURL, a.AssetType, a.TechnologyStack,
		a.Environment, a.AuthMethod, a.PrivateNetwork,
		a.ScanFrequency, a.PreferredWindow, a.ScopeInclusions, a.ScopeExclusions,
		a.NotifyOn, a.NotificationEmails, a.PlanTier, a.TestsPerMonth,
		a.ContractExpiry, a.Tags, a.SupportingDocs)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.ByID(ctx, a.ID)
}

// Delete removes the asset.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignTeamLeader stamps the assignment on the asset and opens a pending
// assignment record.
func (r *Repository) AssignTeamLeader(ctx context.Context, assetID, leaderID, byID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE assets SET assigned_to_id = $2, assigned_by_id = $3, assigned_at = now(), updated_at = now()
			WHERE id = $1`, assetID, leaderID, byID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO asset_assignments (asset_id, assigned_to_id, assigned_by_id, status)
			VALUES ($1, $2, $3, 'pending')`, assetID, leaderID, byID)
		return err
	})
}

// UnassignTeamLeader clears the assignment and its records.
func (r *Repository) UnassignTeamLeader(ctx context.Context, assetID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE assets SET assigned_to_id = NULL, assigned_by_id = NULL, assigned_at = NULL, updated_at = now()
			WHERE id = $1`, assetID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM asset_assignments WHERE asset_id = $1`, assetID)
		return err
	})
}

// AssignTester stamps the tester assignment on the asset.
func (r *Repository) AssignTester(ctx context.Context, assetID, testerID, byID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets SET assigned_tester_id = $2, assigned_tester_by_id = $3, assigned_tester_at = now(), updated_at = now()
		WHERE id = $1`, assetID, testerID, byID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UnassignTester clears the tester assignment.
func (r *Repository) UnassignTester(ctx context.Context, assetID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets SET assigned_tester_id = NULL, assigned_tester_by_id = NULL, assigned_tester_at = NULL, updated_at = now()
		WHERE id = $1`, assetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpsertClientAssignment activates a client-team assignment for the asset.
func (r *Repository) UpsertClientAssignment(ctx context.Context, assetID, memberID, byID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_team_assignments (asset_id, client_team_member_id, assigned_by_id, status)
		VALUES ($1, $2, $3, 'Active')
		ON CONFLICT (asset_id, client_team_member_id) DO UPDATE SET
			status = 'Active', assigned_by_id = EXCLUDED.assigned_by_id, assigned_at = now()`,
		assetID, memberID, byID)
	return err
}

// DeactivateClientAssignment marks the client-team assignment inactive.
func (r *Repository) DeactivateClientAssignment(ctx context.Context, assetID, memberID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE client_team_assignments SET status = 'Inactive'
		WHERE asset_id = $1 AND client_team_member_id = $2`, assetID, memberID)
	return err
}

// ClientAssetsFor lists assets actively assigned to the client team member.
func (r *Repository) ClientAssetsFor(ctx context.Context, memberID int64) ([]ClientTeamAsset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cta.id, cta.assigned_at, cta.status, COALESCE(cta.notes, ''), cta.asset_id
		FROM client_team_assignments cta
		WHERE cta.client_team_member_id = $1 AND cta.status = 'Active'
		ORDER BY cta.assigned_at DESC`, memberID)
	if err != nil {
		return nil, err
	}
	type rowData struct {
		id         int64
		assignedAt time.Time
		status     string
		notes      string
		assetID    int64
	}
	collected := make([]rowData, 0)
	for rows.Next() {
		var rd rowData
		if err := rows.Scan(&rd.id, &rd.assignedAt, &rd.status, &rd.notes, &rd.assetID); err != nil {
			rows.Close()
			return nil, err
		}
		collected = append(collected, rd)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	assets := make([]ClientTeamAsset, 0, len(collected))
	for _, rd := range collected {
		asset, err := r.ByID(ctx, rd.assetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		cta := ClientTeamAsset{Asset: *asset}
		cta.Assignment.ID = rd.id
		cta.Assignment.AssignedAt = rd.assignedAt
		cta.Assignment.Status = rd.status
		cta.Assignment.Notes = rd.notes
		assets = append(assets, cta)
	}
	return assets, nil
}

// ClientAssignmentsFor lists the active client-team assignments on the asset.
func (r *Repository) ClientAssignmentsFor(ctx context.Context, assetID int64) ([]ClientTeamAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cta.id, cta.asset_id, cta.client_team_member_id, COALESCE(cta.assigned_by_id, 0), cta.assigned_at, cta.status, COALESCE(cta.notes, ''),
			m.id, m.username, m.first_name, m.last_name, m.role,
			b.id, b.username, b.first_name, b.last_name, b.role
		FROM client_team_assignments cta
		JOIN users m ON m.id = cta.client_team_member_id
		LEFT JOIN users b ON b.id = cta.assigned_by_id
		WHERE cta.asset_id = $1 AND cta.status = 'Active'
		ORDER BY cta.assigned_at DESC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments := make([]ClientTeamAssignment, 0)
	for rows.Next() {
		var cta ClientTeamAssignment
		var member, by refScan
		targets := []any{&cta.ID, &cta.AssetID, &cta.ClientTeamMemberID, &cta.AssignedByID, &cta.AssignedAt, &cta.Status, &cta.Notes}
		targets = append(targets, member.targets()...)
		targets = append(targets, by.targets()...)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		cta.ClientTeamMember = member.ref()
		cta.AssignedBy = by.ref()
		assignments = append(assignments, cta)
	}
	return assignments, rows.Err()
}

// Counts returns asset totals for the dashboards.
func (r *Repository) Counts(ctx context.Context) (total, assigned, testerAssigned int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE assigned_to_id IS NOT NULL),
			COUNT(*) FILTER (WHERE assigned_tester_id IS NOT NULL)
		FROM assets`).Scan(&total, &assigned, &testerAssigned)
	return total, assigned, testerAssigned, err
}
