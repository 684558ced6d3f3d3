// Package dashboard builds the per-role landing page aggregates.
package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecentActivity is one feed line on a dashboard.
type RecentActivity struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	User        string    `json:"user"`
}

// TeamMember is the compact member row embedded in dashboards.
type TeamMember struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"isActive"`
}

// TaskCounts breaks down assignment progress.
type TaskCounts struct {
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// TaskDetail is one assigned task line.
type TaskDetail struct {
	ID          int64      `json:"id"`
	ProjectName string     `json:"projectName"`
	Status      string     `json:"status"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
	Client      string     `json:"client"`
}

// Repository executes the read-model aggregates behind the dashboards.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds dashboard Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TotalUsers counts every account.
func (repo *Repository) TotalUsers(ctx context.Context) (int, error) {
	var n int
	err := repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// UsersByRole tallies accounts per role.
func (repo *Repository) UsersByRole(ctx context.Context) (map[string]int, error) {
	rows, err := repo.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, rows.Err()
}

// ActiveUsers counts distinct users with an active session since the cutoff.
// Nil scope means every user.
func (repo *Repository) ActiveUsers(ctx context.Context, since time.Time, scope []int64) (int, error) {
	var n int
	var err error
	if scope == nil {
		err = repo.pool.QueryRow(ctx, `
			SELECT COUNT(DISTINCT user_id) FROM user_sessions
			WHERE login_time >= $1 AND is_active`, since).Scan(&n)
	} else {
		err = repo.pool.QueryRow(ctx, `
			SELECT COUNT(DISTINCT user_id) FROM user_sessions
			WHERE login_time >= $1 AND is_active AND user_id = ANY($2)`, since, scope).Scan(&n)
	}
	return n, err
}

// AssetCounts returns total assets and assets still waiting for a tester.
func (repo *Repository) AssetCounts(ctx context.Context) (total, pending int, err error) {
	err = repo.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE assigned_tester_id IS NULL)
		FROM assets`).Scan(&total, &pending)
	return
}

// ReportCounts returns total reports, drafts and critical-rated reports.
func (repo *Repository) ReportCounts(ctx context.Context) (total, drafts, critical int, err error) {
	err = repo.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE current_status = 'Draft'),
		       COUNT(*) FILTER (WHERE overall_risk_rating = 'Critical')
		FROM reports`).Scan(&total, &drafts, &critical)
	return
}

// TesterReportCounts returns the tester's report totals: all reports, titled
// penetration tests, and critical-rated ones.
func (repo *Repository) TesterReportCounts(ctx context.Context, testerID int64) (total, pentests, critical int, err error) {
	err = repo.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE report_title ILIKE '%Penetration Test%'),
		       COUNT(*) FILTER (WHERE overall_risk_rating = 'Critical')
		FROM reports WHERE created_by_id = $1`, testerID).Scan(&total, &pentests, &critical)
	return
}

// HealthScore computes the share of healthy components, 100 when none exist.
func (repo *Repository) HealthScore(ctx context.Context) (int, error) {
	var total, healthy int
	err := repo.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'healthy')
		FROM system_status`).Scan(&total, &healthy)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 100, nil
	}
	return int(float64(healthy)/float64(total)*100 + 0.5), nil
}

// LeaderTaskCounts breaks down assets handed to the team leader.
func (repo *Repository) LeaderTaskCounts(ctx context.Context, leaderID int64) (TaskCounts, error) {
	var c TaskCounts
	err := repo.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE aa.status = 'completed'),
		       COUNT(*) FILTER (WHERE aa.status IN ('pending', 'in-progress'))
		FROM assets a
		LEFT JOIN asset_assignments aa ON aa.asset_id = a.id
		WHERE a.assigned_to_id = $1`, leaderID).Scan(&c.Assigned, &c.Completed, &c.Pending)
	return c, err
}

// TesterTaskCounts breaks down assets handed to the tester.
func (repo *Repository) TesterTaskCounts(ctx context.Context, testerID int64) (TaskCounts, error) {
	var c TaskCounts
	err := repo.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE aa.status = 'completed'),
		       COUNT(*) FILTER (WHERE aa.status IN ('pending', 'in-progress'))
		FROM assets a
		LEFT JOIN asset_assignments aa ON aa.asset_id = a.id
		WHERE a.assigned_tester_id = $1`, testerID).Scan(&c.Assigned, &c.Completed, &c.Pending)
	return c, err
}

// TesterTaskDetails lists the tester's assigned assets.
func (repo *Repository) TesterTaskDetails(ctx context.Context, testerID int64) ([]TaskDetail, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT a.id, a.project_name, a.assigned_tester_at, COALESCE(o.username, 'Unknown')
		FROM assets a
		LEFT JOIN users o ON o.id = a.project_owner_id
		WHERE a.assigned_tester_id = $1
		ORDER BY a.assigned_tester_at DESC NULLS LAST`, testerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TaskDetail{}
	for rows.Next() {
		d := TaskDetail{Status: "Pending"}
		if err := rows.Scan(&d.ID, &d.ProjectName, &d.AssignedAt, &d.Client); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClientAssetCounts breaks down the client user's shared assets.
func (repo *Repository) ClientAssetCounts(ctx context.Context, memberID int64) (TaskCounts, int, error) {
	var c TaskCounts
	var reports int
	err := repo.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT cta.asset_id),
		       COUNT(DISTINCT cta.asset_id) FILTER (WHERE aa.status = 'completed'),
		       COUNT(DISTINCT cta.asset_id) FILTER (WHERE aa.status IN ('pending', 'in-progress')),
		       (SELECT COUNT(*) FROM reports r
		        WHERE r.asset_id IN (
		            SELECT asset_id FROM client_team_assignments
		            WHERE client_team_member_id = $1 AND status = 'Active'))
		FROM client_team_assignments cta
		LEFT JOIN asset_assignments aa ON aa.asset_id = cta.asset_id
		WHERE cta.client_team_member_id = $1 AND cta.status = 'Active'`,
		memberID).Scan(&c.Assigned, &c.Completed, &c.Pending, &reports)
	return c, reports, err
}

// ClientAssetDetails lists the client user's shared assets.
func (repo *Repository) ClientAssetDetails(ctx context.Context, memberID int64) ([]TaskDetail, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT a.id, a.project_name, cta.assigned_at, COALESCE(o.username, 'Unknown')
		FROM client_team_assignments cta
		JOIN assets a ON a.id = cta.asset_id
		LEFT JOIN users o ON o.id = a.project_owner_id
		WHERE cta.client_team_member_id = $1 AND cta.status = 'Active'
		ORDER BY cta.assigned_at DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TaskDetail{}
	for rows.Next() {
		d := TaskDetail{Status: "Pending"}
		var assignedAt time.Time
		if err := rows.Scan(&d.ID, &d.ProjectName, &assignedAt, &d.Client); err != nil {
			return nil, err
		}
		d.AssignedAt = &assignedAt
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecentActivityFeed lists the latest activity lines. Nil scope is unscoped.
func (repo *Repository) RecentActivityFeed(ctx context.Context, scope []int64, limit int) ([]RecentActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT l.id, COALESCE(u.username, 'Unknown'), l.action, l.activity_type, l.created_at
		FROM activity_logs l
		LEFT JOIN users u ON u.id = l.user_id`
	args := []any{}
	if scope != nil {
		query += ` WHERE l.user_id = ANY($1)`
		args = append(args, scope)
	}
	args = append(args, limit)
	if scope != nil {
		query += ` ORDER BY l.created_at DESC LIMIT $2`
	} else {
		query += ` ORDER BY l.created_at DESC LIMIT $1`
	}
	rows, err := repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RecentActivity{}
	for rows.Next() {
		var a RecentActivity
		var action string
		if err := rows.Scan(&a.ID, &a.User, &action, &a.Type, &a.Timestamp); err != nil {
			return nil, err
		}
		a.Description = a.User + " " + action + " " + a.Type
		out = append(out, a)
	}
	return out, rows.Err()
}

// TeamMembers lists the users in the given ID set.
func (repo *Repository) TeamMembers(ctx context.Context, ids []int64) ([]TeamMember, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT id, username, first_name, last_name, email, role, is_active
		FROM users WHERE id = ANY($1) ORDER BY username`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TeamMember{}
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.Username, &m.FirstName, &m.LastName, &m.Email, &m.Role, &m.IsActive); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
