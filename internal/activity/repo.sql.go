package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for activity records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEntry stores an activity log record.
func (r *Repository) InsertEntry(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activity_logs (user_id, activity_type, action, resource_type, resource_id, resource_name, details, ip_address, user_agent, session_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7, NULLIF($8, ''), $9, $10, $11)`,
		e.UserID, e.ActivityType, e.Action, e.ResourceType, e.ResourceID, e.ResourceName,
		detailsOrEmpty(e.Details), e.IPAddress, e.UserAgent, e.SessionID, timeOrNow(e.CreatedAt))
	return err
}

// UpsertSession opens a session row, reactivating it if the token was seen
// before.
func (r *Repository) UpsertSession(ctx context.Context, userID int64, sessionID, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_sessions (user_id, session_id, login_time, ip_address, user_agent, is_active, last_activity)
		VALUES ($1, $2, now(), NULLIF($3, ''), $4, TRUE, now())
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			is_active = TRUE,
			logout_time = NULL,
			last_activity = now()`,
		userID, sessionID, ip, ua)
	return err
}

// TouchSession bumps the session's last-activity timestamp.
func (r *Repository) TouchSession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE user_sessions SET last_activity = now() WHERE session_id = $1`, sessionID)
	return err
}

// CloseSession marks the session logged out.
func (r *Repository) CloseSession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_sessions SET logout_time = now(), is_active = FALSE WHERE session_id = $1`, sessionID)
	return err
}

// CloseIdleSessions deactivates sessions idle longer than the cutoff and
// returns how many were closed. Used by the background sweeper.
func (r *Repository) CloseIdleSessions(ctx context.Context, idleBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_sessions SET logout_time = now(), is_active = FALSE
		WHERE is_active = TRUE AND last_activity < $1`, idleBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CloseSessionsForUser deactivates every live session for the user.
func (r *Repository) CloseSessionsForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_sessions SET logout_time = now(), is_active = FALSE
		WHERE user_id = $1 AND is_active = TRUE`, userID)
	return err
}

// InsertAssetEntry stores an asset activity record.
func (r *Repository) InsertAssetEntry(ctx context.Context, e AssetEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO asset_activity_logs (asset_id, user_id, activity_type, action, old_values, new_values, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.AssetID, e.UserID, e.ActivityType, e.Action,
		detailsOrEmpty(e.OldValues), detailsOrEmpty(e.NewValues), detailsOrEmpty(e.Details), timeOrNow(e.CreatedAt))
	return err
}

// ListEntries returns activity logs matching the filter, newest first.
func (r *Repository) ListEntries(ctx context.Context, f Filter) ([]Entry, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT l.id, l.user_id, u.username, l.activity_type, l.action,
			COALESCE(l.resource_type, ''), COALESCE(l.resource_id, 0), COALESCE(l.resource_name, ''),
			l.details, COALESCE(l.ip_address::text, ''), COALESCE(l.user_agent, ''), COALESCE(l.session_id, ''), l.created_at
		FROM activity_logs l
		JOIN users u ON u.id = l.user_id
		WHERE 1=1`)
	args := make([]any, 0, 6)
	appendScope(&sb, &args, "l.user_id", f.ScopeUserIDs)
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		fmt.Fprintf(&sb, " AND l.created_at >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		fmt.Fprintf(&sb, " AND l.created_at <= $%d", len(args))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		fmt.Fprintf(&sb, " AND l.user_id = $%d", len(args))
	}
	if f.ActivityType != "" {
		args = append(args, f.ActivityType)
		fmt.Fprintf(&sb, " AND l.activity_type = $%d", len(args))
	}
	sb.WriteString(" ORDER BY l.created_at DESC")
	appendWindow(&sb, &args, f)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.ActivityType, &e.Action,
			&e.ResourceType, &e.ResourceID, &e.ResourceName,
			&e.Details, &e.IPAddress, &e.UserAgent, &e.SessionID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListSessions returns user sessions matching the filter, newest login first.
func (r *Repository) ListSessions(ctx context.Context, f Filter) ([]Session, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT s.id, s.user_id, u.username, s.session_id, s.login_time, s.logout_time,
			COALESCE(s.ip_address::text, ''), COALESCE(s.user_agent, ''), s.is_active, s.last_activity
		FROM user_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE 1=1`)
	args := make([]any, 0, 6)
	appendScope(&sb, &args, "s.user_id", f.ScopeUserIDs)
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		fmt.Fprintf(&sb, " AND s.login_time >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		fmt.Fprintf(&sb, " AND s.login_time <= $%d", len(args))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		fmt.Fprintf(&sb, " AND s.user_id = $%d", len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		fmt.Fprintf(&sb, " AND s.is_active = $%d", len(args))
	}
	sb.WriteString(" ORDER BY s.login_time DESC")
	appendWindow(&sb, &args, f)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := make([]Session, 0)
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &s.SessionID, &s.LoginTime, &s.LogoutTime,
			&s.IPAddress, &s.UserAgent, &s.IsActive, &s.LastActivity); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListAssetEntries returns asset activity logs matching the filter.
func (r *Repository) ListAssetEntries(ctx context.Context, f Filter) ([]AssetEntry, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT l.id, l.asset_id, a.name, l.user_id, u.username, l.activity_type, l.action,
			l.old_values, l.new_values, l.details, l.created_at
		FROM asset_activity_logs l
		JOIN users u ON u.id = l.user_id
		JOIN assets a ON a.id = l.asset_id
		WHERE 1=1`)
	args := make([]any, 0, 6)
	appendScope(&sb, &args, "l.user_id", f.ScopeUserIDs)
	if f.AssetID != 0 {
		args = append(args, f.AssetID)
		fmt.Fprintf(&sb, " AND l.asset_id = $%d", len(args))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		fmt.Fprintf(&sb, " AND l.created_at >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		fmt.Fprintf(&sb, " AND l.created_at <= $%d", len(args))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		fmt.Fprintf(&sb, " AND l.user_id = $%d", len(args))
	}
	if f.ActivityType != "" {
		args = append(args, f.ActivityType)
		fmt.Fprintf(&sb, " AND l.activity_type = $%d", len(args))
	}
	sb.WriteString(" ORDER BY l.created_at DESC")
	appendWindow(&sb, &args, f)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]AssetEntry, 0)
	for rows.Next() {
		var e AssetEntry
		if err := rows.Scan(&e.ID, &e.AssetID, &e.AssetName, &e.UserID, &e.Username,
			&e.ActivityType, &e.Action, &e.OldValues, &e.NewValues, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByType groups activity logs by type within the window.
func (r *Repository) CountByType(ctx context.Context, f Filter) ([]TypeCount, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT activity_type, COUNT(*) FROM activity_logs WHERE 1=1`)
	args := make([]any, 0, 4)
	appendScope(&sb, &args, "user_id", f.ScopeUserIDs)
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		fmt.Fprintf(&sb, " AND created_at <= $%d", len(args))
	}
	sb.WriteString(" GROUP BY activity_type ORDER BY activity_type")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make([]TypeCount, 0)
	for rows.Next() {
		var c TypeCount
		if err := rows.Scan(&c.ActivityType, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// CountActiveSessions counts live sessions within the scope.
func (r *Repository) CountActiveSessions(ctx context.Context, scope []int64) (int64, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM user_sessions WHERE is_active = TRUE`)
	args := make([]any, 0, 1)
	appendScope(&sb, &args, "user_id", scope)
	var count int64
	err := r.pool.QueryRow(ctx, sb.String(), args...).Scan(&count)
	return count, err
}

// DeleteEntriesBefore prunes old activity logs. Used by the retention job.
func (r *Repository) DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func appendScope(sb *strings.Builder, args *[]any, column string, scope []int64) {
	if scope == nil {
		return
	}
	*args = append(*args, scope)
	fmt.Fprintf(sb, " AND %s = ANY($%d)", column, len(*args))
}

func appendWindow(sb *strings.Builder, args *[]any, f Filter) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	*args = append(*args, limit)
	fmt.Fprintf(sb, " LIMIT $%d", len(*args))
	if f.Offset > 0 {
		*args = append(*args, f.Offset)
		fmt.Fprintf(sb, " OFFSET $%d", len(*args))
	}
}

func detailsOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
