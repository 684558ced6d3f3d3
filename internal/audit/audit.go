// Package audit keeps a tamper-evident trail of successful mutations,
// separate from the user-facing activity feed.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit trail row. User is nil when the account was deleted
// after the fact.
type Entry struct {
	ID         int64          `json:"id"`
	UserID     *int64         `json:"userId,omitempty"`
	Username   string         `json:"username,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID *int64         `json:"resourceId,omitempty"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ipAddress"`
	UserAgent  string         `json:"userAgent"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Filters narrows the trail listing. Nil ScopeUserIDs means unscoped.
type Filters struct {
	Resource     string
	Action       string
	ScopeUserIDs []int64
	Limit        int
	Offset       int
}

// Repository persists the audit trail in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds audit Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry.
func (repo *Repository) Insert(ctx context.Context, e Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO audit_trail (user_id, action, resource, resource_id,
			details, ip_address, user_agent, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())`,
		e.UserID, e.Action, e.Resource, e.ResourceID, details, e.IPAddress, e.UserAgent,
	)
	return err
}

// List returns entries newest first, honoring the scope and filters.
func (repo *Repository) List(ctx context.Context, f Filters) ([]Entry, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT t.id, t.user_id, COALESCE(u.username, ''), t.action, t.resource,
		       t.resource_id, t.details, t.ip_address, t.user_agent, t.timestamp
		FROM audit_trail t
		LEFT JOIN users u ON u.id = t.user_id
		WHERE 1=1`)
	args := []any{}
	if f.ScopeUserIDs != nil {
		args = append(args, f.ScopeUserIDs)
		b.WriteString(` AND t.user_id = ANY($1)`)
	}
	if f.Resource != "" {
		args = append(args, f.Resource)
		b.WriteString(` AND t.resource = $` + strconv.Itoa(len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		b.WriteString(` AND t.action = $` + strconv.Itoa(len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	b.WriteString(` ORDER BY t.timestamp DESC LIMIT $` + strconv.Itoa(len(args)))
	args = append(args, f.Offset)
	b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))

	rows, err := repo.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Username, &e.Action, &e.Resource,
			&e.ResourceID, &e.Details, &e.IPAddress, &e.UserAgent, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore prunes entries older than the cutoff and reports how many went.
func (repo *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := repo.pool.Exec(ctx, `DELETE FROM audit_trail WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecorderStore is the slice of Repository the recorder needs.
type RecorderStore interface {
	Insert(ctx context.Context, e Entry) error
}

// Recorder writes audit entries best effort. A failed insert never fails
// the request that triggered it.
type Recorder struct {
	logger *slog.Logger
	store  RecorderStore
}

// NewRecorder builds Recorder instance.
func NewRecorder(logger *slog.Logger, store RecorderStore) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, store: store}
}

// Record appends one entry, swallowing storage errors.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Insert(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("audit trail insert failed",
			slog.String("action", e.Action),
			slog.String("resource", e.Resource),
			slog.Any("error", err))
	}
}
