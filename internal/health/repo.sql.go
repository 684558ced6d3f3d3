package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists system status and API logs in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds health Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertStatus records a component's current state, keyed by component name.
func (repo *Repository) UpsertStatus(ctx context.Context, component, status, details string) error {
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO system_status (component, status, details, last_checked)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (component)
		DO UPDATE SET status = EXCLUDED.status, details = EXCLUDED.details,
		              last_checked = now()`,
		component, status, details,
	)
	return err
}

// Statuses lists every component status ordered by name.
func (repo *Repository) Statuses(ctx context.Context) ([]ComponentStatus, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT id, component, status, COALESCE(details, ''), last_checked
		FROM system_status ORDER BY component`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ComponentStatus{}
	for rows.Next() {
		var s ComponentStatus
		if err := rows.Scan(&s.ID, &s.Component, &s.Status, &s.Details, &s.LastChecked); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertAPILog records one API call.
func (repo *Repository) InsertAPILog(ctx context.Context, l APILog) error {
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO api_logs (method, endpoint, status_code, response_time, timestamp)
		VALUES ($1, $2, $3, $4, now())`,
		l.Method, l.Endpoint, l.StatusCode, l.ResponseTime,
	)
	return err
}

// RecentAPILogs lists the latest calls, newest first.
func (repo *Repository) RecentAPILogs(ctx context.Context, limit int) ([]APILog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := repo.pool.Query(ctx, `
		SELECT id, method, endpoint, status_code, COALESCE(response_time, 0), timestamp
		FROM api_logs ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []APILog{}
	for rows.Next() {
		var l APILog
		if err := rows.Scan(&l.ID, &l.Method, &l.Endpoint, &l.StatusCode, &l.ResponseTime, &l.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteAPILogsBefore prunes old API logs.
func (repo *Repository) DeleteAPILogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := repo.pool.Exec(ctx, `DELETE FROM api_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping verifies database connectivity.
func (repo *Repository) Ping(ctx context.Context) error {
	return repo.pool.Ping(ctx)
}
