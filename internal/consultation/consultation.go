// Package consultation receives public consultation requests from the
// marketing site and lets admins triage them.
package consultation

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentora/pentora/internal/shared"
)

// Request statuses.
var Statuses = []string{"pending", "approved", "under-review", "rejected"}

// Services offered on the intake form.
var Services = []string{
	"web-app-security", "api-security", "mobile-app-security",
	"network-security", "cloud-security", "other",
}

// ErrInvalidStatus indicates an unknown triage status.
var ErrInvalidStatus = errors.New("consultation: invalid status")

// Request is a consultation inquiry.
type Request struct {
	ID              int64      `json:"id"`
	FullName        string     `json:"fullName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Company         string     `json:"company"`
	Address         string     `json:"address"`
	Service         string     `json:"service"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	StatusUpdatedBy *int64     `json:"statusUpdatedBy,omitempty"`
	StatusUpdatedAt *time.Time `json:"statusUpdatedAt,omitempty"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Input carries the public intake fields.
type Input struct {
	FullName    string `json:"fullName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	Address     string `json:"address"`
	Service     string `json:"service" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Repository persists consultation requests in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds consultation Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestSelect = `
SELECT id, full_name, email, phone, company, address, service, description,
       status, status_updated_by_id, status_updated_at, notes, created_at, updated_at
FROM consultation_requests`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.ID, &r.FullName, &r.Email, &r.Phone, &r.Company, &r.Address,
		&r.Service, &r.Description, &r.Status, &r.StatusUpdatedBy,
		&r.StatusUpdatedAt, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Create stores a new pending request.
func (repo *Repository) Create(ctx context.Context, in Input) (*Request, error) {
	var id int64
	err := repo.pool.QueryRow(ctx, `
		INSERT INTO consultation_requests (full_name, email, phone, company,
			address, service, description, status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending','',now(),now())
		RETURNING id`,
		in.FullName, in.Email, in.Phone, in.Company, in.Address, in.Service, in.Description,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return repo.ByID(ctx, id)
}

// ByID fetches one request.
func (repo *Repository) ByID(ctx context.Context, id int64) (*Request, error) {
	return scanRequest(repo.pool.QueryRow(ctx, requestSelect+` WHERE id = $1`, id))
}

// All lists every request, newest first.
func (repo *Repository) All(ctx context.Context) ([]Request, error) {
	rows, err := repo.pool.Query(ctx, requestSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateStatus triages the request and stamps who decided.
func (repo *Repository) UpdateStatus(ctx context.Context, id int64, status string, notes string, byID int64) (*Request, error) {
	if !slices.Contains(Statuses, status) {
		return nil, ErrInvalidStatus
	}
	tag, err := repo.pool.Exec(ctx, `
		UPDATE consultation_requests
		SET status = $2, status_updated_by_id = $3, status_updated_at = now(),
		    notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END,
		    updated_at = now()
		WHERE id = $1`, id, status, byID, notes)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return repo.ByID(ctx, id)
}

// Delete removes a request.
func (repo *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := repo.pool.Exec(ctx, `DELETE FROM consultation_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
