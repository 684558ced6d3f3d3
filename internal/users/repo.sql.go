package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/platform/db"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
)

const userColumns = `id, username, email, first_name, last_name, role, is_active, last_login, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for user management.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUserDTO(row pgx.Row) (auth.UserDTO, error) {
	var dto auth.UserDTO
	var lastLogin *time.Time
	err := row.Scan(&dto.ID, &dto.Username, &dto.Email, &dto.FirstName, &dto.LastName, &dto.Role, &dto.IsActive, &lastLogin, &dto.CreatedAt, &dto.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.UserDTO{}, shared.ErrNotFound
		}
		return auth.UserDTO{}, err
	}
	dto.LastLogin = lastLogin
	dto.RoleLabel = policy.Role(dto.Role).Label()
	return dto, nil
}

// UsernameExists reports whether the username is taken.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// EmailExists reports whether the email is taken.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// CreateWithRelationship inserts the user and the creator relationship in one
// transaction. The plain password is kept on the relationship so the creator
// can hand over credentials.
func (r *Repository) CreateWithRelationship(ctx context.Context, creatorID int64, u auth.User, plainPassword string) (auth.UserDTO, error) {
	var created auth.UserDTO
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (username, email, password_hash, first_name, last_name, role, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING `+userColumns,
			u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role))
		dto, err := scanUserDTO(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return auth.ErrDuplicateUser
			}
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_relationships (creator_id, created_user_id, plain_password)
			VALUES ($1, $2, $3)`, creatorID, dto.ID, plainPassword); err != nil {
			return err
		}
		created = dto
		return nil
	})
	return created, err
}

// CreatedBy lists the users created by the creator, including the stored
// plain passwords.
func (r *Repository) CreatedBy(ctx context.Context, creatorID int64) ([]CreatedUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.`+joinColumns("u")+`, COALESCE(rel.plain_password, '')
		FROM user_relationships rel
		JOIN users u ON u.id = rel.created_user_id
		WHERE rel.creator_id = $1
		ORDER BY u.created_at`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCreatedUsers(rows)
}

// CreatedByWithRole lists active users of the given role created by the
// creator.
func (r *Repository) CreatedByWithRole(ctx context.Context, creatorID int64, role policy.Role) ([]CreatedUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.`+joinColumns("u")+`, COALESCE(rel.plain_password, '')
		FROM user_relationships rel
		JOIN users u ON u.id = rel.created_user_id
		WHERE rel.creator_id = $1 AND u.role = $2 AND u.is_active = TRUE
		ORDER BY u.created_at`, creatorID, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCreatedUsers(rows)
}

// IsCreator reports whether creator onboarded the target user.
func (r *Repository) IsCreator(ctx context.Context, creatorID, targetID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_relationships WHERE creator_id = $1 AND created_user_id = $2)`,
		creatorID, targetID).Scan(&exists)
	return exists, err
}

// AssignedTo lists the users assigned to the assignee.
func (r *Repository) AssignedTo(ctx context.Context, assigneeID int64) ([]AssignedUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.`+joinColumns("u")+`, a.created_at, a.assigner_id
		FROM user_assignments a
		JOIN users u ON u.id = a.assigned_user_id
		WHERE a.assignee_id = $1
		ORDER BY a.created_at`, assigneeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assigned := make([]AssignedUser, 0)
	for rows.Next() {
		var au AssignedUser
		var lastLogin *time.Time
		if err := rows.Scan(&au.ID, &au.Username, &au.Email, &au.FirstName, &au.LastName, &au.Role, &au.IsActive, &lastLogin, &au.CreatedAt, &au.UpdatedAt, &au.AssignedAt, &au.AssignerID); err != nil {
			return nil, err
		}
		au.LastLogin = lastLogin
		au.RoleLabel = policy.Role(au.Role).Label()
		assigned = append(assigned, au)
	}
	return assigned, rows.Err()
}

// AssignmentsBy lists the assignments the assigner has made.
func (r *Repository) AssignmentsBy(ctx context.Context, assignerID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.assigned_user_id, a.assignee_id, a.created_at, u.`+joinColumns("u")+`
		FROM user_assignments a
		JOIN users u ON u.id = a.assigned_user_id
		WHERE a.assigner_id = $1
		ORDER BY a.created_at`, assignerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments := make([]Assignment, 0)
	for rows.Next() {
		var asg Assignment
		var lastLogin *time.Time
		if err := rows.Scan(&asg.ID, &asg.AssignedUserID, &asg.AssigneeID, &asg.AssignedAt,
			&asg.AssignedUser.ID, &asg.AssignedUser.Username, &asg.AssignedUser.Email,
			&asg.AssignedUser.FirstName, &asg.AssignedUser.LastName, &asg.AssignedUser.Role,
			&asg.AssignedUser.IsActive, &lastLogin, &asg.AssignedUser.CreatedAt, &asg.AssignedUser.UpdatedAt); err != nil {
			return nil, err
		}
		asg.AssignedUser.LastLogin = lastLogin
		asg.AssignedUser.RoleLabel = policy.Role(asg.AssignedUser.Role).Label()
		assignments = append(assignments, asg)
	}
	return assignments, rows.Err()
}

// UpsertAssignment creates the assignment or refreshes its assigner.
func (r *Repository) UpsertAssignment(ctx context.Context, assignerID, assignedUserID, assigneeID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_assignments (assigner_id, assigned_user_id, assignee_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (assigned_user_id, assignee_id) DO UPDATE SET
			assigner_id = EXCLUDED.assigner_id,
			updated_at = now()`,
		assignerID, assignedUserID, assigneeID)
	return err
}

// DeleteAssignment removes the assignment.
func (r *Repository) DeleteAssignment(ctx context.Context, assignedUserID, assigneeID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_assignments WHERE assigned_user_id = $1 AND assignee_id = $2`,
		assignedUserID, assigneeID)
	return err
}

// DeleteUserCascade removes the user and every relationship, assignment and
// session row pointing at them.
func (r *Repository) DeleteUserCascade(ctx context.Context, userID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_relationships WHERE creator_id = $1 OR created_user_id = $1`, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_assignments WHERE assigned_user_id = $1 OR assignee_id = $1 OR assigner_id = $1`, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// All lists every user ordered by creation time.
func (r *Repository) All(ctx context.Context) ([]auth.UserDTO, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserDTOs(rows)
}

// ByIDs lists users with the given IDs.
func (r *Repository) ByIDs(ctx context.Context, ids []int64) ([]auth.UserDTO, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserDTOs(rows)
}

// ByID fetches one user.
func (r *Repository) ByID(ctx context.Context, id int64) (auth.UserDTO, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUserDTO(row)
}

// ActiveByRole lists active users holding the role.
func (r *Repository) ActiveByRole(ctx context.Context, role policy.Role) ([]auth.UserDTO, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND is_active = TRUE ORDER BY created_at`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserDTOs(rows)
}

// Update patches user fields, leaving empty inputs unchanged.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateUserInput) (auth.UserDTO, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			first_name = COALESCE(NULLIF($2, ''), first_name),
			last_name  = COALESCE(NULLIF($3, ''), last_name),
			email      = COALESCE(NULLIF($4, ''), email),
			role       = COALESCE(NULLIF($5, ''), role),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, in.FirstName, in.LastName, in.Email, in.Role)
	return scanUserDTO(row)
}

// SetActive flips the account's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (auth.UserDTO, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, active)
	return scanUserDTO(row)
}

// SubordinateIDs returns the users the viewer created plus the users
// assigned to them, deduplicated.
func (r *Repository) SubordinateIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT created_user_id FROM user_relationships WHERE creator_id = $1
		UNION
		SELECT assigned_user_id FROM user_assignments WHERE assignee_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByRole groups users by role.
func (r *Repository) CountByRole(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var role string
		var count int64
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		counts[role] = count
	}
	return counts, rows.Err()
}

func scanUserDTOs(rows pgx.Rows) ([]auth.UserDTO, error) {
	dtos := make([]auth.UserDTO, 0)
	for rows.Next() {
		var dto auth.UserDTO
		var lastLogin *time.Time
		if err := rows.Scan(&dto.ID, &dto.Username, &dto.Email, &dto.FirstName, &dto.LastName, &dto.Role, &dto.IsActive, &lastLogin, &dto.CreatedAt, &dto.UpdatedAt); err != nil {
			return nil, err
		}
		dto.LastLogin = lastLogin
		dto.RoleLabel = policy.Role(dto.Role).Label()
		dtos = append(dtos, dto)
	}
	return dtos, rows.Err()
}

func scanCreatedUsers(rows pgx.Rows) ([]CreatedUser, error) {
	created := make([]CreatedUser, 0)
	for rows.Next() {
		var cu CreatedUser
		var lastLogin *time.Time
		if err := rows.Scan(&cu.ID, &cu.Username, &cu.Email, &cu.FirstName, &cu.LastName, &cu.Role, &cu.IsActive, &lastLogin, &cu.CreatedAt, &cu.UpdatedAt, &cu.PlainPassword); err != nil {
			return nil, err
		}
		cu.LastLogin = lastLogin
		cu.RoleLabel = policy.Role(cu.Role).Label()
		created = append(created, cu)
	}
	return created, rows.Err()
}

func joinColumns(alias string) string {
	return `id, ` + alias + `.username, ` + alias + `.email, ` + alias + `.first_name, ` + alias + `.last_name, ` + alias + `.role, ` + alias + `.is_active, ` + alias + `.last_login, ` + alias + `.created_at, ` + alias + `.updated_at`
}
