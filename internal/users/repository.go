package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scolaris/scolaris/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ListUsers returns one page of users plus the unpaged total.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}

	where := `WHERE u.establishment_id=$1`
	args := []any{filter.EstablishmentID}
	if filter.Role != "" {
		where += ` AND EXISTS (SELECT 1 FROM user_roles ur JOIN roles ro ON ro.id=ur.role_id WHERE ur.user_id=u.id AND ro.name=$2)`
		args = append(args, filter.Role)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitArgs := append(args, perPage, (page-1)*perPage)
	query := `SELECT u.id, u.establishment_id, u.email, u.name, COALESCE(u.phone, ''), u.is_active, u.created_at, u.updated_at,
		COALESCE((SELECT array_agg(ro.name ORDER BY ro.name) FROM user_roles ur JOIN roles ro ON ro.id=ur.role_id WHERE ur.user_id=u.id), '{}')
		FROM users u ` + where
	if filter.Role != "" {
		query += ` ORDER BY u.id LIMIT $3 OFFSET $4`
	} else {
		query += ` ORDER BY u.id LIMIT $2 OFFSET $3`
	}
	rows, err := r.pool.Query(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.EstablishmentID, &u.Email, &u.Name, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.Roles); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser fetches one account with its role names.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT u.id, u.establishment_id, u.email, u.name, COALESCE(u.phone, ''), u.is_active, u.created_at, u.updated_at,
		COALESCE((SELECT array_agg(ro.name ORDER BY ro.name) FROM user_roles ur JOIN roles ro ON ro.id=ur.role_id WHERE ur.user_id=u.id), '{}')
		FROM users u WHERE u.id=$1`, id).
		Scan(&u.ID, &u.EstablishmentID, &u.Email, &u.Name, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.Roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts an account.
func (r *Repository) CreateUser(ctx context.Context, user *User, passwordHash string) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (establishment_id, email, name, phone, password_hash, is_active, created_at, updated_at) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		user.EstablishmentID, user.Email, user.Name, user.Phone, passwordHash, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// UpdateUser rewrites profile fields.
func (r *Repository) UpdateUser(ctx context.Context, user *User) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email=$2, name=$3, phone=NULLIF($4, ''), updated_at=NOW() WHERE id=$1`,
		user.ID, user.Email, user.Name, user.Phone)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SetActive flips the archive flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// AttachRole links a role idempotently.
func (r *Repository) AttachRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// DetachRole unlinks a role.
func (r *Repository) DetachRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1 AND role_id=$2`, userID, roleID)
	return err
}

// RoleExists reports whether a role id exists.
func (r *Repository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE id=$1)`, roleID).Scan(&exists)
	return exists, err
}
