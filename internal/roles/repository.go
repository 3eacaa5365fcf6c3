package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scolaris/scolaris/internal/platform/httpx"
)

// ErrDuplicate reports a uniqueness violation on role names or
// permission scopes.
var ErrDuplicate = errors.New("duplicate record")

// RepositoryPort defines data access methods for roles and permissions.
type RepositoryPort interface {
	ListRoles(ctx context.Context, establishmentID int64) ([]Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	CreateRole(ctx context.Context, role *Role) error
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, id int64) error
	CountAssignments(ctx context.Context, roleID int64) (int, error)
	ListRoleUsers(ctx context.Context, roleID int64) ([]RoleUser, error)

	ListPermissions(ctx context.Context, establishmentID int64) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (*Permission, error)
	CreatePermission(ctx context.Context, p *Permission) error
	UpdatePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id int64) error

	AssignPermission(ctx context.Context, roleID, permissionID int64) error
	RemovePermission(ctx context.Context, roleID, permissionID int64) error
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ListPermissionRoles(ctx context.Context, permissionID int64) ([]Role, error)
}

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

// ListRoles returns the roles of one establishment.
func (r *Repository) ListRoles(ctx context.Context, establishmentID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, name, description, created_at, updated_at FROM roles WHERE establishment_id=$1 ORDER BY id`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.EstablishmentID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches one role.
func (r *Repository) GetRole(ctx context.Context, id int64) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, establishment_id, name, description, created_at, updated_at FROM roles WHERE id=$1`, id).
		Scan(&role.ID, &role.EstablishmentID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// CreateRole inserts a role. Names are unique per establishment.
func (r *Repository) CreateRole(ctx context.Context, role *Role) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (establishment_id, name, description, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		role.EstablishmentID, role.Name, role.Description).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateRole rewrites a role's name and description.
func (r *Repository) UpdateRole(ctx context.Context, role *Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET name=$2, description=$3, updated_at=NOW() WHERE id=$1`, role.ID, role.Name, role.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteRole removes a role and its permission links.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// CountAssignments counts users currently holding the role.
func (r *Repository) CountAssignments(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id=$1`, roleID).Scan(&count)
	return count, err
}

// ListRoleUsers returns the users holding the role.
func (r *Repository) ListRoleUsers(ctx context.Context, roleID int64) ([]RoleUser, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.name, u.email FROM users u JOIN user_roles ur ON ur.user_id = u.id WHERE ur.role_id=$1 ORDER BY u.id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []RoleUser
	for rows.Next() {
		var u RoleUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// ListPermissions returns the permissions of one establishment.
func (r *Repository) ListPermissions(ctx context.Context, establishmentID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, functionality, can_view, can_add, can_edit, can_delete, created_at FROM permissions WHERE establishment_id=$1 ORDER BY id`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.EstablishmentID, &p.Functionality, &p.CanView, &p.CanAdd, &p.CanEdit, &p.CanDelete, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetPermission fetches one permission.
func (r *Repository) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, establishment_id, functionality, can_view, can_add, can_edit, can_delete, created_at FROM permissions WHERE id=$1`, id).
		Scan(&p.ID, &p.EstablishmentID, &p.Functionality, &p.CanView, &p.CanAdd, &p.CanEdit, &p.CanDelete, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePermission inserts a permission. The (functionality,
// establishment) pair is unique.
func (r *Repository) CreatePermission(ctx context.Context, p *Permission) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (establishment_id, functionality, can_view, can_add, can_edit, can_delete, created_at) VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`,
		p.EstablishmentID, p.Functionality, p.CanView, p.CanAdd, p.CanEdit, p.CanDelete).Scan(&p.ID, &p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdatePermission rewrites the capability booleans.
func (r *Repository) UpdatePermission(ctx context.Context, p *Permission) error {
	tag, err := r.pool.Exec(ctx, `UPDATE permissions SET can_view=$2, can_add=$3, can_edit=$4, can_delete=$5 WHERE id=$1`,
		p.ID, p.CanView, p.CanAdd, p.CanEdit, p.CanDelete)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeletePermission removes a permission and its role links.
func (r *Repository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// AssignPermission links a permission to a role. Assigning twice is a
// no-op, not a duplicate.
func (r *Repository) AssignPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

// RemovePermission unlinks a permission from a role.
func (r *Repository) RemovePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1 AND permission_id=$2`, roleID, permissionID)
	return err
}

// ListRolePermissions returns the permissions linked to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.establishment_id, p.functionality, p.can_view, p.can_add, p.can_edit, p.can_delete, p.created_at FROM permissions p JOIN role_permissions rp ON rp.permission_id = p.id WHERE rp.role_id=$1 ORDER BY p.id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ListPermissionRoles returns the roles a permission is linked to.
func (r *Repository) ListPermissionRoles(ctx context.Context, permissionID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.establishment_id, r.name, r.description, r.created_at, r.updated_at FROM roles r JOIN role_permissions rp ON rp.role_id = r.id WHERE rp.permission_id=$1 ORDER BY r.id`, permissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}
