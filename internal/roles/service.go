package roles

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Service handles role and permission business logic. Write paths run
// the engine predicates before touching storage.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entity string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
	})
}

// ListRoles returns the roles of the actor's establishment.
func (s *Service) ListRoles(ctx context.Context, establishmentID int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, establishmentID)
}

// GetRole fetches one role.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a role, rejecting duplicate names within the
// establishment.
func (s *Service) CreateRole(ctx context.Context, actor shared.Actor, role *Role) error {
	if role.Name == "" {
		return fmt.Errorf("%w: role name required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Name)
		}
		return err
	}
	s.record(ctx, actor, "roles.create", "role", role.ID)
	return nil
}

// UpdateRole edits a role. The superadmin role is editable only by
// superadmins, and protected role names are immutable.
func (s *Service) UpdateRole(ctx context.Context, actor shared.Actor, role *Role) error {
	current, err := s.repo.GetRole(ctx, role.ID)
	if err != nil {
		return err
	}
	actorRoles := authz.NewRoleSet(actor.Roles...)
	if !authz.CanModifyRole(current.Name, actorRoles) {
		return fmt.Errorf("%w: protected role cannot be modified", httpx.ErrForbidden)
	}
	if authz.IsProtectedRole(current.Name) && role.Name != current.Name {
		return fmt.Errorf("%w: protected role cannot be renamed", httpx.ErrForbidden)
	}
	if err := s.repo.UpdateRole(ctx, role); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Name)
		}
		return err
	}
	s.record(ctx, actor, "roles.update", "role", role.ID)
	return nil
}

// DeleteRole removes a role. Protected names are never deletable; a
// role still assigned to users is a conflict.
func (s *Service) DeleteRole(ctx context.Context, actor shared.Actor, id int64) error {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanDeleteRole(current.Name, count > 0) {
		if authz.IsProtectedRole(current.Name) {
			return fmt.Errorf("%w: protected role cannot be deleted", httpx.ErrForbidden)
		}
		return fmt.Errorf("%w: role is assigned to %d users", httpx.ErrConflict, count)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "roles.delete", "role", id)
	return nil
}

// RoleUsers lists the users holding a role.
func (s *Service) RoleUsers(ctx context.Context, roleID int64) ([]RoleUser, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListRoleUsers(ctx, roleID)
}

// ListPermissions returns the permissions of one establishment.
func (s *Service) ListPermissions(ctx context.Context, establishmentID int64) ([]Permission, error) {
	return s.repo.ListPermissions(ctx, establishmentID)
}

// CreatePermission inserts a permission scope.
func (s *Service) CreatePermission(ctx context.Context, actor shared.Actor, p *Permission) error {
	if p.Functionality == "" {
		return fmt.Errorf("%w: functionality required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreatePermission(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("%w: permission for %q already exists", httpx.ErrConflict, p.Functionality)
		}
		return err
	}
	s.record(ctx, actor, "permissions.create", "permission", p.ID)
	return nil
}

// UpdatePermission rewrites the capability booleans.
func (s *Service) UpdatePermission(ctx context.Context, actor shared.Actor, p *Permission) error {
	if _, err := s.repo.GetPermission(ctx, p.ID); err != nil {
		return err
	}
	if err := s.repo.UpdatePermission(ctx, p); err != nil {
		return err
	}
	s.record(ctx, actor, "permissions.update", "permission", p.ID)
	return nil
}

// DeletePermission removes a permission scope.
func (s *Service) DeletePermission(ctx context.Context, actor shared.Actor, id int64) error {
	if _, err := s.repo.GetPermission(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "permissions.delete", "permission", id)
	return nil
}

// AssignPermission links a permission to a role, idempotently. The
// superadmin role's permissions are immutable to non-superadmins.
func (s *Service) AssignPermission(ctx context.Context, actor shared.Actor, roleID, permissionID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !authz.CanModifyRole(role.Name, authz.NewRoleSet(actor.Roles...)) {
		return fmt.Errorf("%w: protected role cannot be modified", httpx.ErrForbidden)
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	if err := s.repo.AssignPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.record(ctx, actor, "roles.assign_permission", "role", roleID)
	return nil
}

// RemovePermission unlinks a permission from a role.
func (s *Service) RemovePermission(ctx context.Context, actor shared.Actor, roleID, permissionID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !authz.CanModifyRole(role.Name, authz.NewRoleSet(actor.Roles...)) {
		return fmt.Errorf("%w: protected role cannot be modified", httpx.ErrForbidden)
	}
	if err := s.repo.RemovePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.record(ctx, actor, "roles.remove_permission", "role", roleID)
	return nil
}

// RolePermissions lists the permissions linked to a role.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListRolePermissions(ctx, roleID)
}

// PermissionRoles lists the roles a permission is linked to.
func (s *Service) PermissionRoles(ctx context.Context, permissionID int64) ([]Role, error) {
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return nil, err
	}
	return s.repo.ListPermissionRoles(ctx, permissionID)
}
