package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, user *User, passwordHash string) error
	UpdateUser(ctx context.Context, user *User) error
	SetActive(ctx context.Context, id int64, active bool) error
	AttachRole(ctx context.Context, userID, roleID int64) error
	DetachRole(ctx context.Context, userID, roleID int64) error
	RoleExists(ctx context.Context, roleID int64) (bool, error)
}

// ErrDuplicateEmail reports an email already in use.
var ErrDuplicateEmail = errors.New("email already in use")

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, userID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
	})
}

// ListUsers returns a page of users with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, shared.Pagination, error) {
	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// GetUser fetches one account.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers an account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, actor shared.Actor, user *User, password string) error {
	if user.Email == "" || password == "" {
		return fmt.Errorf("%w: email and password required", httpx.ErrInvalidArgument)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.IsActive = true
	if err := s.repo.CreateUser(ctx, user, string(hash)); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return fmt.Errorf("%w: email already in use", httpx.ErrConflict)
		}
		return err
	}
	s.record(ctx, actor, "users.create", user.ID)
	return nil
}

// UpdateUser edits profile fields.
func (s *Service) UpdateUser(ctx context.Context, actor shared.Actor, user *User) error {
	if _, err := s.repo.GetUser(ctx, user.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return fmt.Errorf("%w: email already in use", httpx.ErrConflict)
		}
		return err
	}
	s.record(ctx, actor, "users.update", user.ID)
	return nil
}

// ArchiveUser deactivates an account instead of deleting it.
func (s *Service) ArchiveUser(ctx context.Context, actor shared.Actor, id int64) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, "users.archive", id)
	return nil
}

// RestoreUser reactivates an archived account.
func (s *Service) RestoreUser(ctx context.Context, actor shared.Actor, id int64) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.record(ctx, actor, "users.restore", id)
	return nil
}

// AttachRole links a role to a user. Attaching twice is a no-op.
func (s *Service) AttachRole(ctx context.Context, actor shared.Actor, userID, roleID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	exists, err := s.repo.RoleExists(ctx, roleID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}
	if err := s.repo.AttachRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actor, "users.attach_role", userID)
	return nil
}

// DetachRole unlinks a role from a user.
func (s *Service) DetachRole(ctx context.Context, actor shared.Actor, userID, roleID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.DetachRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actor, "users.detach_role", userID)
	return nil
}
