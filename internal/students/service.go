package students

import (
	"context"
	"fmt"
	"strconv"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Service implements student record workflows.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds the service.
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

// List returns one page of students. Caller gating restricts this to
// staff; parents go through Get on their own children.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter SearchFilter) ([]Student, shared.Pagination, error) {
	filter.EstablishmentID = actor.EstablishmentID
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Get fetches one student, enforcing the visibility rule. Staff and
// teachers see any student of their establishment; a student sees their
// own record; a parent sees linked children. When the parent link
// cannot be established the request is denied.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Student, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.EstablishmentID != actor.EstablishmentID {
		return nil, fmt.Errorf("%w: student %d", httpx.ErrNotFound, id)
	}

	roles := authz.NewRoleSet(actor.Roles...)
	ref := authz.StudentRef{ID: st.ID}
	if st.UserID != nil {
		ref.UserID = *st.UserID
	}

	isParent := authz.FactFalse
	if !authz.IsAdminLike(roles) && !roles.Has(authz.RoleEnseignant) {
		isParent = authz.FactFromLookup(s.repo.IsParentOf(ctx, actor.UserID, st.ID))
	}
	if !authz.CanViewStudentData(actor.UserID, ref, roles, isParent) {
		return nil, fmt.Errorf("%w: student %d not visible", httpx.ErrForbidden, id)
	}
	return st, nil
}

// Create registers a student record.
func (s *Service) Create(ctx context.Context, actor shared.Actor, st *Student) error {
	if st.FirstName == "" || st.LastName == "" || st.Matricule == "" {
		return fmt.Errorf("%w: first name, last name and matricule required", httpx.ErrInvalidArgument)
	}
	st.EstablishmentID = actor.EstablishmentID
	if st.ClassID != nil {
		ok, err := s.repo.ClassExists(ctx, *st.ClassID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: classe %d", httpx.ErrNotFound, *st.ClassID)
		}
	}
	if err := s.repo.Create(ctx, st); err != nil {
		if err == ErrDuplicate {
			return fmt.Errorf("%w: matricule %q already registered", httpx.ErrConflict, st.Matricule)
		}
		return err
	}
	s.record(ctx, actor, "students.create", "student", st.ID)
	return nil
}

// Update rewrites identity fields of a student.
func (s *Service) Update(ctx context.Context, actor shared.Actor, st *Student) error {
	if st.FirstName == "" || st.LastName == "" {
		return fmt.Errorf("%w: first name and last name required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.Update(ctx, st); err != nil {
		return err
	}
	s.record(ctx, actor, "students.update", "student", st.ID)
	return nil
}

// Archive soft-deletes a student.
func (s *Service) Archive(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.Archive(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "students.archive", "student", id)
	return nil
}

// AssignClass moves a student into a class after checking the class
// exists. A nil classID removes the student from any class.
func (s *Service) AssignClass(ctx context.Context, actor shared.Actor, studentID int64, classID *int64) error {
	if classID != nil {
		ok, err := s.repo.ClassExists(ctx, *classID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: classe %d", httpx.ErrNotFound, *classID)
		}
	}
	if err := s.repo.AssignClass(ctx, studentID, classID); err != nil {
		return err
	}
	s.record(ctx, actor, "students.assign_class", "student", studentID)
	return nil
}

// AddParent links a guardian account to a student. Adding the same
// link twice is a no-op.
func (s *Service) AddParent(ctx context.Context, actor shared.Actor, link ParentLink) error {
	if link.StudentID <= 0 || link.ParentUserID <= 0 {
		return fmt.Errorf("%w: student and parent ids required", httpx.ErrInvalidArgument)
	}
	if _, err := s.repo.Get(ctx, link.StudentID); err != nil {
		return err
	}
	if err := s.repo.AddParentLink(ctx, link); err != nil {
		return err
	}
	s.record(ctx, actor, "students.parent_link", "student", link.StudentID)
	return nil
}

// RemoveParent detaches a guardian from a student.
func (s *Service) RemoveParent(ctx context.Context, actor shared.Actor, studentID, parentUserID int64) error {
	if err := s.repo.RemoveParentLink(ctx, studentID, parentUserID); err != nil {
		return err
	}
	s.record(ctx, actor, "students.parent_unlink", "student", studentID)
	return nil
}

// ListParents returns the guardians of a student.
func (s *Service) ListParents(ctx context.Context, actor shared.Actor, studentID int64) ([]ParentLink, error) {
	if _, err := s.Get(ctx, actor, studentID); err != nil {
		return nil, err
	}
	return s.repo.ListParents(ctx, studentID)
}
