package school

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// Service handles masterdata business logic.
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

func mapDuplicate(err error, what string) error {
	if errors.Is(err, ErrDuplicate) {
		return fmt.Errorf("%w: %s already exists", httpx.ErrConflict, what)
	}
	return err
}

// ListEstablishments returns every tenant.
func (s *Service) ListEstablishments(ctx context.Context) ([]Establishment, error) {
	return s.repo.ListEstablishments(ctx)
}

// GetEstablishment fetches one tenant.
func (s *Service) GetEstablishment(ctx context.Context, id int64) (*Establishment, error) {
	return s.repo.GetEstablishment(ctx, id)
}

// CreateEstablishment registers a tenant.
func (s *Service) CreateEstablishment(ctx context.Context, actor shared.Actor, e *Establishment) error {
	if e.Name == "" || e.Code == "" {
		return fmt.Errorf("%w: name and code required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreateEstablishment(ctx, e); err != nil {
		return mapDuplicate(err, "establishment code")
	}
	s.record(ctx, actor, "school.establishment.create", "establishment", e.ID)
	return nil
}

// UpdateEstablishment edits tenant fields.
func (s *Service) UpdateEstablishment(ctx context.Context, actor shared.Actor, e *Establishment) error {
	if err := s.repo.UpdateEstablishment(ctx, e); err != nil {
		return err
	}
	s.record(ctx, actor, "school.establishment.update", "establishment", e.ID)
	return nil
}

// ListAcademicYears returns the years of one establishment.
func (s *Service) ListAcademicYears(ctx context.Context, establishmentID int64) ([]AcademicYear, error) {
	return s.repo.ListAcademicYears(ctx, establishmentID)
}

// CreateAcademicYear inserts a year after sanity-checking the dates.
func (s *Service) CreateAcademicYear(ctx context.Context, actor shared.Actor, y *AcademicYear) error {
	if !y.EndDate.After(y.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreateAcademicYear(ctx, y); err != nil {
		return mapDuplicate(err, "academic year")
	}
	s.record(ctx, actor, "school.year.create", "academic_year", y.ID)
	return nil
}

// SetCurrentAcademicYear marks one year as current.
func (s *Service) SetCurrentAcademicYear(ctx context.Context, actor shared.Actor, establishmentID, yearID int64) error {
	if err := s.repo.SetCurrentAcademicYear(ctx, establishmentID, yearID); err != nil {
		return err
	}
	s.record(ctx, actor, "school.year.set_current", "academic_year", yearID)
	return nil
}

// ListClasses returns the classes of one establishment.
func (s *Service) ListClasses(ctx context.Context, establishmentID int64) ([]Class, error) {
	return s.repo.ListClasses(ctx, establishmentID)
}

// GetClass fetches one class.
func (s *Service) GetClass(ctx context.Context, id int64) (*Class, error) {
	return s.repo.GetClass(ctx, id)
}

// CreateClass inserts a class.
func (s *Service) CreateClass(ctx context.Context, actor shared.Actor, c *Class) error {
	if c.Name == "" {
		return fmt.Errorf("%w: class name required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreateClass(ctx, c); err != nil {
		return mapDuplicate(err, "class name")
	}
	s.record(ctx, actor, "school.class.create", "class", c.ID)
	return nil
}

// UpdateClass rewrites a class.
func (s *Service) UpdateClass(ctx context.Context, actor shared.Actor, c *Class) error {
	if err := s.repo.UpdateClass(ctx, c); err != nil {
		return mapDuplicate(err, "class name")
	}
	s.record(ctx, actor, "school.class.update", "class", c.ID)
	return nil
}

// DeleteClass removes a class.
func (s *Service) DeleteClass(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.DeleteClass(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "school.class.delete", "class", id)
	return nil
}

// ListSubjects returns the subjects of one establishment.
func (s *Service) ListSubjects(ctx context.Context, establishmentID int64) ([]Subject, error) {
	return s.repo.ListSubjects(ctx, establishmentID)
}

// CreateSubject inserts a subject.
func (s *Service) CreateSubject(ctx context.Context, actor shared.Actor, sub *Subject) error {
	if sub.Name == "" {
		return fmt.Errorf("%w: subject name required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreateSubject(ctx, sub); err != nil {
		return mapDuplicate(err, "subject")
	}
	s.record(ctx, actor, "school.subject.create", "subject", sub.ID)
	return nil
}

// DeleteSubject removes a subject.
func (s *Service) DeleteSubject(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.DeleteSubject(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "school.subject.delete", "subject", id)
	return nil
}

// ListRooms returns the rooms of one establishment.
func (s *Service) ListRooms(ctx context.Context, establishmentID int64) ([]Room, error) {
	return s.repo.ListRooms(ctx, establishmentID)
}

// CreateRoom inserts a room.
func (s *Service) CreateRoom(ctx context.Context, actor shared.Actor, room *Room) error {
	if room.Name == "" {
		return fmt.Errorf("%w: room name required", httpx.ErrInvalidArgument)
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return mapDuplicate(err, "room")
	}
	s.record(ctx, actor, "school.room.create", "room", room.ID)
	return nil
}

// DeleteRoom removes a room.
func (s *Service) DeleteRoom(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "school.room.delete", "room", id)
	return nil
}
