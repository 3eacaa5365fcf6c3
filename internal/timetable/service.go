package timetable

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

// ConflictError reports a rejected write together with the entity
// already holding the slot, so the HTTP layer can return it to the
// caller.
type ConflictError struct {
	Reason     string
	Kind       ResourceKind
	WithEntry  *Entry
	WithPeriod *Period
}

func (e *ConflictError) Error() string { return e.Reason }

// Unwrap ties conflicts into the shared error taxonomy.
func (e *ConflictError) Unwrap() error { return httpx.ErrConflict }

// Service implements timetable use cases on top of a Repository. The
// pre-write conflict check is best effort; the repository's uniqueness
// constraints close the race window, and their violations surface here
// as the same conflict outcome.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs the service. audit may be nil.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}

// ListPeriods returns all periods of an establishment.
func (s *Service) ListPeriods(ctx context.Context, establishmentID int64) ([]Period, error) {
	return s.repo.ListPeriods(ctx, establishmentID)
}

func (s *Service) checkPeriodSlot(ctx context.Context, p *Period, excludeID int64) error {
	periods, err := s.repo.ListPeriods(ctx, p.EstablishmentID)
	if err != nil {
		return err
	}
	hit, err := OverlappingPeriod(periods, p.DayOfWeek, p.StartTime, p.EndTime, excludeID)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrInvalidArgument, err)
	}
	if hit != nil {
		return &ConflictError{
			Reason:     fmt.Sprintf("period overlaps %q (%s-%s)", hit.Name, hit.StartTime, hit.EndTime),
			WithPeriod: hit,
		}
	}
	return nil
}

// CreatePeriod validates the slot and inserts the period.
func (s *Service) CreatePeriod(ctx context.Context, actorID int64, p *Period) error {
	if p.DayOfWeek < 1 || p.DayOfWeek > 7 {
		return fmt.Errorf("%w: day_of_week must be 1..7", httpx.ErrInvalidArgument)
	}
	if err := s.checkPeriodSlot(ctx, p, 0); err != nil {
		return err
	}
	if err := s.repo.CreatePeriod(ctx, p); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return &ConflictError{Reason: "period slot already taken"}
		}
		return err
	}
	s.record(ctx, actorID, "timetable.period.create", "timetable_period", p.ID, map[string]any{"day": p.DayOfWeek, "start": p.StartTime})
	return nil
}

// UpdatePeriod validates the new slot against all other periods.
func (s *Service) UpdatePeriod(ctx context.Context, actorID int64, p *Period) error {
	current, err := s.repo.GetPeriod(ctx, p.ID)
	if err != nil {
		return err
	}
	p.EstablishmentID = current.EstablishmentID
	if p.DayOfWeek < 1 || p.DayOfWeek > 7 {
		return fmt.Errorf("%w: day_of_week must be 1..7", httpx.ErrInvalidArgument)
	}
	if err := s.checkPeriodSlot(ctx, p, p.ID); err != nil {
		return err
	}
	if err := s.repo.UpdatePeriod(ctx, p); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return &ConflictError{Reason: "period slot already taken"}
		}
		return err
	}
	s.record(ctx, actorID, "timetable.period.update", "timetable_period", p.ID, nil)
	return nil
}

// DeletePeriod refuses to delete a period still referenced by entries.
func (s *Service) DeletePeriod(ctx context.Context, actorID int64, id int64) error {
	if _, err := s.repo.GetPeriod(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountEntriesForPeriod(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Reason: fmt.Sprintf("period is referenced by %d timetable entries", count)}
	}
	if err := s.repo.DeletePeriod(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "timetable.period.delete", "timetable_period", id, nil)
	return nil
}

// ClassTimetable returns the schedule of one class for a year.
func (s *Service) ClassTimetable(ctx context.Context, classID, academicYearID int64) ([]EntryDetail, error) {
	return s.repo.ListEntriesByClass(ctx, classID, academicYearID)
}

// TeacherTimetable returns the schedule of one teacher for a year.
func (s *Service) TeacherTimetable(ctx context.Context, teacherID, academicYearID int64) ([]EntryDetail, error) {
	return s.repo.ListEntriesByTeacher(ctx, teacherID, academicYearID)
}

// validateCandidate runs referential checks first, then conflict
// checks, mirroring the order callers rely on to distinguish a dangling
// reference from a double-booking.
func (s *Service) validateCandidate(ctx context.Context, e Entry, excludeID int64) error {
	missing, err := s.repo.MissingReference(ctx, e)
	if err != nil {
		return err
	}
	if missing != "" {
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, missing)
	}

	period, err := s.repo.GetPeriod(ctx, e.PeriodID)
	if err != nil {
		return err
	}
	if period.IsBreak {
		return fmt.Errorf("%w: cannot schedule an entry on a break period", httpx.ErrInvalidArgument)
	}

	snapshot, err := s.repo.ListEntries(ctx, e.EstablishmentID, e.AcademicYearID)
	if err != nil {
		return err
	}
	report, err := ValidateEntry(snapshot, e, excludeID)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrInvalidArgument, err)
	}
	if !report.Clean() {
		first := report.Conflicts[0]
		return &ConflictError{
			Reason:    fmt.Sprintf("%s already scheduled in this period", first.Kind),
			Kind:      first.Kind,
			WithEntry: report.First(),
		}
	}
	return nil
}

// CreateEntry validates references and conflicts, then commits.
func (s *Service) CreateEntry(ctx context.Context, actorID int64, e *Entry) error {
	if err := s.validateCandidate(ctx, *e, 0); err != nil {
		return err
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return &ConflictError{Reason: "slot was taken by a concurrent write"}
		}
		return err
	}
	s.record(ctx, actorID, "timetable.entry.create", "timetable_entry", e.ID, map[string]any{"class_id": e.ClassID, "period_id": e.PeriodID})
	return nil
}

// UpdateEntry re-validates the full candidate, excluding the entry
// itself from conflict checks.
func (s *Service) UpdateEntry(ctx context.Context, actorID int64, e *Entry) error {
	current, err := s.repo.GetEntry(ctx, e.ID)
	if err != nil {
		return err
	}
	e.EstablishmentID = current.EstablishmentID
	e.AcademicYearID = current.AcademicYearID
	if err := s.validateCandidate(ctx, *e, e.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateEntry(ctx, e); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return &ConflictError{Reason: "slot was taken by a concurrent write"}
		}
		return err
	}
	s.record(ctx, actorID, "timetable.entry.update", "timetable_entry", e.ID, nil)
	return nil
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, actorID int64, id int64) error {
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "timetable.entry.delete", "timetable_entry", id, nil)
	return nil
}

// BulkCreate processes candidates independently: each one is validated
// against already-committed entries only, and one candidate's failure
// never short-circuits the rest. Only infrastructure errors abort the
// batch.
func (s *Service) BulkCreate(ctx context.Context, actorID int64, candidates []Entry) ([]BulkResult, error) {
	results := make([]BulkResult, 0, len(candidates))
	for i := range candidates {
		e := candidates[i]
		err := s.CreateEntry(ctx, actorID, &e)
		if err == nil {
			results = append(results, BulkResult{Index: i, Kind: BulkOK, Entry: &e})
			continue
		}

		var conflict *ConflictError
		switch {
		case errors.As(err, &conflict):
			results = append(results, BulkResult{Index: i, Kind: BulkConflict, Error: conflict.Reason, ConflictWith: conflict.WithEntry})
		case errors.Is(err, httpx.ErrNotFound):
			results = append(results, BulkResult{Index: i, Kind: BulkNotFound, Error: err.Error()})
		case errors.Is(err, httpx.ErrInvalidArgument):
			results = append(results, BulkResult{Index: i, Kind: BulkInvalid, Error: err.Error()})
		default:
			return nil, err
		}
	}
	return results, nil
}
