package timetable

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scolaris/scolaris/internal/platform/httpx"
)

// ErrUniqueViolation reports that storage rejected a write because of a
// uniqueness constraint. The service treats it as a conflict: a
// concurrent writer won the slot between pre-check and commit.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Repository defines persistence operations for the timetable module.
type Repository interface {
	ListPeriods(ctx context.Context, establishmentID int64) ([]Period, error)
	GetPeriod(ctx context.Context, id int64) (*Period, error)
	CreatePeriod(ctx context.Context, p *Period) error
	UpdatePeriod(ctx context.Context, p *Period) error
	DeletePeriod(ctx context.Context, id int64) error
	CountEntriesForPeriod(ctx context.Context, periodID int64) (int, error)

	ListEntries(ctx context.Context, establishmentID, academicYearID int64) ([]Entry, error)
	ListEntriesByClass(ctx context.Context, classID, academicYearID int64) ([]EntryDetail, error)
	ListEntriesByTeacher(ctx context.Context, teacherID, academicYearID int64) ([]EntryDetail, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	CreateEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id int64) error

	// MissingReference returns the name of the first reference of e
	// that does not exist ("classe", "matiere", "enseignant",
	// "periode", "salle", "annee"), or "" when all exist.
	MissingReference(ctx context.Context, e Entry) (string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ListPeriods returns all periods of an establishment ordered by day
// and start time.
func (r *PGRepository) ListPeriods(ctx context.Context, establishmentID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, name, day_of_week, start_time, end_time, rank, is_break, created_at FROM timetable_periods WHERE establishment_id=$1 ORDER BY day_of_week, rank, start_time`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.EstablishmentID, &p.Name, &p.DayOfWeek, &p.StartTime, &p.EndTime, &p.Rank, &p.IsBreak, &p.CreatedAt); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return periods, nil
}

// GetPeriod fetches one period.
func (r *PGRepository) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	var p Period
	err := r.pool.QueryRow(ctx, `SELECT id, establishment_id, name, day_of_week, start_time, end_time, rank, is_break, created_at FROM timetable_periods WHERE id=$1`, id).
		Scan(&p.ID, &p.EstablishmentID, &p.Name, &p.DayOfWeek, &p.StartTime, &p.EndTime, &p.Rank, &p.IsBreak, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePeriod inserts a period and fills the generated id.
func (r *PGRepository) CreatePeriod(ctx context.Context, p *Period) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO timetable_periods (establishment_id, name, day_of_week, start_time, end_time, rank, is_break, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id, created_at`,
		p.EstablishmentID, p.Name, p.DayOfWeek, p.StartTime, p.EndTime, p.Rank, p.IsBreak).Scan(&p.ID, &p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUniqueViolation
	}
	return err
}

// UpdatePeriod rewrites a period's mutable fields.
func (r *PGRepository) UpdatePeriod(ctx context.Context, p *Period) error {
	tag, err := r.pool.Exec(ctx, `UPDATE timetable_periods SET name=$2, day_of_week=$3, start_time=$4, end_time=$5, rank=$6, is_break=$7 WHERE id=$1`,
		p.ID, p.Name, p.DayOfWeek, p.StartTime, p.EndTime, p.Rank, p.IsBreak)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeletePeriod removes a period.
func (r *PGRepository) DeletePeriod(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM timetable_periods WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// CountEntriesForPeriod counts entries referencing a period.
func (r *PGRepository) CountEntriesForPeriod(ctx context.Context, periodID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM timetable_entries WHERE period_id=$1`, periodID).Scan(&count)
	return count, err
}

// ListEntries returns the committed entries of one establishment and
// academic year, the snapshot conflict checks run against.
func (r *PGRepository) ListEntries(ctx context.Context, establishmentID, academicYearID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, academic_year_id, class_id, subject_id, teacher_id, period_id, room_id, created_at FROM timetable_entries WHERE establishment_id=$1 AND academic_year_id=$2 ORDER BY id`, establishmentID, academicYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EstablishmentID, &e.AcademicYearID, &e.ClassID, &e.SubjectID, &e.TeacherID, &e.PeriodID, &e.RoomID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

const entryDetailQuery = `
SELECT e.id, e.establishment_id, e.academic_year_id, e.class_id, e.subject_id, e.teacher_id, e.period_id, e.room_id, e.created_at,
       p.name, p.day_of_week, p.start_time, p.end_time,
       c.name, s.name, u.name, COALESCE(r.name, '')
FROM timetable_entries e
JOIN timetable_periods p ON p.id = e.period_id
JOIN classes c ON c.id = e.class_id
JOIN subjects s ON s.id = e.subject_id
JOIN users u ON u.id = e.teacher_id
LEFT JOIN rooms r ON r.id = e.room_id`

func (r *PGRepository) listEntryDetails(ctx context.Context, where string, args ...any) ([]EntryDetail, error) {
	rows, err := r.pool.Query(ctx, entryDetailQuery+" "+where+" ORDER BY p.day_of_week, p.start_time", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []EntryDetail
	for rows.Next() {
		var d EntryDetail
		if err := rows.Scan(&d.ID, &d.EstablishmentID, &d.AcademicYearID, &d.ClassID, &d.SubjectID, &d.TeacherID, &d.PeriodID, &d.RoomID, &d.CreatedAt,
			&d.PeriodName, &d.DayOfWeek, &d.StartTime, &d.EndTime, &d.ClassName, &d.SubjectName, &d.TeacherName, &d.RoomName); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// ListEntriesByClass returns a class timetable with joined names.
func (r *PGRepository) ListEntriesByClass(ctx context.Context, classID, academicYearID int64) ([]EntryDetail, error) {
	return r.listEntryDetails(ctx, "WHERE e.class_id=$1 AND e.academic_year_id=$2", classID, academicYearID)
}

// ListEntriesByTeacher returns a teacher timetable with joined names.
func (r *PGRepository) ListEntriesByTeacher(ctx context.Context, teacherID, academicYearID int64) ([]EntryDetail, error) {
	return r.listEntryDetails(ctx, "WHERE e.teacher_id=$1 AND e.academic_year_id=$2", teacherID, academicYearID)
}

// GetEntry fetches one entry.
func (r *PGRepository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, `SELECT id, establishment_id, academic_year_id, class_id, subject_id, teacher_id, period_id, room_id, created_at FROM timetable_entries WHERE id=$1`, id).
		Scan(&e.ID, &e.EstablishmentID, &e.AcademicYearID, &e.ClassID, &e.SubjectID, &e.TeacherID, &e.PeriodID, &e.RoomID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// CreateEntry inserts an entry. The table carries unique indexes on
// (period_id, class_id), (period_id, teacher_id) and
// (period_id, room_id) per academic year, so concurrent writers racing
// past the pre-check still cannot double-book.
func (r *PGRepository) CreateEntry(ctx context.Context, e *Entry) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO timetable_entries (establishment_id, academic_year_id, class_id, subject_id, teacher_id, period_id, room_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id, created_at`,
		e.EstablishmentID, e.AcademicYearID, e.ClassID, e.SubjectID, e.TeacherID, e.PeriodID, e.RoomID).Scan(&e.ID, &e.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUniqueViolation
	}
	return err
}

// UpdateEntry rewrites an entry's scheduling fields.
func (r *PGRepository) UpdateEntry(ctx context.Context, e *Entry) error {
	tag, err := r.pool.Exec(ctx, `UPDATE timetable_entries SET class_id=$2, subject_id=$3, teacher_id=$4, period_id=$5, room_id=$6 WHERE id=$1`,
		e.ID, e.ClassID, e.SubjectID, e.TeacherID, e.PeriodID, e.RoomID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteEntry removes an entry.
func (r *PGRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM timetable_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// MissingReference verifies each foreign reference of e in one round
// trip and names the first missing one.
func (r *PGRepository) MissingReference(ctx context.Context, e Entry) (string, error) {
	var classOK, subjectOK, teacherOK, periodOK, yearOK, roomOK bool
	roomID := int64(0)
	if e.RoomID != nil {
		roomID = *e.RoomID
	}
	err := r.pool.QueryRow(ctx, `SELECT
		EXISTS(SELECT 1 FROM classes WHERE id=$1),
		EXISTS(SELECT 1 FROM subjects WHERE id=$2),
		EXISTS(SELECT 1 FROM users WHERE id=$3 AND is_active),
		EXISTS(SELECT 1 FROM timetable_periods WHERE id=$4),
		EXISTS(SELECT 1 FROM academic_years WHERE id=$5),
		($6 = 0 OR EXISTS(SELECT 1 FROM rooms WHERE id=$6))`,
		e.ClassID, e.SubjectID, e.TeacherID, e.PeriodID, e.AcademicYearID, roomID).
		Scan(&classOK, &subjectOK, &teacherOK, &periodOK, &yearOK, &roomOK)
	if err != nil {
		return "", err
	}
	switch {
	case !classOK:
		return "classe", nil
	case !subjectOK:
		return "matiere", nil
	case !teacherOK:
		return "enseignant", nil
	case !periodOK:
		return "periode", nil
	case !yearOK:
		return "annee", nil
	case !roomOK:
		return "salle", nil
	}
	return "", nil
}
