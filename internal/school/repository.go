package school

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scolaris/scolaris/internal/platform/db"
	"github.com/scolaris/scolaris/internal/platform/httpx"
)

// ErrDuplicate reports a uniqueness violation on masterdata records.
var ErrDuplicate = errors.New("duplicate record")

// RepositoryPort defines data access for school masterdata.
type RepositoryPort interface {
	ListEstablishments(ctx context.Context) ([]Establishment, error)
	GetEstablishment(ctx context.Context, id int64) (*Establishment, error)
	CreateEstablishment(ctx context.Context, e *Establishment) error
	UpdateEstablishment(ctx context.Context, e *Establishment) error

	ListAcademicYears(ctx context.Context, establishmentID int64) ([]AcademicYear, error)
	CreateAcademicYear(ctx context.Context, y *AcademicYear) error
	SetCurrentAcademicYear(ctx context.Context, establishmentID, yearID int64) error

	ListClasses(ctx context.Context, establishmentID int64) ([]Class, error)
	GetClass(ctx context.Context, id int64) (*Class, error)
	CreateClass(ctx context.Context, c *Class) error
	UpdateClass(ctx context.Context, c *Class) error
	DeleteClass(ctx context.Context, id int64) error

	ListSubjects(ctx context.Context, establishmentID int64) ([]Subject, error)
	CreateSubject(ctx context.Context, s *Subject) error
	DeleteSubject(ctx context.Context, id int64) error

	ListRooms(ctx context.Context, establishmentID int64) ([]Room, error)
	CreateRoom(ctx context.Context, room *Room) error
	DeleteRoom(ctx context.Context, id int64) error
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

// ListEstablishments returns every tenant.
func (r *Repository) ListEstablishments(ctx context.Context) ([]Establishment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, code, COALESCE(address, ''), COALESCE(phone, ''), created_at FROM establishments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Establishment
	for rows.Next() {
		var e Establishment
		if err := rows.Scan(&e.ID, &e.Name, &e.Code, &e.Address, &e.Phone, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEstablishment fetches one tenant.
func (r *Repository) GetEstablishment(ctx context.Context, id int64) (*Establishment, error) {
	var e Establishment
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, COALESCE(address, ''), COALESCE(phone, ''), created_at FROM establishments WHERE id=$1`, id).
		Scan(&e.ID, &e.Name, &e.Code, &e.Address, &e.Phone, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// CreateEstablishment inserts a tenant. Codes are unique.
func (r *Repository) CreateEstablishment(ctx context.Context, e *Establishment) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO establishments (name, code, address, phone, created_at) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW()) RETURNING id, created_at`,
		e.Name, e.Code, e.Address, e.Phone).Scan(&e.ID, &e.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateEstablishment rewrites tenant fields.
func (r *Repository) UpdateEstablishment(ctx context.Context, e *Establishment) error {
	tag, err := r.pool.Exec(ctx, `UPDATE establishments SET name=$2, address=NULLIF($3, ''), phone=NULLIF($4, '') WHERE id=$1`, e.ID, e.Name, e.Address, e.Phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListAcademicYears returns the years of one establishment.
func (r *Repository) ListAcademicYears(ctx context.Context, establishmentID int64) ([]AcademicYear, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, label, start_date, end_date, is_current FROM academic_years WHERE establishment_id=$1 ORDER BY start_date DESC`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AcademicYear
	for rows.Next() {
		var y AcademicYear
		if err := rows.Scan(&y.ID, &y.EstablishmentID, &y.Label, &y.StartDate, &y.EndDate, &y.IsCurrent); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// CreateAcademicYear inserts a year.
func (r *Repository) CreateAcademicYear(ctx context.Context, y *AcademicYear) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO academic_years (establishment_id, label, start_date, end_date, is_current) VALUES ($1, $2, $3, $4, false) RETURNING id`,
		y.EstablishmentID, y.Label, y.StartDate, y.EndDate).Scan(&y.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// SetCurrentAcademicYear flips the current flag to exactly one year.
func (r *Repository) SetCurrentAcademicYear(ctx context.Context, establishmentID, yearID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE academic_years SET is_current=false WHERE establishment_id=$1`, establishmentID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE academic_years SET is_current=true WHERE id=$1 AND establishment_id=$2`, yearID, establishmentID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}

// ListClasses returns the classes of one establishment.
func (r *Repository) ListClasses(ctx context.Context, establishmentID int64) ([]Class, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, name, COALESCE(level, ''), head_teacher_id FROM classes WHERE establishment_id=$1 ORDER BY name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.EstablishmentID, &c.Name, &c.Level, &c.HeadTeacherID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClass fetches one class.
func (r *Repository) GetClass(ctx context.Context, id int64) (*Class, error) {
	var c Class
	err := r.pool.QueryRow(ctx, `SELECT id, establishment_id, name, COALESCE(level, ''), head_teacher_id FROM classes WHERE id=$1`, id).
		Scan(&c.ID, &c.EstablishmentID, &c.Name, &c.Level, &c.HeadTeacherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateClass inserts a class. Names are unique per establishment.
func (r *Repository) CreateClass(ctx context.Context, c *Class) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO classes (establishment_id, name, level, head_teacher_id) VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id`,
		c.EstablishmentID, c.Name, c.Level, c.HeadTeacherID).Scan(&c.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateClass rewrites a class.
func (r *Repository) UpdateClass(ctx context.Context, c *Class) error {
	tag, err := r.pool.Exec(ctx, `UPDATE classes SET name=$2, level=NULLIF($3, ''), head_teacher_id=$4 WHERE id=$1`, c.ID, c.Name, c.Level, c.HeadTeacherID)
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

// DeleteClass removes a class.
func (r *Repository) DeleteClass(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListSubjects returns the subjects of one establishment.
func (r *Repository) ListSubjects(ctx context.Context, establishmentID int64) ([]Subject, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, name, COALESCE(code, ''), department_id FROM subjects WHERE establishment_id=$1 ORDER BY name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.EstablishmentID, &s.Name, &s.Code, &s.DepartmentID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSubject inserts a subject.
func (r *Repository) CreateSubject(ctx context.Context, s *Subject) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO subjects (establishment_id, name, code, department_id) VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id`,
		s.EstablishmentID, s.Name, s.Code, s.DepartmentID).Scan(&s.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteSubject removes a subject.
func (r *Repository) DeleteSubject(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subjects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListRooms returns the rooms of one establishment.
func (r *Repository) ListRooms(ctx context.Context, establishmentID int64) ([]Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, establishment_id, name, COALESCE(capacity, 0) FROM rooms WHERE establishment_id=$1 ORDER BY name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.EstablishmentID, &room.Name, &room.Capacity); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// CreateRoom inserts a room.
func (r *Repository) CreateRoom(ctx context.Context, room *Room) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO rooms (establishment_id, name, capacity) VALUES ($1, $2, NULLIF($3, 0)) RETURNING id`,
		room.EstablishmentID, room.Name, room.Capacity).Scan(&room.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteRoom removes a room.
func (r *Repository) DeleteRoom(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
