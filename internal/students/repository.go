package students

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scolaris/scolaris/internal/platform/httpx"
)

// ErrDuplicate reports a matricule collision within an establishment.
var ErrDuplicate = errors.New("duplicate student")

// RepositoryPort defines data access for student records.
type RepositoryPort interface {
	List(ctx context.Context, filter SearchFilter) ([]Student, int, error)
	Get(ctx context.Context, id int64) (*Student, error)
	Create(ctx context.Context, s *Student) error
	Update(ctx context.Context, s *Student) error
	Archive(ctx context.Context, id int64) error
	AssignClass(ctx context.Context, studentID int64, classID *int64) error
	ClassExists(ctx context.Context, classID int64) (bool, error)

	AddParentLink(ctx context.Context, link ParentLink) error
	RemoveParentLink(ctx context.Context, studentID, parentUserID int64) error
	ListParents(ctx context.Context, studentID int64) ([]ParentLink, error)
	IsParentOf(ctx context.Context, parentUserID, studentID int64) (bool, error)
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

const studentColumns = `id, establishment_id, user_id, class_id, matricule, first_name, last_name, birth_date, created_at`

func scanStudent(row pgx.Row) (*Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.EstablishmentID, &s.UserID, &s.ClassID, &s.Matricule, &s.FirstName, &s.LastName, &s.BirthDate, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns one page of active students plus the unpaged total. The
// name query is matched against the folded search column.
func (r *Repository) List(ctx context.Context, filter SearchFilter) ([]Student, int, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}

	where := `WHERE establishment_id=$1 AND archived_at IS NULL`
	args := []any{filter.EstablishmentID}
	if filter.ClassID != nil {
		args = append(args, *filter.ClassID)
		where += ` AND class_id=$2`
	}
	if q := FoldName(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		switch len(args) {
		case 2:
			where += ` AND search_name LIKE $2`
		case 3:
			where += ` AND search_name LIKE $3`
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	limitClause := ` ORDER BY last_name, first_name, id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students `+where+limitClause, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.EstablishmentID, &s.UserID, &s.ClassID, &s.Matricule, &s.FirstName, &s.LastName, &s.BirthDate, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get fetches one student.
func (r *Repository) Get(ctx context.Context, id int64) (*Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id=$1 AND archived_at IS NULL`, id)
	return scanStudent(row)
}

// Create inserts a student record.
func (r *Repository) Create(ctx context.Context, s *Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (establishment_id, user_id, class_id, matricule, first_name, last_name, birth_date, search_name)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		s.EstablishmentID, s.UserID, s.ClassID, s.Matricule, s.FirstName, s.LastName, s.BirthDate,
		FoldName(s.FirstName+" "+s.LastName),
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Update rewrites the mutable fields of a student.
func (r *Repository) Update(ctx context.Context, s *Student) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET first_name=$2, last_name=$3, birth_date=$4, search_name=$5 WHERE id=$1 AND archived_at IS NULL`,
		s.ID, s.FirstName, s.LastName, s.BirthDate, FoldName(s.FirstName+" "+s.LastName))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Archive soft-deletes a student. Records are never hard-deleted.
func (r *Repository) Archive(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE students SET archived_at=now() WHERE id=$1 AND archived_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// AssignClass moves a student into a class, or out of any class when
// classID is nil.
func (r *Repository) AssignClass(ctx context.Context, studentID int64, classID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE students SET class_id=$2 WHERE id=$1 AND archived_at IS NULL`, studentID, classID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ClassExists reports whether a class row exists.
func (r *Repository) ClassExists(ctx context.Context, classID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM classes WHERE id=$1)`, classID).Scan(&ok)
	return ok, err
}

// AddParentLink ties a guardian to a student. Re-adding an existing
// link is a no-op.
func (r *Repository) AddParentLink(ctx context.Context, link ParentLink) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO parent_students (student_id, parent_user_id, relationship) VALUES ($1,$2,$3)
		 ON CONFLICT (student_id, parent_user_id) DO NOTHING`,
		link.StudentID, link.ParentUserID, link.Relationship)
	return err
}

// RemoveParentLink detaches a guardian from a student.
func (r *Repository) RemoveParentLink(ctx context.Context, studentID, parentUserID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM parent_students WHERE student_id=$1 AND parent_user_id=$2`, studentID, parentUserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListParents returns the guardians of one student.
func (r *Repository) ListParents(ctx context.Context, studentID int64) ([]ParentLink, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, parent_user_id, COALESCE(relationship, '') FROM parent_students WHERE student_id=$1 ORDER BY parent_user_id`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParentLink
	for rows.Next() {
		var l ParentLink
		if err := rows.Scan(&l.StudentID, &l.ParentUserID, &l.Relationship); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// IsParentOf reports whether parentUserID is linked to studentID.
func (r *Repository) IsParentOf(ctx context.Context, parentUserID, studentID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM parent_students WHERE student_id=$1 AND parent_user_id=$2)`,
		studentID, parentUserID).Scan(&ok)
	return ok, err
}
