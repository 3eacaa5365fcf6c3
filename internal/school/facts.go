package school

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FactsRepository answers the relationship questions authorization
// decisions depend on. Callers convert results with
// authz.FactFromLookup, so a failed lookup denies instead of permits.
type FactsRepository struct {
	pool *pgxpool.Pool
}

// NewFactsRepository constructs the facts provider.
func NewFactsRepository(pool *pgxpool.Pool) *FactsRepository {
	return &FactsRepository{pool: pool}
}

// IsParentOfStudent reports whether userID is linked as a parent or
// guardian of the student.
func (f *FactsRepository) IsParentOfStudent(ctx context.Context, userID, studentID int64) (bool, error) {
	var linked bool
	err := f.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM parent_students WHERE parent_user_id=$1 AND student_id=$2)`, userID, studentID).Scan(&linked)
	return linked, err
}

// IsTeacherOfClass reports whether userID teaches the class in the
// current academic year, or is its head teacher.
func (f *FactsRepository) IsTeacherOfClass(ctx context.Context, userID, classID int64) (bool, error) {
	var teaches bool
	err := f.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM classes c WHERE c.id=$2 AND c.head_teacher_id=$1)
		OR EXISTS(SELECT 1 FROM timetable_entries e JOIN academic_years y ON y.id=e.academic_year_id AND y.is_current WHERE e.teacher_id=$1 AND e.class_id=$2)`, userID, classID).Scan(&teaches)
	return teaches, err
}

// IsTeacherInDepartment reports whether userID teaches a subject of the
// department in the current academic year.
func (f *FactsRepository) IsTeacherInDepartment(ctx context.Context, userID, departmentID int64) (bool, error) {
	var member bool
	err := f.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM timetable_entries e
		JOIN subjects s ON s.id=e.subject_id
		JOIN academic_years y ON y.id=e.academic_year_id AND y.is_current
		WHERE e.teacher_id=$1 AND s.department_id=$2)`, userID, departmentID).Scan(&member)
	return member, err
}
