package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
)

// EnrollmentRepository reads student enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.student_id, COALESCE(s.full_name, '') AS student_name, e.classroom_id, e.academic_year_id, e.is_active`

// ListActiveByClassroom returns active enrollments of a classroom for an academic year.
func (r *EnrollmentRepository) ListActiveByClassroom(ctx context.Context, classroomID, academicYearID string) ([]models.StudentEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
        FROM student_enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        WHERE e.classroom_id = $1 AND e.academic_year_id = $2 AND e.is_active = TRUE
        ORDER BY e.student_id`
	var enrollments []models.StudentEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classroomID, academicYearID); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// FindActiveByStudent returns the student's active enrollment for an academic year or sql.ErrNoRows.
func (r *EnrollmentRepository) FindActiveByStudent(ctx context.Context, studentID, academicYearID string) (*models.StudentEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
        FROM student_enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        WHERE e.student_id = $1 AND e.academic_year_id = $2 AND e.is_active = TRUE
        LIMIT 1`
	var enrollment models.StudentEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, academicYearID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
