package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	"github.com/ibsadiq/scms-backend-sub000/pkg/database"
)

// ResultRepository persists term and subject results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const termResultColumns = `tr.id, tr.student_id, COALESCE(s.full_name, '') AS student_name, tr.term_id, tr.academic_year_id,
        tr.classroom_id, tr.total_marks, tr.total_possible, tr.average_percentage, tr.gpa, tr.grade, tr.position_in_class,
        tr.total_students, tr.is_published, tr.published_date, tr.computed_at, tr.created_at, tr.updated_at`

// ReplaceStudentResult stores a freshly computed result in one transaction: it gets or creates the
// term result row keyed by (student, term, academic year), drops its subject rows, inserts the new
// ones and updates the parent in place. Positions and publication state are left untouched.
func (r *ResultRepository) ReplaceStudentResult(ctx context.Context, result *models.TermResult) error {
	now := time.Now().UTC()
	if result.ComputedAt.IsZero() {
		result.ComputedAt = now
	}

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const upsertShell = `INSERT INTO term_results (id, student_id, term_id, academic_year_id, classroom_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (student_id, term_id, academic_year_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
		if err := tx.QueryRowxContext(ctx, upsertShell, uuid.NewString(), result.StudentID, result.TermID, result.AcademicYearID, result.ClassroomID, now).
			Scan(&result.ID, &result.CreatedAt); err != nil {
			return fmt.Errorf("get or create term result: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM subject_results WHERE term_result_id = $1`, result.ID); err != nil {
			return fmt.Errorf("delete subject results: %w", err)
		}

		const insertSubject = `INSERT INTO subject_results (id, term_result_id, subject_id, ca_score, ca_max, exam_score, exam_max,
        total_score, total_possible, percentage, letter_grade, grade_point, remark, highest_score, lowest_score, class_average,
        position_in_subject, total_students)
        VALUES (:id, :term_result_id, :subject_id, :ca_score, :ca_max, :exam_score, :exam_max, :total_score, :total_possible,
        :percentage, :letter_grade, :grade_point, :remark, :highest_score, :lowest_score, :class_average,
        :position_in_subject, :total_students)`
		for i := range result.Subjects {
			subject := &result.Subjects[i]
			if subject.ID == "" {
				subject.ID = uuid.NewString()
			}
			subject.TermResultID = result.ID
			if _, err := tx.NamedExecContext(ctx, insertSubject, subject); err != nil {
				return fmt.Errorf("insert subject result: %w", err)
			}
		}

		const updateParent = `UPDATE term_results SET classroom_id = $1, total_marks = $2, total_possible = $3,
        average_percentage = $4, gpa = $5, grade = $6, computed_at = $7, updated_at = $8
        WHERE id = $9`
		if _, err := tx.ExecContext(ctx, updateParent, result.ClassroomID, result.TotalMarks, result.TotalPossible,
			result.AveragePercentage, result.GPA, result.Grade, result.ComputedAt, now, result.ID); err != nil {
			return fmt.Errorf("update term result: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	result.UpdatedAt = now
	return nil
}

// ApplyRankings writes class and subject positions for a (term, classroom) in one transaction.
// Positions of rows not named in the ranking are cleared first.
func (r *ResultRepository) ApplyRankings(ctx context.Context, ranking models.ClassRanking) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const clearSubjects = `UPDATE subject_results sr SET position_in_subject = NULL, total_students = 0
        FROM term_results tr
        WHERE sr.term_result_id = tr.id AND tr.term_id = $1 AND tr.classroom_id = $2`
		if _, err := tx.ExecContext(ctx, clearSubjects, ranking.TermID, ranking.ClassroomID); err != nil {
			return fmt.Errorf("clear subject positions: %w", err)
		}
		const clearTerms = `UPDATE term_results SET position_in_class = NULL, total_students = 0 WHERE term_id = $1 AND classroom_id = $2`
		if _, err := tx.ExecContext(ctx, clearTerms, ranking.TermID, ranking.ClassroomID); err != nil {
			return fmt.Errorf("clear class positions: %w", err)
		}

		for _, id := range sortedKeys(ranking.Positions) {
			if _, err := tx.ExecContext(ctx, `UPDATE term_results SET position_in_class = $1, total_students = $2 WHERE id = $3`,
				ranking.Positions[id], ranking.TotalStudents, id); err != nil {
				return fmt.Errorf("set class position: %w", err)
			}
		}

		const updateSubject = `UPDATE subject_results SET highest_score = $1, lowest_score = $2, class_average = $3,
        position_in_subject = $4, total_students = $5 WHERE id = $6`
		for _, s := range ranking.Subjects {
			if _, err := tx.ExecContext(ctx, updateSubject, s.Highest, s.Lowest, s.Average, s.Position, s.TotalStudents, s.SubjectResultID); err != nil {
				return fmt.Errorf("set subject position: %w", err)
			}
		}
		return nil
	})
}

// ListByClassroom returns the stored results of a (term, classroom) ordered by class position,
// each with its subject rows.
func (r *ResultRepository) ListByClassroom(ctx context.Context, termID, classroomID string) ([]models.TermResult, error) {
	query := `SELECT ` + termResultColumns + `
        FROM term_results tr
        LEFT JOIN students s ON s.id = tr.student_id
        WHERE tr.term_id = $1 AND tr.classroom_id = $2
        ORDER BY tr.position_in_class NULLS LAST, student_name, tr.student_id`
	var results []models.TermResult
	if err := r.db.SelectContext(ctx, &results, query, termID, classroomID); err != nil {
		return nil, fmt.Errorf("list term results: %w", err)
	}
	if err := r.attachSubjects(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// FindByStudent returns a student's result for a term with its subject rows, or sql.ErrNoRows.
func (r *ResultRepository) FindByStudent(ctx context.Context, studentID, termID string) (*models.TermResult, error) {
	query := `SELECT ` + termResultColumns + `
        FROM term_results tr
        LEFT JOIN students s ON s.id = tr.student_id
        WHERE tr.student_id = $1 AND tr.term_id = $2
        LIMIT 1`
	var result models.TermResult
	if err := r.db.GetContext(ctx, &result, query, studentID, termID); err != nil {
		return nil, err
	}
	results := []models.TermResult{result}
	if err := r.attachSubjects(ctx, results); err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (r *ResultRepository) attachSubjects(ctx context.Context, results []models.TermResult) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]string, len(results))
	index := make(map[string]int, len(results))
	for i := range results {
		ids[i] = results[i].ID
		index[results[i].ID] = i
	}
	const query = `SELECT sr.id, sr.term_result_id, sr.subject_id, COALESCE(sub.name, '') AS subject_name, sr.ca_score, sr.ca_max,
        sr.exam_score, sr.exam_max, sr.total_score, sr.total_possible, sr.percentage, sr.letter_grade, sr.grade_point, sr.remark,
        sr.highest_score, sr.lowest_score, sr.class_average, sr.position_in_subject, sr.total_students
        FROM subject_results sr
        LEFT JOIN subjects sub ON sub.id = sr.subject_id
        WHERE sr.term_result_id = ANY($1)
        ORDER BY sr.subject_id`
	var subjects []models.SubjectResult
	if err := r.db.SelectContext(ctx, &subjects, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list subject results: %w", err)
	}
	for _, subject := range subjects {
		if i, ok := index[subject.TermResultID]; ok {
			results[i].Subjects = append(results[i].Subjects, subject)
		}
	}
	return nil
}

// DeleteByClassroom removes every result of a (term, classroom), subject rows first.
func (r *ResultRepository) DeleteByClassroom(ctx context.Context, termID, classroomID string) (int64, error) {
	var affected int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const deleteSubjects = `DELETE FROM subject_results WHERE term_result_id IN
        (SELECT id FROM term_results WHERE term_id = $1 AND classroom_id = $2)`
		if _, err := tx.ExecContext(ctx, deleteSubjects, termID, classroomID); err != nil {
			return fmt.Errorf("delete subject results: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM term_results WHERE term_id = $1 AND classroom_id = $2`, termID, classroomID)
		if err != nil {
			return fmt.Errorf("delete term results: %w", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// SetPublished flips publication on every result of exactly the (term, classroom) pair.
func (r *ResultRepository) SetPublished(ctx context.Context, termID, classroomID string, published bool, at *time.Time) (int64, error) {
	const query = `UPDATE term_results SET is_published = $1, published_date = $2, updated_at = $3
        WHERE term_id = $4 AND classroom_id = $5`
	res, err := r.db.ExecContext(ctx, query, published, at, time.Now().UTC(), termID, classroomID)
	if err != nil {
		return 0, fmt.Errorf("set published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set published rows: %w", err)
	}
	return affected, nil
}

// Status counts computed and published results of a (term, classroom).
func (r *ResultRepository) Status(ctx context.Context, termID, classroomID string) (*models.ResultStatus, error) {
	const query = `SELECT COUNT(*) AS computed, COUNT(*) FILTER (WHERE is_published) AS published, MAX(computed_at) AS last_computed_at
        FROM term_results WHERE term_id = $1 AND classroom_id = $2`
	var status models.ResultStatus
	if err := r.db.GetContext(ctx, &status, query, termID, classroomID); err != nil {
		return nil, fmt.Errorf("result status: %w", err)
	}
	status.TermID = termID
	status.ClassroomID = classroomID
	status.DeriveState()
	return &status, nil
}
