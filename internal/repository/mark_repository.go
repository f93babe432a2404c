package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
)

// MarkRepository reads raw marks joined with their examinations.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs a mark repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// ListByEnrollments returns marks of the given enrollments for examinations held in the term,
// oldest first per subject. Examinations without a category come back with an empty Category.
func (r *MarkRepository) ListByEnrollments(ctx context.Context, enrollmentIDs []string, termID string) ([]models.MarkEntry, error) {
	if len(enrollmentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT m.id, m.examination_id, m.subject_id, m.enrollment_id, m.points_scored, m.recorded_at,
        x.name AS examination_name, COALESCE(x.category, '') AS category, x.out_of
        FROM raw_marks m
        JOIN examinations x ON x.id = m.examination_id
        WHERE m.enrollment_id = ANY($1) AND x.term_id = $2
        ORDER BY m.enrollment_id, m.subject_id, m.recorded_at, m.id`
	var marks []models.MarkEntry
	if err := r.db.SelectContext(ctx, &marks, query, pq.Array(enrollmentIDs), termID); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}
