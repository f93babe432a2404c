package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
)

// AllocationRepository reads subject allocations.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository constructs the repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// ListByClassroomTerm returns one allocation per subject taught to the classroom in the term.
func (r *AllocationRepository) ListByClassroomTerm(ctx context.Context, classroomID, academicYearID, termID string) ([]models.SubjectAllocation, error) {
	const query = `SELECT DISTINCT ON (a.subject_id) a.id, a.teacher_id, a.subject_id, COALESCE(sub.name, '') AS subject_name,
        a.classroom_id, a.academic_year_id, a.term_id, a.weekly_periods, a.max_daily_periods
        FROM subject_allocations a
        LEFT JOIN subjects sub ON sub.id = a.subject_id
        WHERE a.classroom_id = $1 AND a.academic_year_id = $2 AND a.term_id = $3
        ORDER BY a.subject_id, a.id`
	var allocations []models.SubjectAllocation
	if err := r.db.SelectContext(ctx, &allocations, query, classroomID, academicYearID, termID); err != nil {
		return nil, fmt.Errorf("list subject allocations: %w", err)
	}
	return allocations, nil
}
