package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	"github.com/ibsadiq/scms-backend-sub000/pkg/database"
)

// GradeScaleRepository persists grading scales and their rules.
type GradeScaleRepository struct {
	db *sqlx.DB
}

// NewGradeScaleRepository constructs the repository.
func NewGradeScaleRepository(db *sqlx.DB) *GradeScaleRepository {
	return &GradeScaleRepository{db: db}
}

// FindActive loads the active scale with its rules, highest band first. It returns sql.ErrNoRows
// when no scale is active.
func (r *GradeScaleRepository) FindActive(ctx context.Context) (*models.GradeScale, error) {
	const scaleQuery = `SELECT id, name, is_active, created_at, updated_at FROM grade_scales
        WHERE is_active = TRUE ORDER BY updated_at DESC LIMIT 1`
	var scale models.GradeScale
	if err := r.db.GetContext(ctx, &scale, scaleQuery); err != nil {
		return nil, err
	}
	const rulesQuery = `SELECT id, scale_id, min_grade, max_grade, letter_grade, grade_point
        FROM grade_scale_rules WHERE scale_id = $1 ORDER BY min_grade DESC`
	if err := r.db.SelectContext(ctx, &scale.Rules, rulesQuery, scale.ID); err != nil {
		return nil, fmt.Errorf("list grade scale rules: %w", err)
	}
	return &scale, nil
}

// ReplaceActive deactivates the current scale and stores the given one as active.
func (r *GradeScaleRepository) ReplaceActive(ctx context.Context, scale *models.GradeScale) error {
	now := time.Now().UTC()
	if scale.ID == "" {
		scale.ID = uuid.NewString()
	}
	scale.IsActive = true
	scale.CreatedAt = now
	scale.UpdatedAt = now

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE grade_scales SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE`, now); err != nil {
			return fmt.Errorf("deactivate grade scales: %w", err)
		}
		const insertScale = `INSERT INTO grade_scales (id, name, is_active, created_at, updated_at)
        VALUES (:id, :name, :is_active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertScale, scale); err != nil {
			return fmt.Errorf("insert grade scale: %w", err)
		}
		const insertRule = `INSERT INTO grade_scale_rules (id, scale_id, min_grade, max_grade, letter_grade, grade_point)
        VALUES (:id, :scale_id, :min_grade, :max_grade, :letter_grade, :grade_point)`
		for i := range scale.Rules {
			if scale.Rules[i].ID == "" {
				scale.Rules[i].ID = uuid.NewString()
			}
			scale.Rules[i].ScaleID = scale.ID
			if _, err := tx.NamedExecContext(ctx, insertRule, scale.Rules[i]); err != nil {
				return fmt.Errorf("insert grade scale rule: %w", err)
			}
		}
		return nil
	})
}
