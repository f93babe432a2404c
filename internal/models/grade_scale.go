package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GradeScale is a named set of percentage bands. At most one scale is active at a time.
type GradeScale struct {
	ID        string           `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
	Rules     []GradeScaleRule `db:"-" json:"rules"`
	// Fallback is true when no scale is stored and the built-in default is served.
	Fallback bool `db:"-" json:"fallback,omitempty"`
}

// GradeScaleRule maps an inclusive percentage band to a letter and grade point.
type GradeScaleRule struct {
	ID          string          `db:"id" json:"id"`
	ScaleID     string          `db:"scale_id" json:"scale_id"`
	MinGrade    decimal.Decimal `db:"min_grade" json:"min_grade"`
	MaxGrade    decimal.Decimal `db:"max_grade" json:"max_grade"`
	LetterGrade string          `db:"letter_grade" json:"letter_grade"`
	GradePoint  decimal.Decimal `db:"grade_point" json:"grade_point"`
}
