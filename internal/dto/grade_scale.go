package dto

import "github.com/shopspring/decimal"

// GradeScaleRuleRequest is one band of a replacement scale.
type GradeScaleRuleRequest struct {
	MinGrade    decimal.Decimal `json:"min_grade"`
	MaxGrade    decimal.Decimal `json:"max_grade"`
	LetterGrade string          `json:"letter_grade" validate:"required,max=2"`
	GradePoint  decimal.Decimal `json:"grade_point"`
}

// GradeScaleRequest replaces the active grading scale.
type GradeScaleRequest struct {
	Name  string                  `json:"name" validate:"required,max=100"`
	Rules []GradeScaleRuleRequest `json:"rules" validate:"required,min=1,dive"`
}
