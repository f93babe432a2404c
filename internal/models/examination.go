package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExamCategory partitions examinations into continuous assessment and final exams.
type ExamCategory string

const (
	ExamCategoryCA   ExamCategory = "CA"
	ExamCategoryExam ExamCategory = "EXAM"
)

// Valid reports whether the category is one of the known values.
func (c ExamCategory) Valid() bool {
	return c == ExamCategoryCA || c == ExamCategoryExam
}

// Examination is an assessment sat within a term.
type Examination struct {
	ID       string          `db:"id" json:"id"`
	Name     string          `db:"name" json:"name"`
	TermID   string          `db:"term_id" json:"term_id"`
	Category ExamCategory    `db:"category" json:"category"`
	OutOf    decimal.Decimal `db:"out_of" json:"out_of"`
	HeldOn   *time.Time      `db:"held_on" json:"held_on,omitempty"`
}

// RawMark is one scored entry for a (student enrollment, subject, examination) triple.
type RawMark struct {
	ID            string          `db:"id" json:"id"`
	ExaminationID string          `db:"examination_id" json:"examination_id"`
	SubjectID     string          `db:"subject_id" json:"subject_id"`
	EnrollmentID  string          `db:"enrollment_id" json:"enrollment_id"`
	PointsScored  decimal.Decimal `db:"points_scored" json:"points_scored"`
	RecordedAt    time.Time       `db:"recorded_at" json:"recorded_at"`
}

// MarkEntry is a raw mark joined with its examination.
type MarkEntry struct {
	RawMark
	ExaminationName string          `db:"examination_name" json:"examination_name"`
	Category        ExamCategory    `db:"category" json:"category"`
	OutOf           decimal.Decimal `db:"out_of" json:"out_of"`
}
