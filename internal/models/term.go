package models

import "time"

// Term models an academic term within an academic year.
type Term struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
}
