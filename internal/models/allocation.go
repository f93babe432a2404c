package models

// SubjectAllocation assigns a teacher to teach a subject to a classroom in a term.
type SubjectAllocation struct {
	ID              string `db:"id" json:"id"`
	TeacherID       string `db:"teacher_id" json:"teacher_id"`
	SubjectID       string `db:"subject_id" json:"subject_id"`
	SubjectName     string `db:"subject_name" json:"subject_name"`
	ClassroomID     string `db:"classroom_id" json:"classroom_id"`
	AcademicYearID  string `db:"academic_year_id" json:"academic_year_id"`
	TermID          string `db:"term_id" json:"term_id"`
	WeeklyPeriods   int    `db:"weekly_periods" json:"weekly_periods"`
	MaxDailyPeriods int    `db:"max_daily_periods" json:"max_daily_periods"`
}
