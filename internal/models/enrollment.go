package models

// StudentEnrollment places a student in a classroom for an academic year.
type StudentEnrollment struct {
	ID             string `db:"id" json:"id"`
	StudentID      string `db:"student_id" json:"student_id"`
	StudentName    string `db:"student_name" json:"student_name"`
	ClassroomID    string `db:"classroom_id" json:"classroom_id"`
	AcademicYearID string `db:"academic_year_id" json:"academic_year_id"`
	IsActive       bool   `db:"is_active" json:"is_active"`
}
