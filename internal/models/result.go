package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubjectResult is a student's outcome for one subject within a term result.
type SubjectResult struct {
	ID                string          `db:"id" json:"id"`
	TermResultID      string          `db:"term_result_id" json:"term_result_id"`
	SubjectID         string          `db:"subject_id" json:"subject_id"`
	SubjectName       string          `db:"subject_name" json:"subject_name"`
	CAScore           decimal.Decimal `db:"ca_score" json:"ca_score"`
	CAMax             decimal.Decimal `db:"ca_max" json:"ca_max"`
	ExamScore         decimal.Decimal `db:"exam_score" json:"exam_score"`
	ExamMax           decimal.Decimal `db:"exam_max" json:"exam_max"`
	TotalScore        decimal.Decimal `db:"total_score" json:"total_score"`
	TotalPossible     decimal.Decimal `db:"total_possible" json:"total_possible"`
	Percentage        decimal.Decimal `db:"percentage" json:"percentage"`
	LetterGrade       string          `db:"letter_grade" json:"letter_grade"`
	GradePoint        decimal.Decimal `db:"grade_point" json:"grade_point"`
	Remark            string          `db:"remark" json:"remark"`
	HighestScore      decimal.Decimal `db:"highest_score" json:"highest_score"`
	LowestScore       decimal.Decimal `db:"lowest_score" json:"lowest_score"`
	ClassAverage      decimal.Decimal `db:"class_average" json:"class_average"`
	PositionInSubject *int            `db:"position_in_subject" json:"position_in_subject,omitempty"`
	TotalStudents     int             `db:"total_students" json:"total_students"`
}

// TermResult is a student's aggregated outcome for one term. It is unique per
// (student, term, academic year) and owns its subject rows.
type TermResult struct {
	ID                string          `db:"id" json:"id"`
	StudentID         string          `db:"student_id" json:"student_id"`
	StudentName       string          `db:"student_name" json:"student_name,omitempty"`
	TermID            string          `db:"term_id" json:"term_id"`
	AcademicYearID    string          `db:"academic_year_id" json:"academic_year_id"`
	ClassroomID       string          `db:"classroom_id" json:"classroom_id"`
	TotalMarks        decimal.Decimal `db:"total_marks" json:"total_marks"`
	TotalPossible     decimal.Decimal `db:"total_possible" json:"total_possible"`
	AveragePercentage decimal.Decimal `db:"average_percentage" json:"average_percentage"`
	GPA               decimal.Decimal `db:"gpa" json:"gpa"`
	Grade             string          `db:"grade" json:"grade"`
	PositionInClass   *int            `db:"position_in_class" json:"position_in_class,omitempty"`
	TotalStudents     int             `db:"total_students" json:"total_students"`
	IsPublished       bool            `db:"is_published" json:"is_published"`
	PublishedDate     *time.Time      `db:"published_date" json:"published_date,omitempty"`
	ComputedAt        time.Time       `db:"computed_at" json:"computed_at"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
	Subjects          []SubjectResult `db:"-" json:"subjects,omitempty"`
}

// StudentFailure records why one student's computation was skipped.
type StudentFailure struct {
	StudentID    string `json:"student_id"`
	EnrollmentID string `json:"enrollment_id"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// ComputationSummary reports the outcome of a classroom computation.
type ComputationSummary struct {
	TermID      string           `json:"term_id"`
	ClassroomID string           `json:"classroom_id"`
	Total       int              `json:"total"`
	Computed    int              `json:"computed"`
	Failed      int              `json:"failed"`
	Errors      []StudentFailure `json:"errors"`
	// Deleted is the number of term results removed before a recompute.
	Deleted int64 `json:"deleted,omitempty"`
}

// ResultState is the lifecycle state of a (term, classroom) result set.
type ResultState string

const (
	ResultStateUncomputed         ResultState = "UNCOMPUTED"
	ResultStateComputed           ResultState = "COMPUTED"
	ResultStatePublished          ResultState = "PUBLISHED"
	ResultStatePartiallyPublished ResultState = "PARTIALLY_PUBLISHED"
)

// ResultStatus summarises stored results for a (term, classroom) pair.
type ResultStatus struct {
	TermID         string      `db:"-" json:"term_id"`
	ClassroomID    string      `db:"-" json:"classroom_id"`
	Computed       int         `db:"computed" json:"computed"`
	Published      int         `db:"published" json:"published"`
	LastComputedAt *time.Time  `db:"last_computed_at" json:"last_computed_at,omitempty"`
	State          ResultState `db:"-" json:"state"`
}

// DeriveState sets State from the counts.
func (s *ResultStatus) DeriveState() {
	switch {
	case s.Computed == 0:
		s.State = ResultStateUncomputed
	case s.Published == 0:
		s.State = ResultStateComputed
	case s.Published < s.Computed:
		s.State = ResultStatePartiallyPublished
	default:
		s.State = ResultStatePublished
	}
}

// Broadsheet lists every stored result of a classroom for a term, ordered by class position.
type Broadsheet struct {
	TermID      string       `json:"term_id"`
	ClassroomID string       `json:"classroom_id"`
	State       ResultState  `json:"state"`
	Results     []TermResult `json:"results"`
	// Subjects summarises each subject over the ranked results.
	Subjects    []SubjectSummary `json:"subjects"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// SubjectSummary holds class-wide figures for one subject of a broadsheet.
type SubjectSummary struct {
	SubjectID   string          `json:"subject_id"`
	SubjectName string          `json:"subject_name"`
	Highest     decimal.Decimal `json:"highest"`
	Lowest      decimal.Decimal `json:"lowest"`
	Average     decimal.Decimal `json:"average"`
	PassRate    decimal.Decimal `json:"pass_rate"`
	Count       int             `json:"count"`
}

// SubjectStanding carries the class-wide figures written onto one subject row.
type SubjectStanding struct {
	SubjectResultID string
	Position        int
	TotalStudents   int
	Highest         decimal.Decimal
	Lowest          decimal.Decimal
	Average         decimal.Decimal
}

// ClassRanking is the full set of positions for a (term, classroom). Rows of the pair that are
// not listed in Positions have their positions cleared.
type ClassRanking struct {
	TermID        string
	ClassroomID   string
	Positions     map[string]int
	TotalStudents int
	Subjects      []SubjectStanding
}
