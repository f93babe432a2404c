package dto

// ClassroomResultsRequest identifies a (term, classroom) pair for compute, recompute and publish.
type ClassroomResultsRequest struct {
	TermID      string `json:"term_id" validate:"required"`
	ClassroomID string `json:"classroom_id" validate:"required"`
}

// StudentResultRequest identifies a student's result for a term.
type StudentResultRequest struct {
	TermID    string `json:"term_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// PublicationResponse reports how many term results changed publication state.
type PublicationResponse struct {
	TermID      string `json:"term_id"`
	ClassroomID string `json:"classroom_id"`
	Published   bool   `json:"published"`
	Affected    int64  `json:"affected"`
}

// ExportFormat selects the rendering of a broadsheet export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)
