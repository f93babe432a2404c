package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
	"github.com/ibsadiq/scms-backend-sub000/pkg/export"
)

// Broadsheet export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// BroadsheetFile is a rendered broadsheet ready to be served.
type BroadsheetFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// BroadsheetExporter turns a classroom broadsheet into a tabular file.
type BroadsheetExporter struct {
	csv csvRenderer
	pdf pdfRenderer
}

// NewBroadsheetExporter constructs an exporter. Nil renderers fall back to pkg/export.
func NewBroadsheetExporter(csv csvRenderer, pdf pdfRenderer) *BroadsheetExporter {
	if csv == nil {
		csv = export.NewCSVExporter(export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &BroadsheetExporter{csv: csv, pdf: pdf}
}

// Render produces the file for the requested format.
func (e *BroadsheetExporter) Render(sheet *models.Broadsheet, format string) (*BroadsheetFile, error) {
	dataset := BroadsheetDataset(sheet)
	base := fmt.Sprintf("broadsheet_%s_%s", sanitizeFilename(sheet.TermID), sanitizeFilename(sheet.ClassroomID))

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		payload, err := e.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &BroadsheetFile{Filename: base + ".csv", ContentType: "text/csv", Content: payload}, nil
	case FormatPDF:
		title := fmt.Sprintf("Broadsheet %s / %s", sheet.ClassroomID, sheet.TermID)
		payload, err := e.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &BroadsheetFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// BroadsheetDataset lays out one row per student with a column per subject.
func BroadsheetDataset(sheet *models.Broadsheet) export.Dataset {
	subjects := make(map[string]string)
	for _, r := range sheet.Results {
		for _, s := range r.Subjects {
			label := s.SubjectName
			if label == "" {
				label = s.SubjectID
			}
			subjects[s.SubjectID] = label
		}
	}
	subjectIDs := make([]string, 0, len(subjects))
	for id := range subjects {
		subjectIDs = append(subjectIDs, id)
	}
	sort.Slice(subjectIDs, func(i, j int) bool { return subjects[subjectIDs[i]] < subjects[subjectIDs[j]] })

	headers := []string{"Position", "Student"}
	for _, id := range subjectIDs {
		headers = append(headers, subjects[id])
	}
	headers = append(headers, "Total", "Average %", "GPA", "Grade")

	rows := make([]map[string]string, 0, len(sheet.Results))
	for _, r := range sheet.Results {
		name := r.StudentName
		if name == "" {
			name = r.StudentID
		}
		row := map[string]string{
			"Position":  positionLabel(r.PositionInClass, r.TotalStudents),
			"Student":   name,
			"Total":     r.TotalMarks.StringFixed(2),
			"Average %": r.AveragePercentage.StringFixed(2),
			"GPA":       r.GPA.StringFixed(2),
			"Grade":     r.Grade,
		}
		for _, s := range r.Subjects {
			row[subjects[s.SubjectID]] = s.TotalScore.StringFixed(2) + " " + s.LetterGrade
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func positionLabel(position *int, total int) string {
	if position == nil {
		return "-"
	}
	return strconv.Itoa(*position) + "/" + strconv.Itoa(total)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
