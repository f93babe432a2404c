package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ibsadiq/scms-backend-sub000/internal/dto"
	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	"github.com/ibsadiq/scms-backend-sub000/internal/service"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
	"github.com/ibsadiq/scms-backend-sub000/pkg/response"
)

type resultComputer interface {
	ComputeResultsForClassroom(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error)
	ComputeResultForStudent(ctx context.Context, termID, studentID string) (*models.TermResult, error)
	RecomputeResults(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error)
}

type resultReader interface {
	PublishResults(ctx context.Context, termID, classroomID string) (int64, error)
	UnpublishResults(ctx context.Context, termID, classroomID string) (int64, error)
	Status(ctx context.Context, termID, classroomID string) (*models.ResultStatus, error)
	ClassBroadsheet(ctx context.Context, termID, classroomID string) (*models.Broadsheet, error)
	StudentReport(ctx context.Context, termID, studentID string) (*models.TermResult, error)
	ExportBroadsheet(ctx context.Context, termID, classroomID, format string) (*service.BroadsheetFile, error)
}

// ResultHandler exposes term result computation, publication and reporting.
type ResultHandler struct {
	computer resultComputer
	results  resultReader
	logger   *zap.Logger
}

// NewResultHandler constructs the handler. Computations go through computer, everything else
// through results.
func NewResultHandler(computer resultComputer, results resultReader, logger *zap.Logger) *ResultHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultHandler{computer: computer, results: results, logger: logger}
}

func bindClassroomRequest(c *gin.Context) (dto.ClassroomResultsRequest, bool) {
	var req dto.ClassroomResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid results payload"))
		return req, false
	}
	return req, true
}

// Compute godoc
// @Summary Compute term results for a classroom
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.ClassroomResultsRequest true "Term and classroom"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /results/compute [post]
func (h *ResultHandler) Compute(c *gin.Context) {
	req, ok := bindClassroomRequest(c)
	if !ok {
		return
	}
	summary, err := h.computer.ComputeResultsForClassroom(c.Request.Context(), req.TermID, req.ClassroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("compute requested", zap.String("actor", actorID(c)),
		zap.String("term_id", req.TermID), zap.String("classroom_id", req.ClassroomID))
	response.JSON(c, http.StatusOK, summary)
}

// ComputeStudent godoc
// @Summary Compute one student's term result
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.StudentResultRequest true "Term and student"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/compute/student [post]
func (h *ResultHandler) ComputeStudent(c *gin.Context) {
	var req dto.StudentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid results payload"))
		return
	}
	result, err := h.computer.ComputeResultForStudent(c.Request.Context(), req.TermID, req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Recompute godoc
// @Summary Delete and recompute term results for a classroom
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.ClassroomResultsRequest true "Term and classroom"
// @Success 200 {object} response.Envelope
// @Router /results/recompute [post]
func (h *ResultHandler) Recompute(c *gin.Context) {
	req, ok := bindClassroomRequest(c)
	if !ok {
		return
	}
	summary, err := h.computer.RecomputeResults(c.Request.Context(), req.TermID, req.ClassroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("recompute requested", zap.String("actor", actorID(c)),
		zap.String("term_id", req.TermID), zap.String("classroom_id", req.ClassroomID))
	response.JSON(c, http.StatusOK, summary)
}

// Publish godoc
// @Summary Publish term results of a classroom
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.ClassroomResultsRequest true "Term and classroom"
// @Success 200 {object} response.Envelope
// @Router /results/publish [post]
func (h *ResultHandler) Publish(c *gin.Context) {
	h.setPublished(c, true)
}

// Unpublish godoc
// @Summary Unpublish term results of a classroom
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.ClassroomResultsRequest true "Term and classroom"
// @Success 200 {object} response.Envelope
// @Router /results/unpublish [post]
func (h *ResultHandler) Unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *ResultHandler) setPublished(c *gin.Context, published bool) {
	req, ok := bindClassroomRequest(c)
	if !ok {
		return
	}
	var (
		affected int64
		err      error
	)
	if published {
		affected, err = h.results.PublishResults(c.Request.Context(), req.TermID, req.ClassroomID)
	} else {
		affected, err = h.results.UnpublishResults(c.Request.Context(), req.TermID, req.ClassroomID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("publication changed", zap.String("actor", actorID(c)), zap.Bool("published", published),
		zap.String("term_id", req.TermID), zap.String("classroom_id", req.ClassroomID), zap.Int64("affected", affected))
	response.JSON(c, http.StatusOK, dto.PublicationResponse{
		TermID:      req.TermID,
		ClassroomID: req.ClassroomID,
		Published:   published,
		Affected:    affected,
	})
}

// Status godoc
// @Summary Result status of a classroom
// @Tags Results
// @Produce json
// @Param term_id query string true "Term ID"
// @Param classroom_id query string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /results/status [get]
func (h *ResultHandler) Status(c *gin.Context) {
	status, err := h.results.Status(c.Request.Context(), c.Query("term_id"), c.Query("classroom_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Broadsheet godoc
// @Summary Classroom broadsheet
// @Tags Results
// @Produce json
// @Param classroomId path string true "Classroom ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /results/classrooms/{classroomId}/terms/{termId} [get]
func (h *ResultHandler) Broadsheet(c *gin.Context) {
	sheet, err := h.results.ClassBroadsheet(c.Request.Context(), c.Param("termId"), c.Param("classroomId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, map[string]interface{}{"state": sheet.State, "count": len(sheet.Results)})
}

// ExportBroadsheet godoc
// @Summary Export classroom broadsheet
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Param classroomId path string true "Classroom ID"
// @Param termId path string true "Term ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /results/classrooms/{classroomId}/terms/{termId}/export [get]
func (h *ResultHandler) ExportBroadsheet(c *gin.Context) {
	format := dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV)))
	file, err := h.results.ExportBroadsheet(c.Request.Context(), c.Param("termId"), c.Param("classroomId"), string(format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

// StudentReport godoc
// @Summary Student term report
// @Tags Results
// @Produce json
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/students/{studentId}/terms/{termId} [get]
func (h *ResultHandler) StudentReport(c *gin.Context) {
	report, err := h.results.StudentReport(c.Request.Context(), c.Param("termId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}
