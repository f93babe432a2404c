package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibsadiq/scms-backend-sub000/internal/dto"
	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
	"github.com/ibsadiq/scms-backend-sub000/pkg/response"
)

type gradeScaleService interface {
	Get(ctx context.Context) (*models.GradeScale, error)
	Replace(ctx context.Context, req dto.GradeScaleRequest) (*models.GradeScale, error)
}

// GradeScaleHandler exposes the active grading scale.
type GradeScaleHandler struct {
	service gradeScaleService
}

// NewGradeScaleHandler constructs the handler.
func NewGradeScaleHandler(service gradeScaleService) *GradeScaleHandler {
	return &GradeScaleHandler{service: service}
}

// Get godoc
// @Summary Active grade scale
// @Tags Grade Scale
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grade-scale [get]
func (h *GradeScaleHandler) Get(c *gin.Context) {
	scale, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale)
}

// Replace godoc
// @Summary Replace the active grade scale
// @Tags Grade Scale
// @Accept json
// @Produce json
// @Param payload body dto.GradeScaleRequest true "Scale bands"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grade-scale [put]
func (h *GradeScaleHandler) Replace(c *gin.Context) {
	var req dto.GradeScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade scale payload"))
		return
	}
	scale, err := h.service.Replace(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale)
}
