package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ibsadiq/scms-backend-sub000/internal/dto"
	"github.com/ibsadiq/scms-backend-sub000/internal/grading"
	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
)

const defaultScaleName = "Default A-F"

type gradeScaleRepository interface {
	FindActive(ctx context.Context) (*models.GradeScale, error)
	ReplaceActive(ctx context.Context, scale *models.GradeScale) error
}

// GradeScaleService resolves and administers the grading scale.
type GradeScaleService struct {
	repo      gradeScaleRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeScaleService constructs the service.
func NewGradeScaleService(repo gradeScaleRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GradeScaleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeScaleService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// ActiveScale returns the configured scale. When none is stored the built-in default is returned
// without writing anything.
func (s *GradeScaleService) ActiveScale(ctx context.Context) (*grading.Scale, error) {
	stored, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("no active grade scale configured, using default")
			return grading.DefaultScale(), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	if len(stored.Rules) == 0 {
		s.logger.Warn("active grade scale has no rules, using default", zap.String("scale_id", stored.ID))
		return grading.DefaultScale(), nil
	}
	scale, err := grading.NewScale(toRules(stored.Rules))
	if err != nil {
		return nil, err
	}
	if overlaps := scale.Overlaps(); len(overlaps) > 0 {
		s.logger.Warn("active grade scale has overlapping bands", zap.String("scale_id", stored.ID), zap.Any("overlaps", overlaps))
	}
	return scale, nil
}

// Get returns the active scale for display, flagging the built-in default when nothing is stored.
func (s *GradeScaleService) Get(ctx context.Context) (*models.GradeScale, error) {
	stored, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			scale := defaultScaleModel()
			scale.Fallback = true
			return scale, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	return stored, nil
}

// EnsureDefault persists the built-in scale when none is active. It reports whether it wrote one.
func (s *GradeScaleService) EnsureDefault(ctx context.Context) (bool, error) {
	_, err := s.repo.FindActive(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	scale := defaultScaleModel()
	if err := s.repo.ReplaceActive(ctx, scale); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store default grade scale")
	}
	s.logger.Info("default grade scale stored", zap.String("scale_id", scale.ID))
	return true, nil
}

// Replace validates and activates a new scale. Bands must lie in [0, 100], have min below max and
// must not overlap.
func (s *GradeScaleService) Replace(ctx context.Context, req dto.GradeScaleRequest) (*models.GradeScale, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade scale payload")
	}

	hundred := decimal.NewFromInt(100)
	rules := make([]models.GradeScaleRule, 0, len(req.Rules))
	for _, r := range req.Rules {
		if r.MinGrade.IsNegative() || r.MaxGrade.GreaterThan(hundred) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("band %s must lie within 0 and 100", r.LetterGrade))
		}
		if r.GradePoint.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("band %s has a negative grade point", r.LetterGrade))
		}
		rules = append(rules, models.GradeScaleRule{
			MinGrade:    r.MinGrade,
			MaxGrade:    r.MaxGrade,
			LetterGrade: strings.ToUpper(strings.TrimSpace(r.LetterGrade)),
			GradePoint:  r.GradePoint,
		})
	}

	scale, err := grading.NewScale(toRules(rules))
	if err != nil {
		return nil, err
	}
	if overlaps := scale.Overlaps(); len(overlaps) > 0 {
		pairs := make([]string, len(overlaps))
		for i, p := range overlaps {
			pairs[i] = p[0] + "/" + p[1]
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "overlapping bands: "+strings.Join(pairs, ", "))
	}

	stored := &models.GradeScale{Name: strings.TrimSpace(req.Name), Rules: rules}
	if err := s.repo.ReplaceActive(ctx, stored); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade scale")
	}
	_ = s.cache.Invalidate(ctx, AllResultsPattern())
	s.logger.Info("grade scale replaced", zap.String("scale_id", stored.ID), zap.Int("rules", len(rules)))
	return stored, nil
}

func toRules(rows []models.GradeScaleRule) []grading.Rule {
	rules := make([]grading.Rule, len(rows))
	for i, r := range rows {
		rules[i] = grading.Rule{MinGrade: r.MinGrade, MaxGrade: r.MaxGrade, LetterGrade: r.LetterGrade, GradePoint: r.GradePoint}
	}
	return rules
}

func defaultScaleModel() *models.GradeScale {
	defaults := grading.DefaultRules()
	rules := make([]models.GradeScaleRule, len(defaults))
	for i, r := range defaults {
		rules[i] = models.GradeScaleRule{MinGrade: r.MinGrade, MaxGrade: r.MaxGrade, LetterGrade: r.LetterGrade, GradePoint: r.GradePoint}
	}
	return &models.GradeScale{Name: defaultScaleName, IsActive: true, Rules: rules}
}
