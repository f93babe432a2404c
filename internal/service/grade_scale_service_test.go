package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibsadiq/scms-backend-sub000/internal/dto"
	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
)

func TestActiveScaleFallsBackWithoutWriting(t *testing.T) {
	repo := &fakeScaleRepo{}
	svc := NewGradeScaleService(repo, nil, nil, nil)

	scale, err := svc.ActiveScale(context.Background())
	require.NoError(t, err)
	assert.Len(t, scale.Rules(), 6)
	assert.Equal(t, "A", scale.GradeFromPercentage(dec("85")).Letter)
	assert.Empty(t, repo.replaced)

	view, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, view.Fallback)
	assert.Equal(t, defaultScaleName, view.Name)
	assert.Empty(t, repo.replaced)
}

func TestActiveScaleSurfacesRepositoryErrors(t *testing.T) {
	svc := NewGradeScaleService(&fakeScaleRepo{err: errors.New("timeout")}, nil, nil, nil)
	_, err := svc.ActiveScale(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestEnsureDefaultWritesOnce(t *testing.T) {
	repo := &fakeScaleRepo{}
	svc := NewGradeScaleService(repo, nil, nil, nil)
	ctx := context.Background()

	wrote, err := svc.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)
	require.Len(t, repo.replaced, 1)
	assert.Len(t, repo.replaced[0].Rules, 6)

	wrote, err = svc.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Len(t, repo.replaced, 1)
}

func validScaleRequest() dto.GradeScaleRequest {
	return dto.GradeScaleRequest{
		Name: "Pass/Fail",
		Rules: []dto.GradeScaleRuleRequest{
			{MinGrade: dec("50"), MaxGrade: dec("100"), LetterGrade: "p", GradePoint: dec("4")},
			{MinGrade: dec("0"), MaxGrade: dec("49.99"), LetterGrade: "F", GradePoint: dec("0")},
		},
	}
}

func TestReplaceStoresValidScale(t *testing.T) {
	repo := &fakeScaleRepo{}
	svc := NewGradeScaleService(repo, nil, nil, nil)

	stored, err := svc.Replace(context.Background(), validScaleRequest())
	require.NoError(t, err)
	assert.Equal(t, "scale-1", stored.ID)
	assert.Equal(t, "P", stored.Rules[0].LetterGrade)

	scale, err := svc.ActiveScale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "P", scale.GradeFromPercentage(dec("72")).Letter)
}

func TestReplaceRejectsInvalidScales(t *testing.T) {
	cases := map[string]struct {
		mutate func(*dto.GradeScaleRequest)
		want   *appErrors.Error
	}{
		"overlap": {
			mutate: func(r *dto.GradeScaleRequest) { r.Rules[1].MaxGrade = dec("60") },
			want:   appErrors.ErrValidation,
		},
		"inverted band": {
			mutate: func(r *dto.GradeScaleRequest) { r.Rules[1].MinGrade = dec("49.99") },
			want:   appErrors.ErrInvalidRuleRange,
		},
		"above hundred": {
			mutate: func(r *dto.GradeScaleRequest) { r.Rules[0].MaxGrade = dec("101") },
			want:   appErrors.ErrValidation,
		},
		"no rules": {
			mutate: func(r *dto.GradeScaleRequest) { r.Rules = nil },
			want:   appErrors.ErrValidation,
		},
		"missing name": {
			mutate: func(r *dto.GradeScaleRequest) { r.Name = "" },
			want:   appErrors.ErrValidation,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &fakeScaleRepo{}
			svc := NewGradeScaleService(repo, nil, nil, nil)
			req := validScaleRequest()
			tc.mutate(&req)

			_, err := svc.Replace(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
			assert.Empty(t, repo.replaced)
		})
	}
}

func TestActiveScaleWithEmptyRulesUsesDefault(t *testing.T) {
	repo := &fakeScaleRepo{active: &models.GradeScale{ID: "empty", IsActive: true}}
	scale, err := NewGradeScaleService(repo, nil, nil, nil).ActiveScale(context.Background())
	require.NoError(t, err)
	assert.Len(t, scale.Rules(), 6)
}
