package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
)

func TestGradeScaleRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeScaleRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, name, is_active, created_at, updated_at FROM grade_scales WHERE is_active = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active", "created_at", "updated_at"}).
			AddRow("scale-1", "Default", true, now, now))
	mock.ExpectQuery(`FROM grade_scale_rules WHERE scale_id = \$1 ORDER BY min_grade DESC`).
		WithArgs("scale-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "scale_id", "min_grade", "max_grade", "letter_grade", "grade_point"}).
			AddRow("r-1", "scale-1", "75", "100", "A", "4.00").
			AddRow("r-2", "scale-1", "0", "74.99", "F", "0.00"))

	scale, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	require.Len(t, scale.Rules, 2)
	assert.Equal(t, "A", scale.Rules[0].LetterGrade)
	assert.Equal(t, "74.99", scale.Rules[1].MaxGrade.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeScaleRepositoryFindActiveNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(`FROM grade_scales WHERE is_active = TRUE`).WillReturnError(sql.ErrNoRows)

	_, err := NewGradeScaleRepository(db).FindActive(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeScaleRepositoryReplaceActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeScaleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE grade_scales SET is_active = FALSE`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO grade_scales`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO grade_scale_rules`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO grade_scale_rules`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	scale := &models.GradeScale{Name: "Custom", Rules: []models.GradeScaleRule{
		{MinGrade: dec("50"), MaxGrade: dec("100"), LetterGrade: "A", GradePoint: dec("4")},
		{MinGrade: dec("0"), MaxGrade: dec("49.99"), LetterGrade: "F", GradePoint: dec("0")},
	}}
	require.NoError(t, repo.ReplaceActive(context.Background(), scale))
	assert.NotEmpty(t, scale.ID)
	assert.True(t, scale.IsActive)
	assert.Equal(t, scale.ID, scale.Rules[1].ScaleID)
	require.NoError(t, mock.ExpectationsWereMet())
}
