package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
	"github.com/ibsadiq/scms-backend-sub000/pkg/events"
)

const (
	termID    = "term-1"
	yearID    = "year-1"
	classroom = "class-1"
)

var baseTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type resultFixture struct {
	terms       *fakeTerms
	enrollments *fakeEnrollments
	allocations *fakeAllocations
	marks       *fakeMarks
	results     *fakeResults
	scales      *fakeScaleRepo
	publisher   *recordingPublisher
	metrics     *MetricsService
	svc         *ResultService
	markSeq     int
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	f := &resultFixture{
		terms:       &fakeTerms{terms: map[string]models.Term{termID: {ID: termID, Name: "Term 1", AcademicYearID: yearID}}},
		enrollments: &fakeEnrollments{},
		allocations: &fakeAllocations{},
		marks:       &fakeMarks{},
		results:     newFakeResults(),
		scales:      &fakeScaleRepo{},
		publisher:   &recordingPublisher{},
		metrics:     NewMetricsService(),
	}
	stores := ResultStores{
		Terms:       f.terms,
		Enrollments: f.enrollments,
		Allocations: f.allocations,
		Marks:       f.marks,
		Results:     f.results,
	}
	f.svc = NewResultService(stores, NewGradeScaleService(f.scales, nil, nil, nil), nil, f.publisher, f.metrics, nil)
	f.svc.now = func() time.Time { return baseTime }
	return f
}

func (f *resultFixture) enroll(classroomID string, students ...string) {
	for _, s := range students {
		f.enrollments.rows = append(f.enrollments.rows, models.StudentEnrollment{
			ID:             "enr-" + s,
			StudentID:      s,
			StudentName:    "Student " + s,
			ClassroomID:    classroomID,
			AcademicYearID: yearID,
			IsActive:       true,
		})
	}
}

func (f *resultFixture) allocate(classroomID string, subjects ...string) {
	for _, s := range subjects {
		f.allocations.rows = append(f.allocations.rows, models.SubjectAllocation{
			ID:             "alloc-" + classroomID + "-" + s,
			SubjectID:      s,
			SubjectName:    s,
			ClassroomID:    classroomID,
			AcademicYearID: yearID,
			TermID:         termID,
		})
	}
}

func (f *resultFixture) mark(student, subject string, category models.ExamCategory, points, outOf string, at time.Time) {
	f.markSeq++
	f.marks.rows = append(f.marks.rows, models.MarkEntry{
		RawMark: models.RawMark{
			ID:            fmt.Sprintf("mark-%d", f.markSeq),
			ExaminationID: fmt.Sprintf("exam-%s-%d", category, f.markSeq),
			SubjectID:     subject,
			EnrollmentID:  "enr-" + student,
			PointsScored:  dec(points),
			RecordedAt:    at,
		},
		ExaminationName: string(category) + " paper",
		Category:        category,
		OutOf:           dec(outOf),
	})
}

// score records a CA and an exam mark that add up to the given totals.
func (f *resultFixture) score(student, subject, ca, exam string) {
	f.mark(student, subject, models.ExamCategoryCA, ca, "40", baseTime)
	f.mark(student, subject, models.ExamCategoryExam, exam, "60", baseTime.Add(time.Hour))
}

func position(r *models.TermResult) int {
	if r == nil || r.PositionInClass == nil {
		return 0
	}
	return *r.PositionInClass
}

func TestComputeResultsForClassroomScenario(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math")
	f.score("s1", "math", "35", "50")

	summary, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Computed)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Errors)

	stored := f.results.byStudent("s1")
	require.NotNil(t, stored)
	require.Len(t, stored.Subjects, 1)
	subject := stored.Subjects[0]
	assert.Equal(t, "35.00", subject.CAScore.StringFixed(2))
	assert.Equal(t, "50.00", subject.ExamScore.StringFixed(2))
	assert.Equal(t, "85.00", subject.TotalScore.StringFixed(2))
	assert.Equal(t, "85.00", subject.Percentage.StringFixed(2))
	assert.Equal(t, "A", subject.LetterGrade)
	assert.Equal(t, "4.00", subject.GradePoint.StringFixed(2))
	assert.Equal(t, "Excellent", subject.Remark)

	assert.Equal(t, "85.00", stored.TotalMarks.StringFixed(2))
	assert.Equal(t, "100.00", stored.TotalPossible.StringFixed(2))
	assert.Equal(t, "85.00", stored.AveragePercentage.StringFixed(2))
	assert.Equal(t, "4.00", stored.GPA.StringFixed(2))
	assert.Equal(t, "A", stored.Grade)
	assert.Equal(t, 1, position(stored))
	assert.Equal(t, 1, stored.TotalStudents)
	assert.Equal(t, []string{events.TypeResultsComputed}, f.publisher.types())
	assert.Equal(t, uint64(1), f.metrics.Snapshot().StudentsComputed)
}

func TestComputeCapsCAAndExam(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math")
	f.mark("s1", "math", models.ExamCategoryCA, "25", "30", baseTime)
	f.mark("s1", "math", models.ExamCategoryCA, "20", "30", baseTime)
	f.mark("s1", "math", models.ExamCategoryExam, "65", "100", baseTime)

	_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)

	subject := f.results.byStudent("s1").Subjects[0]
	assert.Equal(t, "40.00", subject.CAScore.StringFixed(2))
	assert.Equal(t, "60.00", subject.ExamScore.StringFixed(2))
	assert.Equal(t, "100.00", subject.TotalScore.StringFixed(2))
	assert.Equal(t, "100.00", subject.Percentage.StringFixed(2))
}

func TestComputeUsesLatestExamMark(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math")
	f.mark("s1", "math", models.ExamCategoryExam, "55", "60", baseTime.Add(2*time.Hour))
	f.mark("s1", "math", models.ExamCategoryExam, "30", "60", baseTime)

	_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, "55.00", f.results.byStudent("s1").Subjects[0].ExamScore.StringFixed(2))
}

func TestComputeSubjectWithoutMarksScoresZero(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math", "english")
	f.score("s1", "math", "30", "45")

	_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)

	stored := f.results.byStudent("s1")
	require.Len(t, stored.Subjects, 2)
	var english models.SubjectResult
	for _, s := range stored.Subjects {
		if s.SubjectID == "english" {
			english = s
		}
	}
	assert.Equal(t, "0.00", english.TotalScore.StringFixed(2))
	assert.Equal(t, "F", english.LetterGrade)
	assert.Equal(t, "75.00", stored.TotalMarks.StringFixed(2))
	assert.Equal(t, "200.00", stored.TotalPossible.StringFixed(2))
	assert.Equal(t, "37.50", stored.AveragePercentage.StringFixed(2))
	// mean of 4.00 and 0.00
	assert.Equal(t, "2.00", stored.GPA.StringFixed(2))
	assert.Equal(t, "C", stored.Grade)
}

func TestComputeRanksWithSkipAfterTie(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2", "s3")
	f.allocate(classroom, "math")
	f.score("s1", "math", "40", "60")
	f.score("s2", "math", "40", "60")
	f.score("s3", "math", "35", "55")

	_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)

	assert.Equal(t, 1, position(f.results.byStudent("s1")))
	assert.Equal(t, 1, position(f.results.byStudent("s2")))
	assert.Equal(t, 3, position(f.results.byStudent("s3")))

	s3 := f.results.byStudent("s3")
	assert.Equal(t, 3, s3.TotalStudents)
	subject := s3.Subjects[0]
	require.NotNil(t, subject.PositionInSubject)
	assert.Equal(t, 3, *subject.PositionInSubject)
	assert.Equal(t, 3, subject.TotalStudents)
	assert.Equal(t, "100.00", subject.HighestScore.StringFixed(2))
	assert.Equal(t, "90.00", subject.LowestScore.StringFixed(2))
	assert.Equal(t, "96.67", subject.ClassAverage.StringFixed(2))
}

func TestComputeMalformedMarkFailsOnlyThatStudent(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2", "s3")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.mark("s2", "math", "", "10", "20", baseTime)
	f.score("s3", "math", "20", "40")

	summary, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Computed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "s2", summary.Errors[0].StudentID)
	assert.Equal(t, appErrors.ErrMalformedMark.Code, summary.Errors[0].Code)

	assert.Nil(t, f.results.byStudent("s2"))
	s1, s3 := f.results.byStudent("s1"), f.results.byStudent("s3")
	assert.Equal(t, 1, position(s1))
	assert.Equal(t, 2, position(s3))
	assert.Equal(t, 2, s1.TotalStudents)
	assert.Equal(t, 2, s3.TotalStudents)
}

func TestComputeRejectsOutOfRangeMarks(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.mark("s1", "math", models.ExamCategoryExam, "70", "60", baseTime)
	f.mark("s2", "math", models.ExamCategoryCA, "-1", "40", baseTime)

	summary, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Computed)
	assert.Equal(t, 2, summary.Failed)
	for _, failure := range summary.Errors {
		assert.Equal(t, appErrors.ErrMalformedMark.Code, failure.Code)
	}
}

func TestComputeSetupErrorsWriteNothing(t *testing.T) {
	t.Run("no subjects allocated", func(t *testing.T) {
		f := newResultFixture(t)
		f.enroll(classroom, "s1")
		_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrNoSubjectsAllocated))
		assert.Zero(t, f.results.writes)
	})

	t.Run("no active students", func(t *testing.T) {
		f := newResultFixture(t)
		f.allocate(classroom, "math")
		f.enrollments.rows = append(f.enrollments.rows, models.StudentEnrollment{
			ID: "enr-old", StudentID: "old", ClassroomID: classroom, AcademicYearID: yearID, IsActive: false,
		})
		_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrNoActiveStudents))
		assert.Zero(t, f.results.writes)
	})

	t.Run("unknown term", func(t *testing.T) {
		f := newResultFixture(t)
		_, err := f.svc.ComputeResultsForClassroom(context.Background(), "missing", classroom)
		assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	})

	t.Run("missing identifiers", func(t *testing.T) {
		f := newResultFixture(t)
		_, err := f.svc.ComputeResultsForClassroom(context.Background(), " ", classroom)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	})

	t.Run("enrollment lookup failure", func(t *testing.T) {
		f := newResultFixture(t)
		f.enrollments.err = errors.New("connection reset")
		_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
		assert.True(t, errors.Is(err, appErrors.ErrInternal))
	})
}

func TestComputeTwiceKeepsOneResultPerStudent(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "25", "40")
	ctx := context.Background()

	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	first := f.results.byStudent("s1")

	_, err = f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	rows, _ := f.results.ListByClassroom(ctx, termID, classroom)
	assert.Len(t, rows, 2)
	second := f.results.byStudent("s1")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalMarks.StringFixed(2), second.TotalMarks.StringFixed(2))
	assert.Equal(t, position(first), position(second))
}

func TestRecomputeResultsIsIdempotent(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2", "s3")
	f.allocate(classroom, "math", "english")
	f.score("s1", "math", "30", "50")
	f.score("s1", "english", "20", "30")
	f.score("s2", "math", "35", "55")
	f.score("s3", "english", "10", "20")
	ctx := context.Background()

	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	before := map[string]string{}
	for _, s := range []string{"s1", "s2", "s3"} {
		r := f.results.byStudent(s)
		before[s] = fmt.Sprintf("%s/%s/%s/%d", r.TotalMarks.StringFixed(2), r.GPA.StringFixed(2), r.Grade, position(r))
	}

	summary, err := f.svc.RecomputeResults(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Deleted)
	assert.Equal(t, 3, summary.Computed)

	for _, s := range []string{"s1", "s2", "s3"} {
		r := f.results.byStudent(s)
		assert.Equal(t, before[s], fmt.Sprintf("%s/%s/%s/%d", r.TotalMarks.StringFixed(2), r.GPA.StringFixed(2), r.Grade, position(r)), s)
	}
}

func TestRecomputeValidatesBeforeDeleting(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	ctx := context.Background()
	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)

	f.allocations.rows = nil
	_, err = f.svc.RecomputeResults(ctx, termID, classroom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoSubjectsAllocated))
	assert.Zero(t, f.results.deletes)
	assert.NotNil(t, f.results.byStudent("s1"))
}

func invertedScale() *models.GradeScale {
	return &models.GradeScale{ID: "broken", IsActive: true, Rules: []models.GradeScaleRule{
		{MinGrade: dec("75"), MaxGrade: dec("100"), LetterGrade: "A", GradePoint: dec("4")},
		{MinGrade: dec("60"), MaxGrade: dec("40"), LetterGrade: "C", GradePoint: dec("2")},
	}}
}

func TestRecomputeKeepsStoredResultsWhenSourcesFail(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	ctx := context.Background()
	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)

	f.marks.err = errors.New("marks db down")
	_, err = f.svc.RecomputeResults(ctx, termID, classroom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Zero(t, f.results.deletes)
	require.NotNil(t, f.results.byStudent("s1"))

	f.marks.err = nil
	f.scales.active = invertedScale()
	_, err = f.svc.RecomputeResults(ctx, termID, classroom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRuleRange))
	assert.Zero(t, f.results.deletes)

	stored := f.results.byStudent("s1")
	require.NotNil(t, stored)
	assert.Equal(t, "80.00", stored.TotalMarks.StringFixed(2))
	assert.Equal(t, 1, position(stored))
}

func TestComputeWithInvertedStoredScaleWritesNothing(t *testing.T) {
	f := newResultFixture(t)
	f.scales.active = invertedScale()
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "20", "40")
	ctx := context.Background()

	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRuleRange))

	_, err = f.svc.ComputeResultForStudent(ctx, termID, "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRuleRange))

	assert.Zero(t, f.results.writes)
	assert.Empty(t, f.publisher.types())
}

func TestComputeResultForStudentLeavesFailedStudentsUnranked(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "40", "60")
	ctx := context.Background()

	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, 1, position(f.results.byStudent("s2")))

	f.mark("s2", "math", "", "10", "20", baseTime)
	summary, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	s1 := f.results.byStudent("s1")
	assert.Equal(t, 1, position(s1))
	assert.Equal(t, 1, s1.TotalStudents)
	assert.Equal(t, 0, position(f.results.byStudent("s2")))

	result, err := f.svc.ComputeResultForStudent(ctx, termID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, position(result))
	assert.Equal(t, 1, result.TotalStudents)
	stale := f.results.byStudent("s2")
	require.NotNil(t, stale)
	assert.Equal(t, 0, position(stale))
	assert.Equal(t, 0, stale.TotalStudents)
}

func TestClassBroadsheetSubjectSummaries(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2", "s3")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "10", "20")
	f.score("s3", "math", "40", "60")
	ctx := context.Background()
	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)

	f.mark("s3", "math", "", "1", "5", baseTime)
	_, err = f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)

	sheet, err := f.svc.ClassBroadsheet(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Len(t, sheet.Results, 3)
	require.Len(t, sheet.Subjects, 1)
	math := sheet.Subjects[0]
	assert.Equal(t, "math", math.SubjectID)
	assert.Equal(t, 2, math.Count)
	assert.Equal(t, "80.00", math.Highest.StringFixed(2))
	assert.Equal(t, "30.00", math.Lowest.StringFixed(2))
	assert.Equal(t, "55.00", math.Average.StringFixed(2))
	assert.Equal(t, "50.00", math.PassRate.StringFixed(2))
}

func TestComputeResultForStudentReranksClassroom(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "20", "40")
	ctx := context.Background()

	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, 2, position(f.results.byStudent("s2")))

	f.mark("s2", "math", models.ExamCategoryExam, "60", "60", baseTime.Add(24*time.Hour))
	f.mark("s2", "math", models.ExamCategoryCA, "20", "40", baseTime)
	result, err := f.svc.ComputeResultForStudent(ctx, termID, "s2")
	require.NoError(t, err)
	assert.Equal(t, "100.00", result.TotalMarks.StringFixed(2))
	assert.Equal(t, 1, position(result))
	assert.Equal(t, 2, result.TotalStudents)
	assert.Equal(t, 2, position(f.results.byStudent("s1")))
}

func TestComputeResultForStudentIgnoresInactiveEnrollments(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "40", "60")
	ctx := context.Background()
	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)

	f.enrollments.rows[1].IsActive = false
	result, err := f.svc.ComputeResultForStudent(ctx, termID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, position(result))
	assert.Equal(t, 1, result.TotalStudents)
	assert.Equal(t, 0, position(f.results.byStudent("s2")))
}

func TestComputeResultForStudentErrors(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1")
	ctx := context.Background()

	_, err := f.svc.ComputeResultForStudent(ctx, termID, "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrStudentNotEnrolled))

	_, err = f.svc.ComputeResultForStudent(ctx, termID, "s1")
	assert.True(t, errors.Is(err, appErrors.ErrNoSubjectsAllocated))

	f.allocate(classroom, "math")
	f.mark("s1", "math", "QUIZ", "5", "10", baseTime)
	_, err = f.svc.ComputeResultForStudent(ctx, termID, "s1")
	assert.True(t, errors.Is(err, appErrors.ErrMalformedMark))
	assert.Zero(t, f.results.writes)
}

func TestPublishTouchesOnlyExactPair(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.enroll("class-2", "s3")
	f.allocate(classroom, "math")
	f.allocate("class-2", "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "20", "40")
	f.score("s3", "math", "25", "45")
	ctx := context.Background()
	_, err := f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	_, err = f.svc.ComputeResultsForClassroom(ctx, termID, "class-2")
	require.NoError(t, err)

	affected, err := f.svc.PublishResults(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	s1 := f.results.byStudent("s1")
	assert.True(t, s1.IsPublished)
	require.NotNil(t, s1.PublishedDate)
	assert.True(t, s1.PublishedDate.Equal(baseTime))
	assert.False(t, f.results.byStudent("s3").IsPublished)

	status, err := f.svc.Status(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, models.ResultStatePublished, status.State)
	other, err := f.svc.Status(ctx, termID, "class-2")
	require.NoError(t, err)
	assert.Equal(t, models.ResultStateComputed, other.State)

	affected, err = f.svc.UnpublishResults(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	s1 = f.results.byStudent("s1")
	assert.False(t, s1.IsPublished)
	assert.Nil(t, s1.PublishedDate)
	assert.Contains(t, f.publisher.types(), events.TypeResultsPublished)
	assert.Contains(t, f.publisher.types(), events.TypeResultsUnpublished)
}

func TestPublishEmptySetSucceeds(t *testing.T) {
	f := newResultFixture(t)
	affected, err := f.svc.PublishResults(context.Background(), termID, classroom)
	require.NoError(t, err)
	assert.Zero(t, affected)

	_, err = f.svc.PublishResults(context.Background(), "", classroom)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestClassBroadsheetAndStudentReport(t *testing.T) {
	f := newResultFixture(t)
	f.enroll(classroom, "s1", "s2")
	f.allocate(classroom, "math")
	f.score("s1", "math", "30", "50")
	f.score("s2", "math", "20", "40")
	ctx := context.Background()

	sheet, err := f.svc.ClassBroadsheet(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, models.ResultStateUncomputed, sheet.State)
	assert.Empty(t, sheet.Results)

	_, err = f.svc.ComputeResultsForClassroom(ctx, termID, classroom)
	require.NoError(t, err)
	sheet, err = f.svc.ClassBroadsheet(ctx, termID, classroom)
	require.NoError(t, err)
	assert.Equal(t, models.ResultStateComputed, sheet.State)
	assert.Len(t, sheet.Results, 2)

	report, err := f.svc.StudentReport(ctx, termID, "s1")
	require.NoError(t, err)
	assert.Equal(t, "80.00", report.TotalMarks.StringFixed(2))

	_, err = f.svc.StudentReport(ctx, termID, "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	file, err := f.svc.ExportBroadsheet(ctx, termID, classroom, "csv")
	require.NoError(t, err)
	assert.Equal(t, "broadsheet_term-1_class-1.csv", file.Filename)
	assert.Contains(t, string(file.Content), "Student s1")

	_, err = f.svc.ExportBroadsheet(ctx, termID, classroom, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestComputeUsesStoredScale(t *testing.T) {
	f := newResultFixture(t)
	f.scales.active = &models.GradeScale{ID: "strict", IsActive: true, Rules: []models.GradeScaleRule{
		{MinGrade: dec("90"), MaxGrade: dec("100"), LetterGrade: "A", GradePoint: dec("4")},
		{MinGrade: dec("0"), MaxGrade: dec("89.99"), LetterGrade: "F", GradePoint: dec("0")},
	}}
	f.enroll(classroom, "s1")
	f.allocate(classroom, "math")
	f.score("s1", "math", "35", "50")

	_, err := f.svc.ComputeResultsForClassroom(context.Background(), termID, classroom)
	require.NoError(t, err)
	subject := f.results.byStudent("s1").Subjects[0]
	assert.Equal(t, "F", subject.LetterGrade)
	assert.Equal(t, "0.00", subject.GradePoint.StringFixed(2))
}
