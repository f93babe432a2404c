package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ibsadiq/scms-backend-sub000/internal/grading"
	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
	"github.com/ibsadiq/scms-backend-sub000/pkg/events"
	"github.com/ibsadiq/scms-backend-sub000/pkg/middleware/requestid"
)

var (
	caMax         = decimal.NewFromInt(40)
	examMax       = decimal.NewFromInt(60)
	subjectMax    = decimal.NewFromInt(100)
	zeroTwoPlaces = grading.Round2(decimal.Zero)
)

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type studentEnrollmentReader interface {
	ListActiveByClassroom(ctx context.Context, classroomID, academicYearID string) ([]models.StudentEnrollment, error)
	FindActiveByStudent(ctx context.Context, studentID, academicYearID string) (*models.StudentEnrollment, error)
}

type allocationReader interface {
	ListByClassroomTerm(ctx context.Context, classroomID, academicYearID, termID string) ([]models.SubjectAllocation, error)
}

type markReader interface {
	ListByEnrollments(ctx context.Context, enrollmentIDs []string, termID string) ([]models.MarkEntry, error)
}

type resultRepository interface {
	ReplaceStudentResult(ctx context.Context, result *models.TermResult) error
	ApplyRankings(ctx context.Context, ranking models.ClassRanking) error
	ListByClassroom(ctx context.Context, termID, classroomID string) ([]models.TermResult, error)
	FindByStudent(ctx context.Context, studentID, termID string) (*models.TermResult, error)
	DeleteByClassroom(ctx context.Context, termID, classroomID string) (int64, error)
	SetPublished(ctx context.Context, termID, classroomID string, published bool, at *time.Time) (int64, error)
	Status(ctx context.Context, termID, classroomID string) (*models.ResultStatus, error)
}

type scaleResolver interface {
	ActiveScale(ctx context.Context) (*grading.Scale, error)
}

// ResultStores groups the persistence dependencies of ResultService.
type ResultStores struct {
	Terms       termReader
	Enrollments studentEnrollmentReader
	Allocations allocationReader
	Marks       markReader
	Results     resultRepository
}

// ResultService computes, ranks and publishes term results for a classroom.
//
// Computation is synchronous and takes no row locks. Two calls for the same term and classroom
// running at once interleave their writes and can leave inconsistent positions; callers that may
// overlap must go through ComputeDispatcher.
type ResultService struct {
	stores    ResultStores
	scales    scaleResolver
	cache     *CacheService
	publisher events.Publisher
	metrics   *MetricsService
	exporter  *BroadsheetExporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewResultService constructs a ResultService.
func NewResultService(stores ResultStores, scales scaleResolver, cache *CacheService, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ResultService{
		stores:    stores,
		scales:    scales,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		exporter:  NewBroadsheetExporter(nil, nil),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// classroomInputs is everything a classroom computation reads. It is loaded in full before the
// first write so that a failing source never leaves results half deleted or half written.
type classroomInputs struct {
	term        *models.Term
	classroomID string
	enrollments []models.StudentEnrollment
	allocations []models.SubjectAllocation
	scale       *grading.Scale
	marks       map[string][]models.MarkEntry
}

// ComputeResultsForClassroom rebuilds the result of every active student of the classroom and then
// re-ranks the classroom. A student whose marks cannot be computed is reported in the summary and
// left out of the ranking; the rest of the batch still completes.
func (s *ResultService) ComputeResultsForClassroom(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error) {
	start := time.Now()
	inputs, err := s.prepareClassroom(ctx, termID, classroomID)
	if err != nil {
		s.metrics.ObserveComputation("classroom", 0, 0, err, time.Since(start))
		return nil, err
	}
	summary, err := s.computeClassroom(ctx, inputs)
	s.observe("classroom", summary, err, start)
	return summary, err
}

// RecomputeResults deletes every stored result of the classroom for the term and computes it again.
// Setup errors are reported before anything is deleted.
func (s *ResultService) RecomputeResults(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error) {
	start := time.Now()
	inputs, err := s.prepareClassroom(ctx, termID, classroomID)
	if err != nil {
		s.metrics.ObserveComputation("recompute", 0, 0, err, time.Since(start))
		return nil, err
	}
	deleted, err := s.stores.Results.DeleteByClassroom(ctx, termID, classroomID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete results")
		s.metrics.ObserveComputation("recompute", 0, 0, err, time.Since(start))
		return nil, err
	}
	s.logger.Info("term results deleted for recompute",
		zap.String("term_id", termID), zap.String("classroom_id", classroomID), zap.Int64("deleted", deleted))

	summary, err := s.computeClassroom(ctx, inputs)
	if summary != nil {
		summary.Deleted = deleted
	}
	s.observe("recompute", summary, err, start)
	return summary, err
}

// ComputeResultForStudent rebuilds one student's result and re-ranks the student's classroom. Only
// stored results of active students whose current marks compute cleanly take part in the ranking, the
// same set a full classroom run would rank.
func (s *ResultService) ComputeResultForStudent(ctx context.Context, termID, studentID string) (*models.TermResult, error) {
	start := time.Now()
	result, err := s.computeStudent(ctx, termID, studentID)
	computed, failed := 1, 0
	if err != nil {
		computed = 0
		if appErrors.FromError(err).Code == appErrors.ErrMalformedMark.Code {
			failed = 1
		}
	}
	s.metrics.ObserveComputation("student", computed, failed, err, time.Since(start))
	return result, err
}

func (s *ResultService) computeStudent(ctx context.Context, termID, studentID string) (*models.TermResult, error) {
	if strings.TrimSpace(termID) == "" || strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id and student_id are required")
	}
	term, err := s.loadTerm(ctx, termID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.stores.Enrollments.FindActiveByStudent(ctx, studentID, term.AcademicYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotEnrolled,
				fmt.Sprintf("student %s has no active enrollment for academic year %s", studentID, term.AcademicYearID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	inputs, err := s.prepareClassroom(ctx, termID, enrollment.ClassroomID)
	if err != nil {
		return nil, err
	}
	if !containsEnrollment(inputs.enrollments, enrollment.ID) {
		// The classroom listing can lag the student's own enrollment row.
		inputs.enrollments = append(inputs.enrollments, *enrollment)
		marks, err := s.loadMarks(ctx, []models.StudentEnrollment{*enrollment}, termID)
		if err != nil {
			return nil, err
		}
		inputs.marks[enrollment.ID] = marks[enrollment.ID]
	}

	result, err := s.buildResult(inputs, *enrollment, inputs.marks[enrollment.ID], inputs.scale)
	if err != nil {
		return nil, err
	}
	rankable := map[string]struct{}{enrollment.StudentID: {}}
	for _, e := range inputs.enrollments {
		if e.ID == enrollment.ID {
			continue
		}
		if marksComputable(inputs.allocations, inputs.marks[e.ID]) {
			rankable[e.StudentID] = struct{}{}
		}
	}

	if err := s.stores.Results.ReplaceStudentResult(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store result")
	}

	ranked, err := s.rerankStored(ctx, term, enrollment.ClassroomID, rankable)
	if err != nil {
		return nil, err
	}
	for i := range ranked {
		if ranked[i].ID == result.ID {
			result = &ranked[i]
			break
		}
	}

	s.afterChange(ctx, events.ResultEvent{
		Type:        events.TypeResultsComputed,
		TermID:      termID,
		ClassroomID: enrollment.ClassroomID,
		StudentID:   studentID,
		Affected:    1,
	})
	return result, nil
}

// PublishResults marks every result of exactly this term and classroom as published. It does not
// check that results were computed; an empty set publishes nothing and succeeds.
func (s *ResultService) PublishResults(ctx context.Context, termID, classroomID string) (int64, error) {
	now := s.now()
	return s.setPublished(ctx, termID, classroomID, true, &now)
}

// UnpublishResults reverts PublishResults for the term and classroom.
func (s *ResultService) UnpublishResults(ctx context.Context, termID, classroomID string) (int64, error) {
	return s.setPublished(ctx, termID, classroomID, false, nil)
}

func (s *ResultService) setPublished(ctx context.Context, termID, classroomID string, published bool, at *time.Time) (int64, error) {
	if strings.TrimSpace(termID) == "" || strings.TrimSpace(classroomID) == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "term_id and classroom_id are required")
	}
	affected, err := s.stores.Results.SetPublished(ctx, termID, classroomID, published, at)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication")
	}

	eventType := events.TypeResultsPublished
	if !published {
		eventType = events.TypeResultsUnpublished
	}
	s.metrics.ObservePublication(eventType, affected)
	s.logger.Info("term results publication changed",
		zap.String("term_id", termID), zap.String("classroom_id", classroomID),
		zap.Bool("published", published), zap.Int64("affected", affected))
	s.afterChange(ctx, events.ResultEvent{Type: eventType, TermID: termID, ClassroomID: classroomID, Affected: int(affected)})
	return affected, nil
}

// Status reports how many results of the term and classroom are stored and published.
func (s *ResultService) Status(ctx context.Context, termID, classroomID string) (*models.ResultStatus, error) {
	if strings.TrimSpace(termID) == "" || strings.TrimSpace(classroomID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id and classroom_id are required")
	}
	status, err := s.stores.Results.Status(ctx, termID, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result status")
	}
	return status, nil
}

// ClassBroadsheet lists the stored results of a classroom ordered by position.
func (s *ResultService) ClassBroadsheet(ctx context.Context, termID, classroomID string) (*models.Broadsheet, error) {
	key := BroadsheetKey(termID, classroomID)
	var cached models.Broadsheet
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	results, err := s.stores.Results.ListByClassroom(ctx, termID, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}
	status := models.ResultStatus{Computed: len(results)}
	for _, r := range results {
		if r.IsPublished {
			status.Published++
		}
	}
	status.DeriveState()

	sheet := &models.Broadsheet{
		TermID:      termID,
		ClassroomID: classroomID,
		State:       status.State,
		Results:     results,
		Subjects:    summarizeSubjects(results),
		GeneratedAt: s.now(),
	}
	_ = s.cache.Set(ctx, key, sheet, 0)
	return sheet, nil
}

// StudentReport returns one student's stored result for the term.
func (s *ResultService) StudentReport(ctx context.Context, termID, studentID string) (*models.TermResult, error) {
	key := StudentReportKey(termID, studentID)
	var cached models.TermResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	result, err := s.stores.Results.FindByStudent(ctx, studentID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	_ = s.cache.Set(ctx, key, result, 0)
	return result, nil
}

// ExportBroadsheet renders the classroom broadsheet as CSV or PDF.
func (s *ResultService) ExportBroadsheet(ctx context.Context, termID, classroomID, format string) (*BroadsheetFile, error) {
	sheet, err := s.ClassBroadsheet(ctx, termID, classroomID)
	if err != nil {
		return nil, err
	}
	return s.exporter.Render(sheet, format)
}

func (s *ResultService) prepareClassroom(ctx context.Context, termID, classroomID string) (*classroomInputs, error) {
	if strings.TrimSpace(termID) == "" || strings.TrimSpace(classroomID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id and classroom_id are required")
	}
	term, err := s.loadTerm(ctx, termID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.stores.Enrollments.ListActiveByClassroom(ctx, classroomID, term.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoActiveStudents, fmt.Sprintf("classroom %s has no active students", classroomID))
	}
	allocations, err := s.loadAllocations(ctx, term, classroomID)
	if err != nil {
		return nil, err
	}
	scale, err := s.scales.ActiveScale(ctx)
	if err != nil {
		return nil, err
	}
	marks, err := s.loadMarks(ctx, enrollments, termID)
	if err != nil {
		return nil, err
	}
	return &classroomInputs{
		term:        term,
		classroomID: classroomID,
		enrollments: enrollments,
		allocations: allocations,
		scale:       scale,
		marks:       marks,
	}, nil
}

func containsEnrollment(enrollments []models.StudentEnrollment, id string) bool {
	for _, e := range enrollments {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (s *ResultService) computeClassroom(ctx context.Context, inputs *classroomInputs) (*models.ComputationSummary, error) {
	termID := inputs.term.ID
	summary := &models.ComputationSummary{
		TermID:      termID,
		ClassroomID: inputs.classroomID,
		Total:       len(inputs.enrollments),
		Errors:      []models.StudentFailure{},
	}
	computed := make([]*models.TermResult, 0, len(inputs.enrollments))
	for _, enrollment := range inputs.enrollments {
		result, err := s.buildResult(inputs, enrollment, inputs.marks[enrollment.ID], inputs.scale)
		if err == nil {
			if storeErr := s.stores.Results.ReplaceStudentResult(ctx, result); storeErr != nil {
				err = appErrors.Wrap(storeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store result")
			}
		}
		if err != nil {
			appErr := appErrors.FromError(err)
			summary.Failed++
			summary.Errors = append(summary.Errors, models.StudentFailure{
				StudentID:    enrollment.StudentID,
				EnrollmentID: enrollment.ID,
				Code:         appErr.Code,
				Message:      appErr.Error(),
			})
			s.logger.Warn("student result not computed",
				zap.String("term_id", termID), zap.String("classroom_id", inputs.classroomID),
				zap.String("student_id", enrollment.StudentID), zap.Error(err))
			continue
		}
		summary.Computed++
		computed = append(computed, result)
	}

	ranking := buildRanking(termID, inputs.classroomID, computed)
	if err := s.stores.Results.ApplyRankings(ctx, ranking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank classroom")
	}

	s.logger.Info("classroom results computed",
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("term_id", termID), zap.String("classroom_id", inputs.classroomID),
		zap.Int("total", summary.Total), zap.Int("computed", summary.Computed), zap.Int("failed", summary.Failed))
	s.afterChange(ctx, events.ResultEvent{
		Type:        events.TypeResultsComputed,
		TermID:      termID,
		ClassroomID: inputs.classroomID,
		Affected:    summary.Computed,
		Detail:      map[string]int{"failed": summary.Failed},
	})
	return summary, nil
}

func (s *ResultService) rerankStored(ctx context.Context, term *models.Term, classroomID string, rankable map[string]struct{}) ([]models.TermResult, error) {
	stored, err := s.stores.Results.ListByClassroom(ctx, term.ID, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}

	ranked := make([]models.TermResult, 0, len(stored))
	for _, r := range stored {
		if _, ok := rankable[r.StudentID]; ok && r.AcademicYearID == term.AcademicYearID {
			ranked = append(ranked, r)
		}
	}
	pointers := make([]*models.TermResult, len(ranked))
	for i := range ranked {
		pointers[i] = &ranked[i]
	}
	if err := s.stores.Results.ApplyRankings(ctx, buildRanking(term.ID, classroomID, pointers)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank classroom")
	}
	return ranked, nil
}

func (s *ResultService) buildResult(inputs *classroomInputs, enrollment models.StudentEnrollment, marks []models.MarkEntry, scale *grading.Scale) (*models.TermResult, error) {
	bySubject := make(map[string][]models.MarkEntry)
	for _, m := range marks {
		bySubject[m.SubjectID] = append(bySubject[m.SubjectID], m)
	}

	result := &models.TermResult{
		StudentID:      enrollment.StudentID,
		StudentName:    enrollment.StudentName,
		TermID:         inputs.term.ID,
		AcademicYearID: inputs.term.AcademicYearID,
		ClassroomID:    inputs.classroomID,
		ComputedAt:     s.now(),
		Subjects:       make([]models.SubjectResult, 0, len(inputs.allocations)),
	}
	total, possible := decimal.Zero, decimal.Zero
	points := make([]decimal.Decimal, 0, len(inputs.allocations))
	for _, allocation := range inputs.allocations {
		subject, err := s.buildSubject(allocation, bySubject[allocation.SubjectID], scale)
		if err != nil {
			return nil, err
		}
		result.Subjects = append(result.Subjects, subject)
		total = total.Add(subject.TotalScore)
		possible = possible.Add(subject.TotalPossible)
		points = append(points, subject.GradePoint)
	}

	result.TotalMarks = grading.Round2(total)
	result.TotalPossible = grading.Round2(possible)
	result.AveragePercentage = grading.Percentage(total, possible)
	result.GPA = grading.GPA(points)
	result.Grade = grading.OverallLetterFromGPA(result.GPA)
	return result, nil
}

func (s *ResultService) buildSubject(allocation models.SubjectAllocation, marks []models.MarkEntry, scale *grading.Scale) (models.SubjectResult, error) {
	ca := decimal.Zero
	var exam *models.MarkEntry
	for i := range marks {
		mark := &marks[i]
		if err := validateMark(mark); err != nil {
			return models.SubjectResult{}, err
		}
		switch mark.Category {
		case models.ExamCategoryCA:
			ca = ca.Add(mark.PointsScored)
		case models.ExamCategoryExam:
			if exam == nil || !mark.RecordedAt.Before(exam.RecordedAt) {
				exam = mark
			}
		}
	}

	examPoints := decimal.Zero
	if exam != nil {
		examPoints = exam.PointsScored
	}
	caScore := grading.CapScore(ca, caMax)
	examScore := grading.CapScore(examPoints, examMax)
	total := caScore.Add(examScore)
	percentage := grading.ClampPercentage(grading.Percentage(total, subjectMax))

	grade := scale.GradeFromPercentage(percentage)
	if !grade.Matched {
		s.metrics.IncUnmatchedGrade()
		s.logger.Warn("percentage did not match exactly one grade band",
			zap.String("subject_id", allocation.SubjectID), zap.String("percentage", percentage.StringFixed(2)),
			zap.String("letter", grade.Letter))
	}

	return models.SubjectResult{
		SubjectID:     allocation.SubjectID,
		SubjectName:   allocation.SubjectName,
		CAScore:       grading.Round2(caScore),
		CAMax:         caMax,
		ExamScore:     grading.Round2(examScore),
		ExamMax:       examMax,
		TotalScore:    grading.Round2(total),
		TotalPossible: subjectMax,
		Percentage:    percentage,
		LetterGrade:   grade.Letter,
		GradePoint:    grade.Point,
		Remark:        grade.Remark,
		HighestScore:  zeroTwoPlaces,
		LowestScore:   zeroTwoPlaces,
		ClassAverage:  zeroTwoPlaces,
	}, nil
}

// marksComputable reports whether buildResult would accept the marks: every mark of an allocated
// subject must be well formed. Marks of other subjects are ignored there as well.
func marksComputable(allocations []models.SubjectAllocation, marks []models.MarkEntry) bool {
	allocated := make(map[string]struct{}, len(allocations))
	for _, a := range allocations {
		allocated[a.SubjectID] = struct{}{}
	}
	for i := range marks {
		if _, ok := allocated[marks[i].SubjectID]; !ok {
			continue
		}
		if validateMark(&marks[i]) != nil {
			return false
		}
	}
	return true
}

func validateMark(mark *models.MarkEntry) error {
	if !mark.Category.Valid() {
		return appErrors.Clone(appErrors.ErrMalformedMark,
			fmt.Sprintf("examination %q has no CA or EXAM category", mark.ExaminationName))
	}
	if mark.PointsScored.IsNegative() {
		return appErrors.Clone(appErrors.ErrMalformedMark,
			fmt.Sprintf("mark %s in %q is negative", mark.ID, mark.ExaminationName))
	}
	if mark.PointsScored.GreaterThan(mark.OutOf) {
		return appErrors.Clone(appErrors.ErrMalformedMark,
			fmt.Sprintf("mark %s in %q exceeds out of %s", mark.ID, mark.ExaminationName, mark.OutOf.String()))
	}
	return nil
}

// buildRanking ranks the given results by total marks and every subject by its total score, and
// writes the positions and subject statistics onto the results in place.
func buildRanking(termID, classroomID string, results []*models.TermResult) models.ClassRanking {
	totals := make(map[string]decimal.Decimal, len(results))
	for _, r := range results {
		totals[r.ID] = r.TotalMarks
	}
	positions := grading.RankStudents(totals)
	ranking := models.ClassRanking{
		TermID:        termID,
		ClassroomID:   classroomID,
		Positions:     positions,
		TotalStudents: len(results),
	}

	bySubject := make(map[string][]*models.SubjectResult)
	for _, r := range results {
		position := positions[r.ID]
		r.PositionInClass = &position
		r.TotalStudents = len(results)
		for i := range r.Subjects {
			subject := &r.Subjects[i]
			bySubject[subject.SubjectID] = append(bySubject[subject.SubjectID], subject)
		}
	}

	subjectIDs := make([]string, 0, len(bySubject))
	for id := range bySubject {
		subjectIDs = append(subjectIDs, id)
	}
	sort.Strings(subjectIDs)

	for _, subjectID := range subjectIDs {
		rows := bySubject[subjectID]
		scores := make(map[string]decimal.Decimal, len(rows))
		list := make([]decimal.Decimal, len(rows))
		for i, row := range rows {
			scores[row.ID] = row.TotalScore
			list[i] = row.TotalScore
		}
		ranks := grading.RankStudents(scores)
		stats := grading.ClassStatistics(list)
		for _, row := range rows {
			position := ranks[row.ID]
			row.PositionInSubject = &position
			row.TotalStudents = len(rows)
			row.HighestScore = stats.Highest
			row.LowestScore = stats.Lowest
			row.ClassAverage = stats.Average
			ranking.Subjects = append(ranking.Subjects, models.SubjectStanding{
				SubjectResultID: row.ID,
				Position:        position,
				TotalStudents:   len(rows),
				Highest:         stats.Highest,
				Lowest:          stats.Lowest,
				Average:         stats.Average,
			})
		}
	}
	return ranking
}

// summarizeSubjects computes per-subject statistics over results that hold a class position.
// Unranked rows left behind by a failed student are not counted.
func summarizeSubjects(results []models.TermResult) []models.SubjectSummary {
	scores := make(map[string][]decimal.Decimal)
	names := make(map[string]string)
	for _, r := range results {
		if r.PositionInClass == nil {
			continue
		}
		for _, sub := range r.Subjects {
			scores[sub.SubjectID] = append(scores[sub.SubjectID], sub.TotalScore)
			names[sub.SubjectID] = sub.SubjectName
		}
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.SubjectSummary, 0, len(ids))
	for _, id := range ids {
		stats := grading.ClassStatistics(scores[id])
		out = append(out, models.SubjectSummary{
			SubjectID:   id,
			SubjectName: names[id],
			Highest:     stats.Highest,
			Lowest:      stats.Lowest,
			Average:     stats.Average,
			PassRate:    stats.PassRate,
			Count:       stats.Count,
		})
	}
	return out
}

func (s *ResultService) loadTerm(ctx context.Context, termID string) (*models.Term, error) {
	term, err := s.stores.Terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

func (s *ResultService) loadAllocations(ctx context.Context, term *models.Term, classroomID string) ([]models.SubjectAllocation, error) {
	allocations, err := s.stores.Allocations.ListByClassroomTerm(ctx, classroomID, term.AcademicYearID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject allocations")
	}
	if len(allocations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoSubjectsAllocated,
			fmt.Sprintf("no subjects allocated to classroom %s for term %s", classroomID, term.ID))
	}
	return allocations, nil
}

func (s *ResultService) loadMarks(ctx context.Context, enrollments []models.StudentEnrollment, termID string) (map[string][]models.MarkEntry, error) {
	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
	}
	marks, err := s.stores.Marks.ListByEnrollments(ctx, ids, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	grouped := make(map[string][]models.MarkEntry, len(enrollments))
	for _, m := range marks {
		grouped[m.EnrollmentID] = append(grouped[m.EnrollmentID], m)
	}
	return grouped, nil
}

func (s *ResultService) afterChange(ctx context.Context, event events.ResultEvent) {
	_ = s.cache.Invalidate(ctx, TermPattern(event.TermID))
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("result event not published", zap.String("type", event.Type), zap.Error(err))
	}
}

func (s *ResultService) observe(operation string, summary *models.ComputationSummary, err error, start time.Time) {
	computed, failed := 0, 0
	if summary != nil {
		computed, failed = summary.Computed, summary.Failed
	}
	s.metrics.ObserveComputation(operation, computed, failed, err, time.Since(start))
}
