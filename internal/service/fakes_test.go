package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	"github.com/ibsadiq/scms-backend-sub000/pkg/events"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeTerms struct {
	terms map[string]models.Term
}

func (f *fakeTerms) FindByID(_ context.Context, id string) (*models.Term, error) {
	term, ok := f.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &term, nil
}

type fakeEnrollments struct {
	rows []models.StudentEnrollment
	err  error
}

func (f *fakeEnrollments) ListActiveByClassroom(_ context.Context, classroomID, academicYearID string) ([]models.StudentEnrollment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.StudentEnrollment
	for _, e := range f.rows {
		if e.IsActive && e.ClassroomID == classroomID && e.AcademicYearID == academicYearID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEnrollments) FindActiveByStudent(_ context.Context, studentID, academicYearID string) (*models.StudentEnrollment, error) {
	for _, e := range f.rows {
		if e.IsActive && e.StudentID == studentID && e.AcademicYearID == academicYearID {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeAllocations struct {
	rows []models.SubjectAllocation
}

func (f *fakeAllocations) ListByClassroomTerm(_ context.Context, classroomID, academicYearID, termID string) ([]models.SubjectAllocation, error) {
	var out []models.SubjectAllocation
	for _, a := range f.rows {
		if a.ClassroomID == classroomID && a.AcademicYearID == academicYearID && a.TermID == termID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeMarks struct {
	rows []models.MarkEntry
	err  error
}

func (f *fakeMarks) ListByEnrollments(_ context.Context, ids []string, _ string) ([]models.MarkEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.MarkEntry
	for _, m := range f.rows {
		if wanted[m.EnrollmentID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeResults keeps term results in memory with the same keying and ranking rules as the
// Postgres repository.
type fakeResults struct {
	mu      sync.Mutex
	rows    map[string]*models.TermResult
	seq     int
	writes  int
	deletes int
}

func newFakeResults() *fakeResults {
	return &fakeResults{rows: map[string]*models.TermResult{}}
}

func (f *fakeResults) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeResults) ReplaceStudentResult(_ context.Context, result *models.TermResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	var existing *models.TermResult
	for _, r := range f.rows {
		if r.StudentID == result.StudentID && r.TermID == result.TermID && r.AcademicYearID == result.AcademicYearID {
			existing = r
			break
		}
	}
	if existing == nil {
		result.ID = f.nextID("tr")
	} else {
		result.ID = existing.ID
		result.PositionInClass = existing.PositionInClass
		result.TotalStudents = existing.TotalStudents
		result.IsPublished = existing.IsPublished
		result.PublishedDate = existing.PublishedDate
	}
	for i := range result.Subjects {
		result.Subjects[i].ID = f.nextID("sr")
		result.Subjects[i].TermResultID = result.ID
	}
	f.rows[result.ID] = cloneResult(result)
	return nil
}

func (f *fakeResults) ApplyRankings(_ context.Context, ranking models.ClassRanking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	standings := make(map[string]models.SubjectStanding, len(ranking.Subjects))
	for _, s := range ranking.Subjects {
		standings[s.SubjectResultID] = s
	}
	for _, r := range f.rows {
		if r.TermID != ranking.TermID || r.ClassroomID != ranking.ClassroomID {
			continue
		}
		r.PositionInClass, r.TotalStudents = nil, 0
		if pos, ok := ranking.Positions[r.ID]; ok {
			p := pos
			r.PositionInClass = &p
			r.TotalStudents = ranking.TotalStudents
		}
		for i := range r.Subjects {
			sub := &r.Subjects[i]
			sub.PositionInSubject, sub.TotalStudents = nil, 0
			if st, ok := standings[sub.ID]; ok {
				p := st.Position
				sub.PositionInSubject = &p
				sub.TotalStudents = st.TotalStudents
				sub.HighestScore, sub.LowestScore, sub.ClassAverage = st.Highest, st.Lowest, st.Average
			}
		}
	}
	return nil
}

func (f *fakeResults) ListByClassroom(_ context.Context, termID, classroomID string) ([]models.TermResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TermResult
	for _, r := range f.rows {
		if r.TermID == termID && r.ClassroomID == classroomID {
			out = append(out, *cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeResults) FindByStudent(_ context.Context, studentID, termID string) (*models.TermResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.StudentID == studentID && r.TermID == termID {
			return cloneResult(r), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeResults) DeleteByClassroom(_ context.Context, termID, classroomID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.rows {
		if r.TermID == termID && r.ClassroomID == classroomID {
			delete(f.rows, id)
			n++
		}
	}
	f.deletes++
	return n, nil
}

func (f *fakeResults) SetPublished(_ context.Context, termID, classroomID string, published bool, at *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.TermID == termID && r.ClassroomID == classroomID {
			r.IsPublished = published
			r.PublishedDate = at
			n++
		}
	}
	return n, nil
}

func (f *fakeResults) Status(_ context.Context, termID, classroomID string) (*models.ResultStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := &models.ResultStatus{TermID: termID, ClassroomID: classroomID}
	for _, r := range f.rows {
		if r.TermID == termID && r.ClassroomID == classroomID {
			status.Computed++
			if r.IsPublished {
				status.Published++
			}
		}
	}
	status.DeriveState()
	return status, nil
}

func (f *fakeResults) byStudent(studentID string) *models.TermResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.StudentID == studentID {
			return cloneResult(r)
		}
	}
	return nil
}

func cloneResult(r *models.TermResult) *models.TermResult {
	out := *r
	out.Subjects = append([]models.SubjectResult(nil), r.Subjects...)
	return &out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ResultEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.ResultEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeScaleRepo struct {
	active   *models.GradeScale
	err      error
	replaced []*models.GradeScale
}

func (f *fakeScaleRepo) FindActive(context.Context) (*models.GradeScale, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.active == nil {
		return nil, sql.ErrNoRows
	}
	return f.active, nil
}

func (f *fakeScaleRepo) ReplaceActive(_ context.Context, scale *models.GradeScale) error {
	scale.ID = fmt.Sprintf("scale-%d", len(f.replaced)+1)
	scale.IsActive = true
	for i := range scale.Rules {
		scale.Rules[i].ScaleID = scale.ID
	}
	f.replaced = append(f.replaced, scale)
	f.active = scale
	return nil
}
