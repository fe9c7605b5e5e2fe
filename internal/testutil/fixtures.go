// Package testutil provides fixtures and in-memory collaborators for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
)

const (
	TestRut      = "12345678-9"
	TestProgram  = "8606"
	TestCatalog  = "202410"
	TestEmail    = "alumno@alumnos.ucn.cl"
	TestPassword = "secreto"
)

// Curriculum returns a small three-level curriculum.
func Curriculum() academic.Curriculum {
	return academic.Curriculum{
		{Code: "INF101", Name: "Programación", Credits: 6, Level: 1},
		{Code: "MAT101", Name: "Cálculo I", Credits: 6, Level: 1},
		{Code: "FIS101", Name: "Física I", Credits: 5, Level: 1},
		{Code: "INF102", Name: "Estructuras de Datos", Credits: 6, Level: 2, Prerequisites: []string{"INF101"}},
		{Code: "MAT102", Name: "Cálculo II", Credits: 6, Level: 2, Prerequisites: []string{"MAT101"}},
		{Code: "INF201", Name: "Algoritmos", Credits: 6, Level: 3, Prerequisites: []string{"INF102", "MAT102"}},
	}
}

// Attempt builds a history record without a grade.
func Attempt(code, term, status string) academic.CourseAttemptRecord {
	return academic.CourseAttemptRecord{CourseCode: code, TermCode: term, StatusText: status}
}

// History returns a first-year history: INF101 and MAT101 approved, FIS101 failed.
func History() []academic.CourseAttemptRecord {
	return []academic.CourseAttemptRecord{
		Attempt("INF101", "202410", "APROBADO"),
		Attempt("MAT101", "202410", "APROBADO"),
		Attempt("FIS101", "202410", "REPROBADO"),
	}
}

// AlertHistory fails the same course three times.
func AlertHistory() []academic.CourseAttemptRecord {
	return []academic.CourseAttemptRecord{
		Attempt("FIS101", "202310", "REPROBADO"),
		Attempt("FIS101", "202320", "REPROBADO"),
		Attempt("FIS101", "202410", "REPROBADO"),
	}
}

// Semester builds a projected semester from curriculum codes.
func Semester(codes ...string) academic.ProjectedSemester {
	index := Curriculum().Index()
	s := academic.ProjectedSemester{Courses: []academic.CurriculumCourse{}}
	for _, code := range codes {
		if c, ok := index[code]; ok {
			s.Courses = append(s.Courses, c)
		} else {
			s.Courses = append(s.Courses, academic.CurriculumCourse{Code: code})
		}
	}
	s.TotalCredits = s.Credits()
	return s
}

// PlanOption customizes NewTestPlan.
type PlanOption func(*projection.Plan)

func WithRut(rut string) PlanOption {
	return func(p *projection.Plan) { p.Rut = rut }
}

func WithSemesters(semesters ...academic.ProjectedSemester) PlanOption {
	return func(p *projection.Plan) { p.Semesters = projection.Normalize(semesters) }
}

func WithUpdatedAt(t time.Time) PlanOption {
	return func(p *projection.Plan) { p.UpdatedAt = t }
}

// NewTestPlan builds a plan owned by TestRut in TestProgram.
func NewTestPlan(name string, opts ...PlanOption) *projection.Plan {
	p, err := projection.NewPlan(TestRut, TestProgram, TestCatalog, name,
		[]academic.ProjectedSemester{Semester("INF102", "MAT102")}, time.Now().UTC())
	if err != nil {
		panic(err)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// FAKE UNIVERSITY SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// FakeSource is an in-memory academic.Source and student.Authenticator.
type FakeSource struct {
	mu sync.Mutex

	Curricula map[academic.CatalogRef][]academic.CurriculumCourse
	Histories map[string][]academic.CourseAttemptRecord // rut|program
	Enrolled  map[string][]academic.EnrolledCourse      // rut
	Students  map[string]*student.Student               // email

	// Err, when set, is returned by every fetch.
	Err error

	Calls map[string]int
}

var (
	_ academic.Source       = (*FakeSource)(nil)
	_ student.Authenticator = (*FakeSource)(nil)
)

// NewFakeSource returns a source seeded with the test student, curriculum and history.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Curricula: map[academic.CatalogRef][]academic.CurriculumCourse{
			{Program: TestProgram, Catalog: TestCatalog}: Curriculum(),
		},
		Histories: map[string][]academic.CourseAttemptRecord{
			TestRut + "|" + TestProgram: History(),
		},
		Enrolled: map[string][]academic.EnrolledCourse{},
		Students: map[string]*student.Student{
			TestEmail: {
				Rut:     TestRut,
				Email:   TestEmail,
				Careers: []student.Career{{Code: TestProgram, Name: "Ingeniería Civil en Computación", Catalog: TestCatalog}},
			},
		},
		Calls: map[string]int{},
	}
}

func (f *FakeSource) called(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[op]++
}

// CallCount returns how many times op was invoked.
func (f *FakeSource) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *FakeSource) Login(_ context.Context, email, password string) (*student.Student, error) {
	f.called("Login")
	s, ok := f.Students[email]
	if !ok || password != TestPassword {
		return nil, shared.ErrInvalidCredentials
	}
	cp := *s
	return &cp, nil
}

func (f *FakeSource) FetchAttemptHistory(_ context.Context, rut, program string) ([]academic.CourseAttemptRecord, error) {
	f.called("FetchAttemptHistory")
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]academic.CourseAttemptRecord{}, f.Histories[rut+"|"+program]...), nil
}

func (f *FakeSource) FetchCurriculum(_ context.Context, ref academic.CatalogRef) ([]academic.CurriculumCourse, error) {
	f.called("FetchCurriculum")
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]academic.CurriculumCourse{}, f.Curricula[ref]...), nil
}

func (f *FakeSource) FetchCurricula(ctx context.Context, refs []academic.CatalogRef) (academic.Curriculum, error) {
	f.called("FetchCurricula")
	if f.Err != nil {
		return nil, f.Err
	}
	lists := make([][]academic.CurriculumCourse, 0, len(refs))
	for _, ref := range refs {
		lists = append(lists, f.Curricula[ref])
	}
	return academic.MergeCurricula(lists...), nil
}

func (f *FakeSource) FetchEnrolledCourses(_ context.Context, rut string) ([]academic.EnrolledCourse, error) {
	f.called("FetchEnrolledCourses")
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]academic.EnrolledCourse{}, f.Enrolled[rut]...), nil
}

// Flags is a fixed feature gate. Missing names are off.
type Flags map[string]bool

func (f Flags) IsEnabled(name, _ string) bool { return f[name] }

// AllFlags turns every feature on.
func AllFlags() Flags {
	return Flags{
		config.FeatureLegacyBackfill: true,
		config.FeatureRedisCache:     true,
		config.FeatureTimeline:       true,
		config.FeatureStrictSave:     true,
	}
}
