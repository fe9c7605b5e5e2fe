package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/application/command"
	"github.com/malla-ucn/malla-estudiante/internal/application/query"
	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/sqlite"
	"github.com/malla-ucn/malla-estudiante/internal/testutil"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

type fakeIssuer struct {
	issued []string
}

func (f *fakeIssuer) Issue(s *student.Student) (student.SessionToken, error) {
	f.issued = append(f.issued, s.Rut)
	return student.SessionToken{Value: "token-" + s.Rut, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newLoader(src *testutil.FakeSource, flags query.FeatureGate) *query.AcademicLoader {
	return query.NewAcademicLoader(src, nil, testutil.TestCatalog, flags, logger.Discard())
}

func target() query.Target {
	return query.Target{Rut: testutil.TestRut, Program: testutil.TestProgram, Catalog: testutil.TestCatalog}
}

func rejectionOf(t *testing.T, err error) *academic.Rejection {
	t.Helper()
	require.Error(t, err)
	require.True(t, shared.IsValidation(err), "expected validation error, got %v", err)
	rej, ok := shared.DetailOf(err).(*academic.Rejection)
	require.True(t, ok, "validation error carries the rejection")
	return rej
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN
// ══════════════════════════════════════════════════════════════════════════════

func TestLogin(t *testing.T) {
	issuer := &fakeIssuer{}
	h := command.NewLoginHandler(testutil.NewFakeSource(), issuer, logger.Discard())

	res, err := h.Handle(context.Background(), command.LoginCommand{Email: " " + testutil.TestEmail, Password: testutil.TestPassword})
	require.NoError(t, err)
	assert.Equal(t, testutil.TestRut, res.Student.Rut)
	assert.Equal(t, "token-"+testutil.TestRut, res.Session.Value)
	require.Len(t, res.Student.Careers, 1)
	assert.Equal(t, testutil.TestProgram, res.Student.Careers[0].Code)

	_, err = h.Handle(context.Background(), command.LoginCommand{Email: testutil.TestEmail, Password: "nope"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.True(t, shared.IsUnauthorized(err))

	_, err = h.Handle(context.Background(), command.LoginCommand{Email: testutil.TestEmail})
	assert.True(t, shared.IsValidation(err))

	assert.Equal(t, []string{testutil.TestRut}, issuer.issued)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTIONS
// ══════════════════════════════════════════════════════════════════════════════

func newProjectionHandler(t *testing.T, flags query.FeatureGate) (*command.ProjectionHandler, *sqlite.ProjectionRepository) {
	repo := testutil.NewTestProjectionRepo(t)
	return command.NewProjectionHandler(repo, newLoader(testutil.NewFakeSource(), flags), flags, logger.Discard()), repo
}

func TestSaveProjection_Upserts(t *testing.T) {
	ctx := context.Background()
	h, repo := newProjectionHandler(t, testutil.AllFlags())

	res, err := h.Save(ctx, command.SaveProjectionCommand{
		Target:    target(),
		Name:      "  Plan 2025 ",
		Semesters: []academic.ProjectedSemester{testutil.Semester("INF102", "MAT102")},
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Plan 2025", res.Plan.Name)
	assert.Equal(t, 12, res.Plan.Semesters[0].TotalCredits)

	again, err := h.Save(ctx, command.SaveProjectionCommand{
		Target: target(),
		Name:   "Plan 2025",
		Semesters: []academic.ProjectedSemester{
			testutil.Semester("INF102", "MAT102", "FIS101"),
		},
	})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Plan.ID, again.Plan.ID)

	stored, err := repo.Get(ctx, res.Plan.ID)
	require.NoError(t, err)
	require.Len(t, stored.Semesters, 1)
	assert.Equal(t, 17, stored.Semesters[0].TotalCredits)
}

func TestSaveProjection_StrictRejects(t *testing.T) {
	h, _ := newProjectionHandler(t, testutil.AllFlags())

	tests := []struct {
		name      string
		semesters []academic.ProjectedSemester
		violation academic.Violation
		semester  int
	}{
		{
			name:      "below minimum",
			semesters: []academic.ProjectedSemester{testutil.Semester("INF102")},
			violation: academic.ViolationMinCredits,
			semester:  1,
		},
		{
			name: "course twice",
			semesters: []academic.ProjectedSemester{
				testutil.Semester("INF102", "MAT102"),
				testutil.Semester("INF102", "FIS101", "INF201"),
			},
			violation: academic.ViolationDuplicate,
			semester:  2,
		},
		{
			name:      "already approved",
			semesters: []academic.ProjectedSemester{testutil.Semester("INF101", "INF102")},
			violation: academic.ViolationUnavailable,
			semester:  1,
		},
		{
			name:      "prerequisites missing",
			semesters: []academic.ProjectedSemester{testutil.Semester("FIS101", "INF201", "MAT102")},
			violation: academic.ViolationUnavailable,
			semester:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Save(context.Background(), command.SaveProjectionCommand{
				Target: target(), Name: tt.name, Semesters: tt.semesters,
			})
			rej := rejectionOf(t, err)
			assert.Equal(t, tt.violation, rej.Violation)
			assert.Equal(t, tt.semester, rej.Semester)
		})
	}
}

func TestSaveProjection_LenientWhenStrictOff(t *testing.T) {
	h, _ := newProjectionHandler(t, testutil.Flags{})

	res, err := h.Save(context.Background(), command.SaveProjectionCommand{
		Target:    target(),
		Name:      "Borrador",
		Semesters: []academic.ProjectedSemester{testutil.Semester("INF102")},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Plan.Semesters[0].TotalCredits)
}

func TestUpdateProjection(t *testing.T) {
	ctx := context.Background()
	h, _ := newProjectionHandler(t, testutil.Flags{config.FeatureStrictSave: true})

	a, err := h.Save(ctx, command.SaveProjectionCommand{Target: target(), Name: "A",
		Semesters: []academic.ProjectedSemester{testutil.Semester("INF102", "MAT102")}})
	require.NoError(t, err)
	_, err = h.Save(ctx, command.SaveProjectionCommand{Target: target(), Name: "B"})
	require.NoError(t, err)

	renamed := "C"
	plan, err := h.Update(ctx, command.UpdateProjectionCommand{Rut: testutil.TestRut, ID: a.Plan.ID, Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "C", plan.Name)
	assert.Len(t, plan.Semesters, 1, "semesters untouched when not supplied")

	collide := "B"
	_, err = h.Update(ctx, command.UpdateProjectionCommand{Rut: testutil.TestRut, ID: a.Plan.ID, Name: &collide})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = h.Update(ctx, command.UpdateProjectionCommand{
		Rut: testutil.TestRut, ID: a.Plan.ID,
		Semesters: []academic.ProjectedSemester{testutil.Semester("FIS101")},
	})
	assert.Equal(t, academic.ViolationMinCredits, rejectionOf(t, err).Violation)

	_, err = h.Update(ctx, command.UpdateProjectionCommand{Rut: "11111111-1", ID: a.Plan.ID, Name: &renamed})
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteProjection(t *testing.T) {
	ctx := context.Background()
	h, repo := newProjectionHandler(t, testutil.Flags{})

	res, err := h.Save(ctx, command.SaveProjectionCommand{Target: target(), Name: "Borrar"})
	require.NoError(t, err)

	err = h.Delete(ctx, command.DeleteProjectionCommand{Rut: "11111111-1", ID: res.Plan.ID})
	assert.True(t, shared.IsNotFound(err), "another student's plan is not found")

	err = h.Delete(ctx, command.DeleteProjectionCommand{Rut: testutil.TestRut, ID: "bad"})
	assert.True(t, shared.IsValidation(err))

	require.NoError(t, h.Delete(ctx, command.DeleteProjectionCommand{Rut: testutil.TestRut, ID: res.Plan.ID}))
	_, err = repo.Get(ctx, res.Plan.ID)
	assert.True(t, shared.IsNotFound(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// EDIT PLAN
// ══════════════════════════════════════════════════════════════════════════════

func TestEditPlan(t *testing.T) {
	ctx := context.Background()
	h := command.NewEditPlanHandler(newLoader(testutil.NewFakeSource(), testutil.AllFlags()))

	state, err := h.Handle(ctx, command.EditPlanCommand{Target: target(), Action: command.ActionAppend})
	require.NoError(t, err)
	require.Len(t, state.Semesters, 1)
	assert.Equal(t, 1, state.Semesters[0].Number)

	state, err = h.Handle(ctx, command.EditPlanCommand{
		Target: target(), Action: command.ActionAddCourse, Semester: 1, Course: "INF102",
		Semesters: state.Semesters,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, state.Semesters[0].TotalCredits)
	assert.NotContains(t, state.Available, testutil.Curriculum().Index()["INF102"])

	_, err = h.Handle(ctx, command.EditPlanCommand{
		Target: target(), Action: command.ActionAppend, Semesters: state.Semesters,
	})
	assert.Equal(t, academic.ViolationMinCredits, rejectionOf(t, err).Violation)

	_, err = h.Handle(ctx, command.EditPlanCommand{
		Target: target(), Action: command.ActionAddCourse, Semester: 1, Course: "INF201",
		Semesters: state.Semesters,
	})
	assert.Equal(t, academic.ViolationUnavailable, rejectionOf(t, err).Violation)

	state, err = h.Handle(ctx, command.EditPlanCommand{
		Target: target(), Action: command.ActionRemoveCourse, Semester: 1, Course: "INF102",
		Semesters: state.Semesters,
	})
	require.NoError(t, err)
	assert.Zero(t, state.Semesters[0].TotalCredits)
}

func TestEditPlan_DeleteRenumbers(t *testing.T) {
	h := command.NewEditPlanHandler(newLoader(testutil.NewFakeSource(), testutil.AllFlags()))

	state, err := h.Handle(context.Background(), command.EditPlanCommand{
		Target: target(), Action: command.ActionDelete, Semester: 1,
		Semesters: []academic.ProjectedSemester{
			testutil.Semester("INF102", "MAT102"),
			testutil.Semester("FIS101", "INF201"),
		},
	})
	require.NoError(t, err)
	require.Len(t, state.Semesters, 1)
	assert.Equal(t, 1, state.Semesters[0].Number)
	assert.Equal(t, "FIS101", state.Semesters[0].Courses[0].Code)
}

func TestEditPlan_AlertCeiling(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Histories[testutil.TestRut+"|"+testutil.TestProgram] = testutil.AlertHistory()
	h := command.NewEditPlanHandler(newLoader(src, testutil.AllFlags()))

	_, err := h.Handle(context.Background(), command.EditPlanCommand{
		Target: target(), Action: command.ActionAddCourse, Semester: 1, Course: "FIS101",
		Semesters: []academic.ProjectedSemester{testutil.Semester("INF101", "MAT101")},
	})
	rej := rejectionOf(t, err)
	assert.Equal(t, academic.ViolationMaxCredits, rej.Violation)
	assert.Equal(t, academic.AlertMaxCredits, rej.MaxCredits)
	assert.Equal(t, 17, rej.Credits)
}

func TestEditPlan_InvalidInput(t *testing.T) {
	h := command.NewEditPlanHandler(newLoader(testutil.NewFakeSource(), testutil.AllFlags()))

	_, err := command.ParsePlanAction("explode")
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), command.EditPlanCommand{Target: target(), Action: command.ActionAddCourse, Semester: 1})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), command.EditPlanCommand{Target: target(), Action: command.ActionDelete, Semester: 3})
	assert.Equal(t, academic.ViolationUnknownSemester, rejectionOf(t, err).Violation)

	action, err := command.ParsePlanAction(" Add-Course ")
	require.NoError(t, err)
	assert.Equal(t, command.ActionAddCourse, action)
}
