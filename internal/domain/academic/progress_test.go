package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCurriculum() []CurriculumCourse {
	return []CurriculumCourse{
		{Code: "INF101", Name: "Programación", Credits: 6, Level: 1},
		{Code: "MAT101", Name: "Cálculo I", Credits: 6, Level: 1},
		{Code: "FIS101", Name: "Física I", Credits: 5, Level: 1},
		{Code: "INF102", Name: "Estructuras de Datos", Credits: 6, Level: 2, Prerequisites: []string{"INF101"}},
		{Code: "MAT102", Name: "Cálculo II", Credits: 6, Level: 2, Prerequisites: []string{"MAT101"}},
		{Code: "INF201", Name: "Algoritmos", Credits: 6, Level: 3, Prerequisites: []string{"INF102", "MAT102"}},
	}
}

func TestReconcileProgress_EmptyHistory(t *testing.T) {
	curriculum := []CurriculumCourse{{Code: "INF101", Credits: 5}}

	got := ReconcileProgress(curriculum, nil)

	assert.Equal(t, Summary{
		CreditsApproved: 0,
		CreditsTotal:    5,
		CoursesApproved: 0,
		CoursesTotal:    1,
		CoursesFailed:   0,
		CareerPercent:   0,
		Standing:        StandingNormal,
	}, got.Summary)
	assert.Empty(t, got.CourseStatus)
}

func TestReconcileProgress_ApprovedIsSticky(t *testing.T) {
	records := []CourseAttemptRecord{
		attempt("MAT101", "202420", "REPROBADO"),
		attempt("MAT101", "202410", "APROBADO"),
		attempt("INF101", "202410", "REPROBADO"),
		attempt("INF101", "202420", "APROBADO"),
		attempt("FIS101", "202410", "REPROBADO"),
		attempt("FIS101", "202420", "INSCRITO"),
	}

	got := ReconcileProgress(sampleCurriculum(), records)

	assert.Equal(t, StatusApproved, got.StatusOf("MAT101"))
	assert.Equal(t, StatusApproved, got.StatusOf("INF101"))
	assert.Equal(t, StatusFailed, got.StatusOf("FIS101"), "in-progress attempt does not replace a failure")
	assert.Equal(t, StatusPending, got.StatusOf("INF201"))

	assert.Equal(t, 2, got.Summary.CoursesApproved)
	assert.Equal(t, 12, got.Summary.CreditsApproved)
	assert.Equal(t, 1, got.Summary.CoursesFailed)
	assert.Equal(t, 6, got.Summary.CoursesTotal)
	assert.Equal(t, 35, got.Summary.CreditsTotal)
	assert.Equal(t, 34, got.Summary.CareerPercent, "12 of 35 credits")
}

func TestReconcileProgress_GradePriority(t *testing.T) {
	records := []CourseAttemptRecord{
		{CourseCode: "INF101", TermCode: "202410", StatusText: "REPROBADO", Grade: grade(5.0)},
	}
	got := ReconcileProgress(sampleCurriculum(), records)
	assert.Equal(t, StatusApproved, got.StatusOf("INF101"))
}

func TestReconcileProgress_CoursesOutsideCurriculum(t *testing.T) {
	records := []CourseAttemptRecord{
		attempt("ELE001", "202410", "REPROBADO"),
		attempt("ELE001", "202420", "REPROBADO"),
		attempt("ELE001", "202510", "REPROBADO"),
	}

	got := ReconcileProgress(sampleCurriculum(), records)

	require.Contains(t, got.CourseStatus, "ELE001")
	assert.Equal(t, 0, got.Summary.CoursesFailed)
	assert.Equal(t, StandingAlert, got.Summary.Standing)
}

func TestCareerPercent(t *testing.T) {
	assert.Equal(t, 0, careerPercent(0, 0))
	assert.Equal(t, 50, careerPercent(1, 2))
	assert.Equal(t, 67, careerPercent(2, 3))
	assert.Equal(t, 100, careerPercent(4, 4))
}

func TestReconcileProgress_PercentIsCreditWeighted(t *testing.T) {
	curriculum := []CurriculumCourse{
		{Code: "A", Name: "A", Credits: 10, Level: 1},
		{Code: "B", Name: "B", Credits: 2, Level: 1},
	}
	records := []CourseAttemptRecord{attempt("A", "202410", "APROBADO")}

	got := ReconcileProgress(curriculum, records)

	assert.Equal(t, 1, got.Summary.CoursesApproved)
	assert.Equal(t, 83, got.Summary.CareerPercent, "10 of 12 credits, not 1 of 2 courses")
}
