package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(courses []CurriculumCourse) []string {
	out := make([]string, 0, len(courses))
	for _, c := range courses {
		out = append(out, c.Code)
	}
	return out
}

func TestComputeAvailableCourses_NoHistory(t *testing.T) {
	curriculum := []CurriculumCourse{{Code: "INF101", Credits: 5}}
	got := ComputeAvailableCourses(curriculum, nil, nil)
	assert.Equal(t, []string{"INF101"}, codes(got))
}

func TestComputeAvailableCourses_PrerequisitesFromHistory(t *testing.T) {
	records := []CourseAttemptRecord{
		attempt("INF101", "202410", "APROBADO"),
		attempt("MAT101", "202410", "REPROBADO"),
	}

	got := ComputeAvailableCourses(sampleCurriculum(), records, nil)

	assert.Equal(t, []string{"MAT101", "FIS101", "INF102"}, codes(got))
}

func TestComputeAvailableCourses_ProjectedSatisfyPrerequisites(t *testing.T) {
	records := []CourseAttemptRecord{
		attempt("INF101", "202410", "APROBADO"),
		attempt("MAT101", "202410", "APROBADO"),
	}
	semesters := []ProjectedSemester{
		{Number: 1, Courses: []CurriculumCourse{{Code: "INF102", Credits: 6}, {Code: "MAT102", Credits: 6}}},
	}

	got := ComputeAvailableCourses(sampleCurriculum(), records, semesters)

	assert.Equal(t, []string{"FIS101", "INF201"}, codes(got))
}

func TestComputeAvailableCourses_UsesTextNotGrade(t *testing.T) {
	records := []CourseAttemptRecord{
		{CourseCode: "INF101", TermCode: "202410", StatusText: "INSCRITO", Grade: grade(6.5)},
	}
	got := ComputeAvailableCourses(sampleCurriculum(), records, nil)
	assert.Contains(t, codes(got), "INF101")
	assert.NotContains(t, codes(got), "INF102")
}

func TestComputeAvailableCourses_NeverOffersApprovedOrBlocked(t *testing.T) {
	records := []CourseAttemptRecord{
		attempt("INF101", "202410", "REPROBADO"),
		attempt("INF101", "202420", "APROBADO"),
	}
	got := ComputeAvailableCourses(sampleCurriculum(), records, nil)

	approved := ApprovedCodes(records)
	for _, c := range got {
		_, isApproved := approved[c.Code]
		assert.False(t, isApproved, c.Code)
		for _, pre := range c.Prerequisites {
			_, ok := approved[pre]
			assert.True(t, ok, "%s offered without %s", c.Code, pre)
		}
	}
}
