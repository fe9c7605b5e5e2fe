package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTimeline(t *testing.T) {
	records := []CourseAttemptRecord{
		attempt("MAT101", "202420", "APROBADO"),
		attempt("INF101", "202410", "APROBADO"),
		attempt("MAT101", "202410", "REPROBADO"),
		attempt("MAT101", "202410", "REPROBADO"),
		{CourseCode: "FIS101", TermCode: "202420", StatusText: "INSCRITO", Grade: grade(3.0)},
		attempt("ELE001", "202510", "CURSANDO"),
	}

	tl := BuildTimeline(sampleCurriculum(), records)

	require.Len(t, tl.Periods, 3)
	first := tl.Periods[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "2024-1", first.Period)
	require.Len(t, first.Courses, 2, "repeated rows of one term collapse")
	assert.Equal(t, "Cálculo I", first.Courses[0].Name, "courses sorted by name")
	assert.Equal(t, StatusFailed, first.Courses[0].Status)
	assert.Equal(t, 12, first.CreditsTotal)
	assert.Equal(t, 6, first.CreditsApproved)

	second := tl.Periods[1]
	assert.Equal(t, "2024-2", second.Period)
	assert.Equal(t, 11, second.CreditsTotal)
	assert.Equal(t, 6, second.CreditsApproved)

	third := tl.Periods[2]
	assert.Equal(t, "ELE001", third.Courses[0].Name)
	assert.Equal(t, 0, third.Courses[0].Credits)

	assert.Equal(t, 3, tl.CurrentSemester)
	assert.Equal(t, 2, tl.Approved)
	assert.Equal(t, 2, tl.Failed)
	assert.Equal(t, 1, tl.InProgress)
	assert.Equal(t, 23, tl.CreditsTotal)
	assert.Equal(t, 12, tl.CreditsApproved)
	assert.Equal(t, 52.17, tl.AdvancePercent)
}

func TestBuildTimeline_Empty(t *testing.T) {
	tl := BuildTimeline(nil, nil)
	assert.Empty(t, tl.Periods)
	assert.Zero(t, tl.AdvancePercent)
	assert.Zero(t, tl.CurrentSemester)
}

func TestCatalogRefs(t *testing.T) {
	refs, err := ParseCatalogRefs("8266-202410, 8606-201610,,8266-202410")
	require.NoError(t, err)
	assert.Equal(t, []CatalogRef{
		{Program: "8266", Catalog: "202410"},
		{Program: "8606", Catalog: "201610"},
	}, DedupCatalogRefs(refs))
	assert.Equal(t, "8606-201610", refs[1].String())

	_, err = ParseCatalogRefs("8266")
	assert.Error(t, err)
}
