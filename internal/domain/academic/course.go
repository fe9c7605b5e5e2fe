package academic

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// CourseAttemptRecord is one row of a student's academic history. A course
// may have several records when it was retaken.
type CourseAttemptRecord struct {
	CourseCode string   `json:"courseCode"`
	TermCode   string   `json:"termCode"`
	StatusText string   `json:"statusText"`
	Grade      *float64 `json:"grade,omitempty"`
	NRC        string   `json:"nrc,omitempty"`
}

// ParseGrade parses a raw grade such as "5.5" or "4,0". It returns nil for
// blank or unparseable input so the classifier falls through to the status text.
func ParseGrade(raw string) *float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return nil
	}
	g, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &g
}

// sortedByTerm returns a copy of records ordered by term code ascending.
// Records in the same term keep their input order.
func sortedByTerm(records []CourseAttemptRecord) []CourseAttemptRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b CourseAttemptRecord) int {
		return cmp.Compare(a.TermCode, b.TermCode)
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM
// ══════════════════════════════════════════════════════════════════════════════

// CurriculumCourse is a course ("asignatura") as defined by a curriculum catalog.
type CurriculumCourse struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Credits       int      `json:"credits"`
	Level         int      `json:"level"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// ParsePrerequisites splits the catalog's comma-separated prerequisite field.
func ParsePrerequisites(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Curriculum is an ordered list of curriculum courses.
type Curriculum []CurriculumCourse

// Index returns the curriculum keyed by course code. The first entry wins
// when a code repeats.
func (c Curriculum) Index() map[string]CurriculumCourse {
	idx := make(map[string]CurriculumCourse, len(c))
	for _, course := range c {
		if _, ok := idx[course.Code]; !ok {
			idx[course.Code] = course
		}
	}
	return idx
}

// TotalCredits sums the credits of every course.
func (c Curriculum) TotalCredits() int {
	total := 0
	for _, course := range c {
		total += course.Credits
	}
	return total
}

// MergeCurricula unions several catalogs, de-duplicated by code. The first
// occurrence of a code wins; later catalogs only fill a missing name or zero
// credits, which is how legacy catalogs backfill metadata lost in migrations.
func MergeCurricula(catalogs ...[]CurriculumCourse) Curriculum {
	var merged Curriculum
	pos := make(map[string]int)

	for _, catalog := range catalogs {
		for _, course := range catalog {
			if course.Code == "" {
				continue
			}
			i, seen := pos[course.Code]
			if !seen {
				pos[course.Code] = len(merged)
				merged = append(merged, course)
				continue
			}
			if merged[i].Name == "" && course.Name != "" {
				merged[i].Name = course.Name
			}
			if merged[i].Credits == 0 && course.Credits > 0 {
				merged[i].Credits = course.Credits
			}
		}
	}

	return merged
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// EnrolledCourse is a course on the student's current course list.
type EnrolledCourse struct {
	Code    string       `json:"code"`
	Name    string       `json:"name"`
	Credits int          `json:"credits"`
	Level   int          `json:"level,omitempty"`
	Period  string       `json:"period,omitempty"`
	Status  CourseStatus `json:"status"`
	Section string       `json:"section,omitempty"`
	Teacher string       `json:"teacher,omitempty"`
}
