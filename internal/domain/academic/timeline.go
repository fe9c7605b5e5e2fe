package academic

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/malla-ucn/malla-estudiante/pkg/timeutil"
)

// TimelineCourse is one course attempt placed in its term.
type TimelineCourse struct {
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	Credits       int          `json:"credits"`
	Status        CourseStatus `json:"status"`
	Grade         *float64     `json:"grade,omitempty"`
	Prerequisites []string     `json:"prerequisites,omitempty"`
}

// TimelinePeriod groups the attempts of one term.
type TimelinePeriod struct {
	Number          int              `json:"number"`
	TermCode        string           `json:"termCode"`
	Period          string           `json:"period"`
	Courses         []TimelineCourse `json:"courses"`
	CreditsTotal    int              `json:"creditsTotal"`
	CreditsApproved int              `json:"creditsApproved"`
}

// Timeline is a student's history laid out term by term.
type Timeline struct {
	Periods         []TimelinePeriod `json:"periods"`
	CreditsTotal    int              `json:"creditsTotal"`
	CreditsApproved int              `json:"creditsApproved"`
	AdvancePercent  float64          `json:"advancePercent"`
	CurrentSemester int              `json:"currentSemester"`
	Approved        int              `json:"approved"`
	InProgress      int              `json:"inProgress"`
	Failed          int              `json:"failed"`
}

// BuildTimeline groups attempts by term in ascending order, numbering the
// terms 1..N. Each course appears once per term with that attempt's status
// (grade first, then text). Names and credits come from the curriculum;
// attempts of courses outside it keep their code as name and zero credits.
func BuildTimeline(curriculum []CurriculumCourse, records []CourseAttemptRecord) Timeline {
	index := Curriculum(curriculum).Index()

	byTerm := make(map[string]*TimelinePeriod)
	var order []string
	seen := make(map[string]struct{})

	for _, r := range sortedByTerm(records) {
		if r.CourseCode == "" {
			continue
		}
		key := r.TermCode + "\x00" + r.CourseCode
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		period, ok := byTerm[r.TermCode]
		if !ok {
			period = &TimelinePeriod{TermCode: r.TermCode, Period: displayTerm(r.TermCode), Courses: []TimelineCourse{}}
			byTerm[r.TermCode] = period
			order = append(order, r.TermCode)
		}

		course := TimelineCourse{Code: r.CourseCode, Name: r.CourseCode, Status: ClassifyStatus(r), Grade: r.Grade}
		if c, ok := index[r.CourseCode]; ok {
			course.Name = c.Name
			course.Credits = c.Credits
			course.Prerequisites = c.Prerequisites
		}
		period.Courses = append(period.Courses, course)
		period.CreditsTotal += course.Credits
		if course.Status == StatusApproved {
			period.CreditsApproved += course.Credits
		}
	}

	// Unknown terms go last.
	slices.SortStableFunc(order, func(a, b string) int {
		if (a == "") != (b == "") {
			if a == "" {
				return 1
			}
			return -1
		}
		return cmp.Compare(a, b)
	})

	tl := Timeline{Periods: make([]TimelinePeriod, 0, len(order))}
	for i, term := range order {
		period := byTerm[term]
		period.Number = i + 1
		slices.SortStableFunc(period.Courses, func(a, b TimelineCourse) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		for _, c := range period.Courses {
			switch c.Status {
			case StatusApproved:
				tl.Approved++
			case StatusInProgress:
				tl.InProgress++
			case StatusFailed:
				tl.Failed++
			}
		}
		tl.CreditsTotal += period.CreditsTotal
		tl.CreditsApproved += period.CreditsApproved
		tl.Periods = append(tl.Periods, *period)
	}
	tl.CurrentSemester = len(tl.Periods)
	if tl.CreditsTotal > 0 {
		pct := float64(tl.CreditsApproved) / float64(tl.CreditsTotal) * 100
		tl.AdvancePercent = math.Round(pct*100) / 100
	}
	return tl
}

func displayTerm(code string) string {
	if code == "" {
		return "Sin período"
	}
	return timeutil.DisplayPeriod(code)
}
