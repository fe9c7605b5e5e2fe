package academic

import "math"

// Summary aggregates a student's progress over a curriculum.
type Summary struct {
	CreditsApproved int      `json:"creditsApproved"`
	CreditsTotal    int      `json:"creditsTotal"`
	CoursesApproved int      `json:"coursesApproved"`
	CoursesTotal    int      `json:"coursesTotal"`
	CoursesFailed   int      `json:"coursesFailed"`
	CareerPercent   int      `json:"careerPercent"`
	Standing        Standing `json:"standing"`
}

// Progress is the result of reconciling history against a curriculum.
type Progress struct {
	// CourseStatus holds the final status of every course with at least one
	// approved or failed attempt, including courses outside the curriculum.
	CourseStatus map[string]CourseStatus `json:"courseStatus"`
	Summary      Summary                 `json:"summary"`
}

// StatusOf returns the reconciled status of a course, pending when it has no
// terminal attempt.
func (p Progress) StatusOf(code string) CourseStatus {
	if s, ok := p.CourseStatus[code]; ok {
		return s
	}
	return StatusPending
}

// ReconcileProgress folds the attempt history into one final status per
// course and summarizes it against the curriculum.
//
// Attempts are folded in term order. Only approved and failed attempts
// count, and once a course is approved it stays approved.
func ReconcileProgress(curriculum []CurriculumCourse, records []CourseAttemptRecord) Progress {
	final := make(map[string]CourseStatus)
	for _, r := range sortedByTerm(records) {
		status := ClassifyStatus(r)
		if !status.IsTerminal() {
			continue
		}
		if final[r.CourseCode] == StatusApproved {
			continue
		}
		final[r.CourseCode] = status
	}

	var sum Summary
	for _, course := range curriculum {
		sum.CoursesTotal++
		sum.CreditsTotal += course.Credits
		switch final[course.Code] {
		case StatusApproved:
			sum.CoursesApproved++
			sum.CreditsApproved += course.Credits
		case StatusFailed:
			sum.CoursesFailed++
		}
	}
	sum.CareerPercent = careerPercent(sum.CreditsApproved, sum.CreditsTotal)
	sum.Standing = EvaluateStanding(records)

	return Progress{CourseStatus: final, Summary: sum}
}

// careerPercent is the share of curriculum credits approved, rounded.
func careerPercent(approved, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(approved) / float64(total) * 100))
}
