package academic

// Standing is the student's academic situation.
type Standing string

const (
	StandingNormal Standing = "normal"
	StandingAlert  Standing = "academic_alert"
)

// Thresholds for academic alert.
const (
	alertRepeatFailures  = 3 // one course failed this many times
	alertSecondFailures  = 2 // courses failed for the second time in one term
	alertFailuresPerTerm = 2 // minimum failures in a term to consider the rule above
	secondFailureOrdinal = 2
)

// EvaluateStanding walks the history in term order and decides whether the
// student is under academic alert.
//
// Only records whose status text classifies as failed are considered. The
// student is under alert when any course reaches three failures, or when a
// single term holds at least two failures of which at least two are second
// failures of their course at that point in the walk.
func EvaluateStanding(records []CourseAttemptRecord) Standing {
	failures := make(map[string]int)
	// term -> running failure ordinal of each failure recorded in that term
	perTerm := make(map[string][]int)

	for _, r := range sortedByTerm(records) {
		if !IsFailedText(r.StatusText) {
			continue
		}
		failures[r.CourseCode]++
		n := failures[r.CourseCode]
		if n >= alertRepeatFailures {
			return StandingAlert
		}
		perTerm[r.TermCode] = append(perTerm[r.TermCode], n)
	}

	for _, ordinals := range perTerm {
		if len(ordinals) < alertFailuresPerTerm {
			continue
		}
		second := 0
		for _, n := range ordinals {
			if n == secondFailureOrdinal {
				second++
			}
		}
		if second >= alertSecondFailures {
			return StandingAlert
		}
	}

	return StandingNormal
}
