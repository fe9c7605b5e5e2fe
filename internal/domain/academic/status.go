package academic

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CourseStatus is the outcome of a single attempt or of a course overall.
type CourseStatus string

const (
	StatusApproved   CourseStatus = "approved"
	StatusFailed     CourseStatus = "failed"
	StatusInProgress CourseStatus = "in_progress"
	StatusPending    CourseStatus = "pending"
)

// PassingGrade is the lowest grade on the Chilean 1.0–7.0 scale that approves a course.
const PassingGrade = 4.0

// Status text markers, matched as substrings of the upper-cased, accent-free text.
const (
	markerApproved   = "APROB"
	markerFailed     = "REPRO"
	markerInProgress = "CURSANDO"
	markerEnrolled   = "INSCRIT"
)

// IsTerminal reports whether the status is final for an attempt.
func (s CourseStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusFailed
}

// ClassifyStatus maps an attempt to a status. A finite grade decides on its
// own; otherwise the status text is inspected.
func ClassifyStatus(r CourseAttemptRecord) CourseStatus {
	if r.Grade != nil && !math.IsNaN(*r.Grade) && !math.IsInf(*r.Grade, 0) {
		if *r.Grade >= PassingGrade {
			return StatusApproved
		}
		return StatusFailed
	}
	return ClassifyText(r.StatusText)
}

// ClassifyText maps a free-form status text to a status. Matching is
// case-insensitive, ignores diacritics, and checks the approval marker first.
func ClassifyText(text string) CourseStatus {
	t := normalizeStatusText(text)
	switch {
	case strings.Contains(t, markerApproved):
		return StatusApproved
	case strings.Contains(t, markerFailed):
		return StatusFailed
	case strings.Contains(t, markerInProgress), strings.Contains(t, markerEnrolled):
		return StatusInProgress
	default:
		return StatusPending
	}
}

// IsApprovedText reports whether the status text carries the approval marker.
// Availability uses this rule, never the grade.
func IsApprovedText(text string) bool {
	return strings.Contains(normalizeStatusText(text), markerApproved)
}

// IsFailedText reports whether the status text classifies as failed.
func IsFailedText(text string) bool {
	return ClassifyText(text) == StatusFailed
}

func normalizeStatusText(text string) string {
	// transform.Chain keeps internal state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToUpper(strings.TrimSpace(folded))
}
