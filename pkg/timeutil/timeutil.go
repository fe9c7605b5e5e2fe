// Package timeutil provides timezone and academic-period helpers.
// The university runs on Chilean time and encodes terms as numeric period
// codes ("202410" is the first term of 2024).
package timeutil

import (
	"fmt"
	"strconv"
	"time"
	_ "time/tzdata"
)

// SantiagoTZ is the America/Santiago timezone. Chile observes DST, so a fixed
// offset is only used when the tz database is unavailable.
var SantiagoTZ = loadSantiago()

func loadSantiago() *time.Location {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		return time.FixedZone("America/Santiago", -4*60*60)
	}
	return loc
}

// Now returns the current time in Santiago.
func Now() time.Time {
	return time.Now().In(SantiagoTZ)
}

// ToSantiago converts a time to the Santiago timezone.
func ToSantiago(t time.Time) time.Time {
	return t.In(SantiagoTZ)
}

// Common date/time formats.
const (
	FormatDate     = "2006-01-02"
	FormatDateTime = "2006-01-02 15:04"
	FormatChilean  = "02-01-2006"
)

// FormatDateTimeStr formats a time as datetime string in Santiago.
func FormatDateTimeStr(t time.Time) string {
	return ToSantiago(t).Format(FormatDateTime)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC PERIODS
// ══════════════════════════════════════════════════════════════════════════════

// Period is a parsed academic period code.
type Period struct {
	Code string
	Year int
	Term int
}

// Display renders the period as "YYYY-T".
func (p Period) Display() string {
	return fmt.Sprintf("%d-%d", p.Year, p.Term)
}

// ParsePeriod parses a code such as "202410" into year 2024, term 1.
// Only the first five characters are significant.
func ParsePeriod(code string) (Period, error) {
	if len(code) < 5 {
		return Period{}, fmt.Errorf("timeutil: period %q too short", code)
	}
	year, err := strconv.Atoi(code[:4])
	if err != nil {
		return Period{}, fmt.Errorf("timeutil: period %q: invalid year: %w", code, err)
	}
	term, err := strconv.Atoi(code[4:5])
	if err != nil {
		return Period{}, fmt.Errorf("timeutil: period %q: invalid term: %w", code, err)
	}
	return Period{Code: code, Year: year, Term: term}, nil
}

// DisplayPeriod returns the "YYYY-T" form of code, or the code itself when it
// cannot be parsed.
func DisplayPeriod(code string) string {
	p, err := ParsePeriod(code)
	if err != nil {
		return code
	}
	return p.Display()
}

// CurrentPeriod returns the period code for t: first term runs March to July,
// second term August to February of the following year.
func CurrentPeriod(t time.Time) Period {
	local := ToSantiago(t)
	year, term := local.Year(), 1
	switch {
	case local.Month() >= time.August:
		term = 2
	case local.Month() < time.March:
		year--
		term = 2
	}
	return Period{Code: fmt.Sprintf("%d%d0", year, term), Year: year, Term: term}
}

// Next returns the period that follows p.
func (p Period) Next() Period {
	if p.Term >= 2 {
		return Period{Code: fmt.Sprintf("%d10", p.Year+1), Year: p.Year + 1, Term: 1}
	}
	return Period{Code: fmt.Sprintf("%d20", p.Year), Year: p.Year, Term: 2}
}
