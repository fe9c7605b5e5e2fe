package academic

import (
	"fmt"
	"slices"
)

// Credit bounds for a projected semester.
const (
	MinCredits      = 12
	MaxCredits      = 30
	AlertMaxCredits = 15
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTED SEMESTERS
// ══════════════════════════════════════════════════════════════════════════════

// ProjectedSemester is one future semester in a projection plan.
type ProjectedSemester struct {
	Number       int                `json:"number"`
	Courses      []CurriculumCourse `json:"courses"`
	TotalCredits int                `json:"totalCredits"`
}

// Credits recomputes the semester's credit sum from its courses.
func (s ProjectedSemester) Credits() int {
	total := 0
	for _, c := range s.Courses {
		total += c.Credits
	}
	return total
}

// IsEmpty reports whether the semester has no courses.
func (s ProjectedSemester) IsEmpty() bool {
	return len(s.Courses) == 0
}

// HasCourse reports whether code is placed in the semester.
func (s ProjectedSemester) HasCourse(code string) bool {
	return slices.ContainsFunc(s.Courses, func(c CurriculumCourse) bool { return c.Code == code })
}

func (s ProjectedSemester) clone() ProjectedSemester {
	s.Courses = slices.Clone(s.Courses)
	return s
}

// SemesterState is the validator state of a semester.
type SemesterState string

const (
	SemesterEmpty   SemesterState = "empty"
	SemesterValid   SemesterState = "valid"
	SemesterInvalid SemesterState = "invalid"
)

// Violation names the bound a plan mutation broke.
type Violation string

const (
	ViolationMaxCredits      Violation = "max"
	ViolationMinCredits      Violation = "min"
	ViolationEmptyLast       Violation = "empty_last"
	ViolationUnavailable     Violation = "unavailable"
	ViolationUnknownSemester Violation = "unknown_semester"
	ViolationDuplicate       Violation = "duplicate"
)

// Validation is the outcome of validating one semester.
type Validation struct {
	State      SemesterState `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	Violation  Violation     `json:"violation,omitempty"`
	Credits    int           `json:"credits"`
	MaxCredits int           `json:"maxCredits"`
}

// Valid reports whether the semester is valid or empty.
func (v Validation) Valid() bool { return v.State != SemesterInvalid }

// ValidateSemester checks the semester's credits against maxCredits and the
// minimum. An empty semester is never invalid.
func ValidateSemester(s ProjectedSemester, maxCredits int) Validation {
	credits := s.Credits()
	v := Validation{State: SemesterValid, Credits: credits, MaxCredits: maxCredits}

	switch {
	case s.IsEmpty():
		v.State = SemesterEmpty
	case credits > maxCredits:
		v.State = SemesterInvalid
		v.Violation = ViolationMaxCredits
		v.Reason = fmt.Sprintf("El semestre excede el máximo de %d créditos (tiene %d créditos)", maxCredits, credits)
	case credits < MinCredits:
		v.State = SemesterInvalid
		v.Violation = ViolationMinCredits
		v.Reason = fmt.Sprintf("El semestre debe tener mínimo %d créditos (tiene %d créditos)", MinCredits, credits)
	}
	return v
}

// MaxCreditsFor returns the credit ceiling of the semester at index. An index
// equal to len(semesters) asks for the ceiling of the next semester to append.
//
// Under academic alert the ceiling is AlertMaxCredits until some earlier
// semester is non-empty and valid; after that it is MaxCredits.
func MaxCreditsFor(semesters []ProjectedSemester, index int, standing Standing) int {
	if standing != StandingAlert {
		return MaxCredits
	}
	ceiling := AlertMaxCredits
	for i := 0; i < index && i < len(semesters); i++ {
		s := semesters[i]
		if !s.IsEmpty() && ValidateSemester(s, ceiling).Valid() {
			return MaxCredits
		}
	}
	return ceiling
}

// Decision answers whether a plan may grow by one semester.
type Decision struct {
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	Violation  Violation `json:"violation,omitempty"`
	MaxCredits int       `json:"maxCredits"`
}

const reasonEmptyLast = "Debe agregar asignaturas al semestre actual antes de crear uno nuevo"

// CanAppendSemester reports whether a new semester may be appended. The last
// semester must be non-empty and valid first.
func CanAppendSemester(semesters []ProjectedSemester, records []CourseAttemptRecord) Decision {
	return canAppend(semesters, EvaluateStanding(records))
}

func canAppend(semesters []ProjectedSemester, standing Standing) Decision {
	if len(semesters) == 0 {
		return Decision{Allowed: true, MaxCredits: MaxCreditsFor(semesters, 0, standing)}
	}
	lastIdx := len(semesters) - 1
	last := semesters[lastIdx]
	maxLast := MaxCreditsFor(semesters, lastIdx, standing)

	if last.IsEmpty() {
		return Decision{Reason: reasonEmptyLast, Violation: ViolationEmptyLast, MaxCredits: maxLast}
	}
	if v := ValidateSemester(last, maxLast); !v.Valid() {
		return Decision{Reason: v.Reason, Violation: v.Violation, MaxCredits: maxLast}
	}
	return Decision{Allowed: true, MaxCredits: MaxCreditsFor(semesters, len(semesters), standing)}
}

// ══════════════════════════════════════════════════════════════════════════════
// PLANNER
// ══════════════════════════════════════════════════════════════════════════════

// Rejection explains why a plan mutation was refused. The plan it was
// applied to is left unchanged.
type Rejection struct {
	Reason     string    `json:"reason"`
	Violation  Violation `json:"violation"`
	Semester   int       `json:"semester,omitempty"`
	MaxCredits int       `json:"maxCredits,omitempty"`
	Credits    int       `json:"credits,omitempty"`
}

func (r *Rejection) Error() string { return r.Reason }

// Planner is an immutable projection plan bound to a student's history and
// curriculum. Every mutation returns a new Planner or a Rejection.
type Planner struct {
	curriculum Curriculum
	index      map[string]CurriculumCourse
	records    []CourseAttemptRecord
	standing   Standing
	semesters  []ProjectedSemester
}

// NewPlanner builds a planner over semesters. Semesters are renumbered 1..N,
// their courses are refreshed from the curriculum when known, and totals are
// recomputed.
func NewPlanner(curriculum []CurriculumCourse, records []CourseAttemptRecord, semesters []ProjectedSemester) *Planner {
	p := &Planner{
		curriculum: Curriculum(curriculum),
		index:      Curriculum(curriculum).Index(),
		records:    records,
		standing:   EvaluateStanding(records),
	}
	out := make([]ProjectedSemester, len(semesters))
	for i, s := range semesters {
		s = s.clone()
		for j, c := range s.Courses {
			if known, ok := p.index[c.Code]; ok {
				s.Courses[j] = known
			}
		}
		out[i] = s
	}
	p.semesters = renumber(out)
	return p
}

func (p *Planner) with(semesters []ProjectedSemester) *Planner {
	cp := *p
	cp.semesters = renumber(semesters)
	return &cp
}

func renumber(semesters []ProjectedSemester) []ProjectedSemester {
	for i := range semesters {
		semesters[i].Number = i + 1
		semesters[i].TotalCredits = semesters[i].Credits()
	}
	return semesters
}

func (p *Planner) cloneSemesters() []ProjectedSemester {
	out := make([]ProjectedSemester, len(p.semesters))
	for i, s := range p.semesters {
		out[i] = s.clone()
	}
	return out
}

// Semesters returns a copy of the plan's semesters.
func (p *Planner) Semesters() []ProjectedSemester { return p.cloneSemesters() }

// Standing returns the standing derived from the attempt history.
func (p *Planner) Standing() Standing { return p.standing }

// MaxCredits returns the ceiling of semester number (1-based). Passing
// len+1 asks for the ceiling of the next semester.
func (p *Planner) MaxCredits(number int) int {
	return MaxCreditsFor(p.semesters, number-1, p.standing)
}

// Available lists the courses that may still be added anywhere in the plan.
func (p *Planner) Available() []CurriculumCourse {
	return ComputeAvailableCourses(p.curriculum, p.records, p.semesters)
}

// Validate reports the validator state of every semester.
func (p *Planner) Validate() []Validation {
	out := make([]Validation, len(p.semesters))
	for i, s := range p.semesters {
		out[i] = ValidateSemester(s, MaxCreditsFor(p.semesters, i, p.standing))
	}
	return out
}

// CanAppend reports whether a semester may be appended.
func (p *Planner) CanAppend() Decision { return canAppend(p.semesters, p.standing) }

// Check returns the first problem that prevents the plan from being saved:
// a course placed twice, an approved course, a course whose prerequisites
// are neither approved nor projected, or a non-empty semester outside its
// credit bounds.
func (p *Planner) Check() *Rejection {
	seen := make(map[string]int)
	for _, s := range p.semesters {
		for _, c := range s.Courses {
			if first, dup := seen[c.Code]; dup {
				return &Rejection{
					Reason:    fmt.Sprintf("La asignatura %s está proyectada en los semestres %d y %d", c.Code, first, s.Number),
					Violation: ViolationDuplicate,
					Semester:  s.Number,
				}
			}
			seen[c.Code] = s.Number
		}
	}

	approved := ApprovedCodes(p.records)
	for _, s := range p.semesters {
		for _, c := range s.Courses {
			if _, ok := approved[c.Code]; ok {
				return &Rejection{
					Reason:    fmt.Sprintf("La asignatura %s ya está aprobada", c.Code),
					Violation: ViolationUnavailable,
					Semester:  s.Number,
				}
			}
			for _, pre := range c.Prerequisites {
				_, isApproved := approved[pre]
				_, isProjected := seen[pre]
				if !isApproved && !isProjected {
					return &Rejection{
						Reason:    fmt.Sprintf("La asignatura %s requiere %s, que no está aprobada ni proyectada", c.Code, pre),
						Violation: ViolationUnavailable,
						Semester:  s.Number,
					}
				}
			}
		}
	}

	for i, v := range p.Validate() {
		if !v.Valid() {
			return &Rejection{
				Reason:     v.Reason,
				Violation:  v.Violation,
				Semester:   i + 1,
				MaxCredits: v.MaxCredits,
				Credits:    v.Credits,
			}
		}
	}
	return nil
}

// AppendSemester adds an empty semester at the end.
func (p *Planner) AppendSemester() (*Planner, *Rejection) {
	d := p.CanAppend()
	if !d.Allowed {
		last := len(p.semesters)
		return nil, &Rejection{
			Reason:     d.Reason,
			Violation:  d.Violation,
			Semester:   last,
			MaxCredits: d.MaxCredits,
			Credits:    p.semesters[last-1].Credits(),
		}
	}
	next := append(p.cloneSemesters(), ProjectedSemester{Courses: []CurriculumCourse{}})
	return p.with(next), nil
}

// DeleteSemester removes semester number and renumbers the rest.
func (p *Planner) DeleteSemester(number int) (*Planner, *Rejection) {
	if rej := p.checkNumber(number); rej != nil {
		return nil, rej
	}
	next := slices.Delete(p.cloneSemesters(), number-1, number)
	return p.with(next), nil
}

// AddCourse places the curriculum course code in semester number. The course
// must be available and the semester must stay within its credit ceiling.
func (p *Planner) AddCourse(number int, code string) (*Planner, *Rejection) {
	if rej := p.checkNumber(number); rej != nil {
		return nil, rej
	}

	var course CurriculumCourse
	found := false
	for _, c := range p.Available() {
		if c.Code == code {
			course, found = c, true
			break
		}
	}
	if !found {
		return nil, &Rejection{
			Reason:    fmt.Sprintf("La asignatura %s no está disponible para proyectar", code),
			Violation: ViolationUnavailable,
			Semester:  number,
		}
	}

	target := p.semesters[number-1]
	maxCredits := p.MaxCredits(number)
	credits := target.Credits() + course.Credits
	if credits > maxCredits {
		return nil, &Rejection{
			Reason:     fmt.Sprintf("El semestre excede el máximo de %d créditos (tiene %d créditos)", maxCredits, credits),
			Violation:  ViolationMaxCredits,
			Semester:   number,
			MaxCredits: maxCredits,
			Credits:    credits,
		}
	}

	next := p.cloneSemesters()
	next[number-1].Courses = append(next[number-1].Courses, course)
	return p.with(next), nil
}

// RemoveCourse takes code out of semester number.
func (p *Planner) RemoveCourse(number int, code string) (*Planner, *Rejection) {
	if rej := p.checkNumber(number); rej != nil {
		return nil, rej
	}
	if !p.semesters[number-1].HasCourse(code) {
		return nil, &Rejection{
			Reason:    fmt.Sprintf("La asignatura %s no está en el semestre %d", code, number),
			Violation: ViolationUnavailable,
			Semester:  number,
		}
	}
	next := p.cloneSemesters()
	next[number-1].Courses = slices.DeleteFunc(next[number-1].Courses, func(c CurriculumCourse) bool {
		return c.Code == code
	})
	return p.with(next), nil
}

func (p *Planner) checkNumber(number int) *Rejection {
	if number < 1 || number > len(p.semesters) {
		return &Rejection{
			Reason:    fmt.Sprintf("El semestre %d no existe", number),
			Violation: ViolationUnknownSemester,
			Semester:  number,
		}
	}
	return nil
}
