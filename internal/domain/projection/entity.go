// Package projection holds saved semester plans ("proyecciones").
package projection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// MaxNameLength bounds a plan name.
const MaxNameLength = 120

// Plan is a named projection saved by a student for one program.
type Plan struct {
	ID          string                       `json:"id"`
	Rut         string                       `json:"rut"`
	ProgramCode string                       `json:"programCode"`
	CatalogCode string                       `json:"catalogCode,omitempty"`
	Name        string                       `json:"name"`
	Semesters   []academic.ProjectedSemester `json:"semesters"`
	CreatedAt   time.Time                    `json:"createdAt"`
	UpdatedAt   time.Time                    `json:"updatedAt"`
}

// NewPlan creates a plan with a fresh ID. Semesters are renumbered and their
// totals recomputed.
func NewPlan(rut, program, catalog, name string, semesters []academic.ProjectedSemester, now time.Time) (*Plan, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rut) == "" || strings.TrimSpace(program) == "" {
		return nil, shared.NewDomainError("projection", "New", shared.ErrEmptyValue, "rut and program are required")
	}
	return &Plan{
		ID:          uuid.NewString(),
		Rut:         rut,
		ProgramCode: program,
		CatalogCode: catalog,
		Name:        name,
		Semesters:   Normalize(semesters),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Key is the natural key a plan is unique under.
type Key struct {
	Rut         string
	ProgramCode string
	Name        string
}

// Key returns the plan's natural key.
func (p *Plan) Key() Key {
	return Key{Rut: p.Rut, ProgramCode: p.ProgramCode, Name: p.Name}
}

// OwnedBy reports whether the plan belongs to rut.
func (p *Plan) OwnedBy(rut string) bool {
	return p.Rut == rut
}

// Rename changes the plan name.
func (p *Plan) Rename(name string, now time.Time) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	p.Name = name
	p.UpdatedAt = now
	return nil
}

// Replace swaps the plan's semesters.
func (p *Plan) Replace(semesters []academic.ProjectedSemester, now time.Time) {
	p.Semesters = Normalize(semesters)
	p.UpdatedAt = now
}

// TotalCredits sums all projected credits.
func (p *Plan) TotalCredits() int {
	total := 0
	for _, s := range p.Semesters {
		total += s.TotalCredits
	}
	return total
}

// NormalizeName trims a plan name and checks its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.ErrProjectionName
	}
	if len([]rune(name)) > MaxNameLength {
		return "", shared.NewDomainError("projection", "Validate", shared.ErrInvalidInput, "projection name is too long")
	}
	return name, nil
}

// Normalize renumbers semesters 1..N and recomputes their totals. Nil course
// lists become empty ones so the stored JSON is stable.
func Normalize(semesters []academic.ProjectedSemester) []academic.ProjectedSemester {
	out := make([]academic.ProjectedSemester, len(semesters))
	for i, s := range semesters {
		if s.Courses == nil {
			s.Courses = []academic.CurriculumCourse{}
		}
		s.Number = i + 1
		s.TotalCredits = s.Credits()
		out[i] = s
	}
	return out
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrInvalidProjectionID
	}
	return nil
}

// EncodeSemesters serializes semesters for storage.
func EncodeSemesters(semesters []academic.ProjectedSemester) ([]byte, error) {
	data, err := json.Marshal(Normalize(semesters))
	if err != nil {
		return nil, fmt.Errorf("encode semesters: %w", err)
	}
	return data, nil
}

// DecodeSemesters parses stored semesters. Empty input is an empty plan.
func DecodeSemesters(data []byte) ([]academic.ProjectedSemester, error) {
	if len(data) == 0 {
		return []academic.ProjectedSemester{}, nil
	}
	var semesters []academic.ProjectedSemester
	if err := json.Unmarshal(data, &semesters); err != nil {
		return nil, fmt.Errorf("decode semesters: %w", err)
	}
	return Normalize(semesters), nil
}
