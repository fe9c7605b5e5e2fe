package student

import (
	"regexp"
	"strings"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

var rutPattern = regexp.MustCompile(`(?i)^\d{7,8}-?[\dk]$`)

// ValidateRut checks the shape of a RUT such as "12345678-9" or "1234567K".
// The check digit itself is not verified; the university owns that rule.
func ValidateRut(rut string) error {
	if !rutPattern.MatchString(strings.TrimSpace(rut)) {
		return shared.ErrInvalidRut
	}
	return nil
}

// NormalizeRut trims the RUT and upper-cases a "k" check digit.
func NormalizeRut(rut string) string {
	return strings.ToUpper(strings.TrimSpace(rut))
}

// RutFromEmail returns the local part of email when it already has the
// shape of a RUT, as some institutional accounts do.
func RutFromEmail(email string) (string, bool) {
	local, _, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || ValidateRut(local) != nil {
		return "", false
	}
	return NormalizeRut(local), true
}

// Career is one program the student is enrolled in.
type Career struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Catalog string `json:"catalog"`
}

// CatalogRef returns the career's curriculum catalog.
func (c Career) CatalogRef() academic.CatalogRef {
	return academic.CatalogRef{Program: c.Code, Catalog: c.Catalog}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the identity returned by a successful login.
type Student struct {
	Rut     string   `json:"rut"`
	Email   string   `json:"email,omitempty"`
	Careers []Career `json:"careers"`
}

// Career returns the career with program code.
func (s *Student) Career(code string) (Career, bool) {
	for _, c := range s.Careers {
		if c.Code == code {
			return c, true
		}
	}
	return Career{}, false
}

// EnrolledIn reports whether the student belongs to program code.
func (s *Student) EnrolledIn(code string) bool {
	_, ok := s.Career(code)
	return ok
}
