package ucn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOOSE SCALARS
// ══════════════════════════════════════════════════════════════════════════════

// FlexNumber accepts a JSON number, a numeric string ("5,5" included) or null.
// Anything else decodes to no value instead of failing the whole payload.
type FlexNumber struct {
	Value *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexNumber) UnmarshalJSON(b []byte) error {
	f.Value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		f.Value = academic.ParseGrade(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		f.Value = &v
	}
	return nil
}

// Int returns the value truncated to an int.
func (f FlexNumber) Int() (int, bool) {
	if f.Value == nil || math.IsNaN(*f.Value) || math.IsInf(*f.Value, 0) {
		return 0, false
	}
	return int(*f.Value), true
}

// FlexString accepts a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(strings.TrimSpace(string(b)))
	return nil
}

func (s FlexString) String() string { return strings.TrimSpace(string(s)) }

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN
// ══════════════════════════════════════════════════════════════════════════════

// LoginResponseDTO is the login.php payload.
type LoginResponseDTO struct {
	Rut      FlexString  `json:"rut"`
	Carreras []CareerDTO `json:"carreras"`
	Error    string      `json:"error,omitempty"`
}

// CareerDTO is one career in the login payload.
type CareerDTO struct {
	Codigo   FlexString `json:"codigo"`
	Nombre   string     `json:"nombre"`
	Catalogo FlexString `json:"catalogo"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY (avance.php)
// ══════════════════════════════════════════════════════════════════════════════

// AttemptDTO is one row of avance.php.
type AttemptDTO struct {
	NRC     FlexString `json:"nrc"`
	Period  FlexString `json:"period"`
	Student FlexString `json:"student"`
	Course  FlexString `json:"course"`
	Status  string     `json:"status"`

	// Some deployments include the final grade under either key.
	Nota  FlexNumber `json:"nota"`
	Grade FlexNumber `json:"grade"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM (hawaii/api/mallas)
// ══════════════════════════════════════════════════════════════════════════════

// CurriculumCourseDTO is one course of a curriculum catalog. Names and credits
// arrive under different keys depending on the catalog generation.
type CurriculumCourseDTO struct {
	Codigo     FlexString `json:"codigo"`
	Asignatura string     `json:"asignatura"`
	Nombre     string     `json:"nombre"`
	Materia    string     `json:"materia"`
	Creditos   FlexNumber `json:"creditos"`
	SCT        FlexNumber `json:"sct"`
	Credits    FlexNumber `json:"credits"`
	Nivel      FlexNumber `json:"nivel"`
	Semestre   FlexNumber `json:"semestre"`
	Prereq     string     `json:"prereq"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLED COURSES (hawaii/api/estudiante/{rut}/ramos)
// ══════════════════════════════════════════════════════════════════════════════

// EnrolledCourseDTO is one course from the student's course list.
type EnrolledCourseDTO struct {
	ID         FlexString `json:"id"`
	Codigo     FlexString `json:"codigo"`
	Sigla      string     `json:"sigla"`
	Nombre     string     `json:"nombre"`
	Asignatura string     `json:"asignatura"`
	Materia    string     `json:"materia"`
	Creditos   FlexNumber `json:"creditos"`
	SCT        FlexNumber `json:"sct"`
	Credits    FlexNumber `json:"credits"`
	Semestre   FlexNumber `json:"semestre"`
	Nivel      FlexNumber `json:"nivel"`
	Period     FlexString `json:"period"`
	Estado     string     `json:"estado"`
	Situacion  string     `json:"situacion"`
	Status     string     `json:"status"`
	Profesor   string     `json:"profesor"`
	Docente    string     `json:"docente"`
	Teacher    string     `json:"teacher"`
	Seccion    FlexString `json:"seccion"`
	Grupo      FlexString `json:"grupo"`
	Section    FlexString `json:"section"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// errorPayloadDTO is the object some endpoints return instead of an array.
type errorPayloadDTO struct {
	Error string `json:"error"`
}

// APIError is a non-success HTTP response from the university.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("ucn api: status %d: %s", e.StatusCode, body)
}

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("ucn api: rate limited, retry after %s", e.RetryAfter)
}
