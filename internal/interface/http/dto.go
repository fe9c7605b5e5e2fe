package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"notblank"`
}

// PlanRequest carries a client-held plan. Program and catalog default to
// the session's first career.
type PlanRequest struct {
	Program   string                       `json:"program,omitempty" validate:"omitempty,max=16"`
	Catalog   string                       `json:"catalog,omitempty" validate:"omitempty,max=16"`
	Semesters []academic.ProjectedSemester `json:"semesters" validate:"max=20,dive"`
}

// EditPlanRequest is the body of POST /api/v1/planner/{action}.
type EditPlanRequest struct {
	PlanRequest
	Semester int    `json:"semester,omitempty" validate:"gte=0"`
	Course   string `json:"course,omitempty" validate:"omitempty,max=16"`
}

// SaveProjectionRequest is the body of POST /api/v1/projections.
type SaveProjectionRequest struct {
	PlanRequest
	Name string `json:"name" validate:"notblank,max=120"`
}

// UpdateProjectionRequest is the body of PUT /api/v1/projections/{id}.
// Omitted fields are left unchanged.
type UpdateProjectionRequest struct {
	Name      *string                      `json:"name,omitempty" validate:"omitempty,notblank,max=120"`
	Semesters []academic.ProjectedSemester `json:"semesters,omitempty" validate:"omitempty,max=20,dive"`
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

const notBlankTag = "notblank"

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// decode reads a JSON body into dst and validates it. An empty body decodes
// to the zero value.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return shared.NewDomainError("http", "Decode", shared.ErrInvalidInput, "request body too large")
		}
		return shared.WrapError("http", "Decode", shared.ErrInvalidInput,
			"malformed JSON body", err)
	}
	return s.validate.Struct(dst)
}
