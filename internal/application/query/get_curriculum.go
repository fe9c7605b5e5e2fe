package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// GetCurriculumHandler proxies a curriculum catalog. A catalog the
// university does not know is an empty list.
type GetCurriculumHandler struct {
	source academic.CurriculumSource
}

// NewGetCurriculumHandler creates a new GetCurriculumHandler.
func NewGetCurriculumHandler(source academic.CurriculumSource) *GetCurriculumHandler {
	return &GetCurriculumHandler{source: source}
}

// Handle returns the courses of program-catalog in catalog order.
func (h *GetCurriculumHandler) Handle(ctx context.Context, program, catalog string) (academic.Curriculum, error) {
	ref := academic.CatalogRef{Program: strings.TrimSpace(program), Catalog: strings.TrimSpace(catalog)}
	if ref.Program == "" || ref.Catalog == "" {
		return nil, shared.NewDomainError("academic", "GetCurriculum", shared.ErrInvalidInput, "program and catalog are required")
	}
	courses, err := h.source.FetchCurriculum(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get_curriculum: %w", err)
	}
	if courses == nil {
		return academic.Curriculum{}, nil
	}
	return academic.Curriculum(courses), nil
}

// GetEnrolledCoursesHandler lists the courses the student takes this term.
type GetEnrolledCoursesHandler struct {
	source academic.EnrolledSource
}

// NewGetEnrolledCoursesHandler creates a new GetEnrolledCoursesHandler.
func NewGetEnrolledCoursesHandler(source academic.EnrolledSource) *GetEnrolledCoursesHandler {
	return &GetEnrolledCoursesHandler{source: source}
}

// EnrolledDTO is the student's current course list.
type EnrolledDTO struct {
	Courses []academic.EnrolledCourse `json:"courses"`
	Credits int                       `json:"credits"`
}

// Handle executes the query.
func (h *GetEnrolledCoursesHandler) Handle(ctx context.Context, rut string) (*EnrolledDTO, error) {
	courses, err := h.source.FetchEnrolledCourses(ctx, rut)
	if err != nil {
		return nil, fmt.Errorf("get_enrolled_courses: %w", err)
	}
	dto := &EnrolledDTO{Courses: courses}
	if dto.Courses == nil {
		dto.Courses = []academic.EnrolledCourse{}
	}
	for _, c := range dto.Courses {
		dto.Credits += c.Credits
	}
	return dto, nil
}
