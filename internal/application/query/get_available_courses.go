package query

import (
	"context"
	"fmt"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET AVAILABLE COURSES QUERY
// Evaluates a submitted plan: which courses can still be projected, the
// state of every semester and whether a new semester may be appended.
// ══════════════════════════════════════════════════════════════════════════════

// GetAvailableCoursesQuery contains the plan to evaluate.
type GetAvailableCoursesQuery struct {
	Target
	Semesters []academic.ProjectedSemester
}

// PlanStateDTO describes a plan as the planner sees it.
type PlanStateDTO struct {
	Semesters   []academic.ProjectedSemester `json:"semesters"`
	Validations []academic.Validation        `json:"validations"`
	Available   []academic.CurriculumCourse  `json:"available"`
	CanAppend   academic.Decision            `json:"canAppend"`
	Standing    academic.Standing            `json:"standing"`
}

// PlanState renders the state of p.
func PlanState(p *academic.Planner) *PlanStateDTO {
	return &PlanStateDTO{
		Semesters:   p.Semesters(),
		Validations: p.Validate(),
		Available:   p.Available(),
		CanAppend:   p.CanAppend(),
		Standing:    p.Standing(),
	}
}

// GetAvailableCoursesHandler handles GetAvailableCoursesQuery.
type GetAvailableCoursesHandler struct {
	loader *AcademicLoader
}

// NewGetAvailableCoursesHandler creates a new GetAvailableCoursesHandler.
func NewGetAvailableCoursesHandler(loader *AcademicLoader) *GetAvailableCoursesHandler {
	return &GetAvailableCoursesHandler{loader: loader}
}

// Handle executes the query.
func (h *GetAvailableCoursesHandler) Handle(ctx context.Context, q GetAvailableCoursesQuery) (*PlanStateDTO, error) {
	data, err := h.loader.Load(ctx, q.Target)
	if err != nil {
		return nil, fmt.Errorf("get_available_courses: %w", err)
	}
	return PlanState(academic.NewPlanner(data.Curriculum, data.Records, q.Semesters)), nil
}
