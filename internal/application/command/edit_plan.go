package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/malla-ucn/malla-estudiante/internal/application/query"
	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT PLAN COMMAND
// Applies one planner mutation to a submitted plan. Nothing is stored; the
// client keeps the plan and saves it explicitly.
// ══════════════════════════════════════════════════════════════════════════════

// PlanAction is a planner mutation.
type PlanAction string

const (
	ActionAppend       PlanAction = "append"
	ActionDelete       PlanAction = "delete"
	ActionAddCourse    PlanAction = "add-course"
	ActionRemoveCourse PlanAction = "remove-course"
)

// ParsePlanAction parses an action name.
func ParsePlanAction(s string) (PlanAction, error) {
	switch a := PlanAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAppend, ActionDelete, ActionAddCourse, ActionRemoveCourse:
		return a, nil
	}
	return "", shared.NewDomainError("planner", "Edit", shared.ErrInvalidInput, fmt.Sprintf("unknown planner action %q", s))
}

// EditPlanCommand contains the plan and the mutation to apply.
type EditPlanCommand struct {
	query.Target
	Action    PlanAction
	Semester  int    // 1-based; ignored by append
	Course    string // add-course and remove-course
	Semesters []academic.ProjectedSemester
}

// Validate validates the command.
func (c EditPlanCommand) Validate() error {
	switch c.Action {
	case ActionAppend:
	case ActionDelete:
		if c.Semester < 1 {
			return shared.NewDomainError("planner", "Edit", shared.ErrInvalidInput, "semester is required")
		}
	case ActionAddCourse, ActionRemoveCourse:
		if c.Semester < 1 || strings.TrimSpace(c.Course) == "" {
			return shared.NewDomainError("planner", "Edit", shared.ErrInvalidInput, "semester and course are required")
		}
	default:
		_, err := ParsePlanAction(string(c.Action))
		return err
	}
	return nil
}

// EditPlanHandler handles EditPlanCommand.
type EditPlanHandler struct {
	loader *query.AcademicLoader
}

// NewEditPlanHandler creates a new EditPlanHandler.
func NewEditPlanHandler(loader *query.AcademicLoader) *EditPlanHandler {
	return &EditPlanHandler{loader: loader}
}

// Handle applies the mutation. A rejected mutation is a validation error
// carrying the academic.Rejection; the submitted plan is not modified.
func (h *EditPlanHandler) Handle(ctx context.Context, cmd EditPlanCommand) (*query.PlanStateDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	data, err := h.loader.Load(ctx, cmd.Target)
	if err != nil {
		return nil, fmt.Errorf("edit_plan: %w", err)
	}

	planner := academic.NewPlanner(data.Curriculum, data.Records, cmd.Semesters)
	var (
		next *academic.Planner
		rej  *academic.Rejection
	)
	switch cmd.Action {
	case ActionAppend:
		next, rej = planner.AppendSemester()
	case ActionDelete:
		next, rej = planner.DeleteSemester(cmd.Semester)
	case ActionAddCourse:
		next, rej = planner.AddCourse(cmd.Semester, strings.TrimSpace(cmd.Course))
	case ActionRemoveCourse:
		next, rej = planner.RemoveCourse(cmd.Semester, strings.TrimSpace(cmd.Course))
	}
	if rej != nil {
		return nil, RejectionError("Edit", rej)
	}
	return query.PlanState(next), nil
}
