package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ListProjectionsQuery lists a student's plans for one program.
type ListProjectionsQuery struct {
	Rut     string
	Program string
}

// ListProjectionsHandler handles ListProjectionsQuery.
type ListProjectionsHandler struct {
	repo projection.Repository
}

// NewListProjectionsHandler creates a new ListProjectionsHandler.
func NewListProjectionsHandler(repo projection.Repository) *ListProjectionsHandler {
	return &ListProjectionsHandler{repo: repo}
}

// Handle returns the plans, most recently updated first.
func (h *ListProjectionsHandler) Handle(ctx context.Context, q ListProjectionsQuery) ([]*projection.Plan, error) {
	if strings.TrimSpace(q.Program) == "" {
		return nil, shared.NewDomainError("projection", "List", shared.ErrEmptyValue, "program is required")
	}
	plans, err := h.repo.List(ctx, student.NormalizeRut(q.Rut), strings.TrimSpace(q.Program))
	if err != nil {
		return nil, fmt.Errorf("list_projections: %w", err)
	}
	return plans, nil
}

// GetProjectionQuery fetches one plan of the student.
type GetProjectionQuery struct {
	Rut string
	ID  string
}

// GetProjectionHandler handles GetProjectionQuery.
type GetProjectionHandler struct {
	repo projection.Repository
}

// NewGetProjectionHandler creates a new GetProjectionHandler.
func NewGetProjectionHandler(repo projection.Repository) *GetProjectionHandler {
	return &GetProjectionHandler{repo: repo}
}

// Handle returns the plan. A plan of another student is reported as not
// found.
func (h *GetProjectionHandler) Handle(ctx context.Context, q GetProjectionQuery) (*projection.Plan, error) {
	return GetOwnedPlan(ctx, h.repo, q.Rut, q.ID)
}

// GetOwnedPlan loads plan id and checks it belongs to rut.
func GetOwnedPlan(ctx context.Context, repo projection.Repository, rut, id string) (*projection.Plan, error) {
	if err := projection.ValidateID(id); err != nil {
		return nil, err
	}
	plan, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.OwnedBy(student.NormalizeRut(rut)) {
		return nil, shared.ErrProjectionNotFound
	}
	return plan, nil
}
