package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/application/query"
	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION COMMANDS
// Save (upsert by name), update and delete of saved plans.
// ══════════════════════════════════════════════════════════════════════════════

// RejectionError wraps a planner rejection as a validation error that
// carries the rejection as its detail.
func RejectionError(op string, rej *academic.Rejection) error {
	return shared.NewDomainError("planner", op, shared.ErrValidation, rej.Reason).WithDetail(rej)
}

// SaveProjectionCommand saves a plan under a name.
type SaveProjectionCommand struct {
	query.Target
	Name      string
	Semesters []academic.ProjectedSemester
}

// SaveProjectionResult reports the stored plan.
type SaveProjectionResult struct {
	Plan    *projection.Plan `json:"plan"`
	Created bool             `json:"created"`
}

// ProjectionHandler handles the projection commands.
type ProjectionHandler struct {
	repo   projection.Repository
	loader *query.AcademicLoader
	flags  query.FeatureGate
	now    func() time.Time
	log    *slog.Logger
}

// NewProjectionHandler creates a new ProjectionHandler.
func NewProjectionHandler(
	repo projection.Repository,
	loader *query.AcademicLoader,
	flags query.FeatureGate,
	log *slog.Logger,
) *ProjectionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectionHandler{
		repo:   repo,
		loader: loader,
		flags:  flags,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With(logger.Component("projections")),
	}
}

// Save upserts the plan by (rut, program, name). Under strict save the plan
// is checked against the student's curriculum and history first.
func (h *ProjectionHandler) Save(ctx context.Context, cmd SaveProjectionCommand) (*SaveProjectionResult, error) {
	if err := cmd.Target.Validate(h.loader.DefaultCatalog()); err != nil {
		return nil, err
	}

	semesters, err := h.check(ctx, "Save", cmd.Target, cmd.Semesters)
	if err != nil {
		return nil, err
	}

	plan, err := projection.NewPlan(cmd.Rut, cmd.Program, cmd.Catalog, cmd.Name, semesters, h.now())
	if err != nil {
		return nil, err
	}
	saved, created, err := h.repo.Save(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("save_projection: %w", err)
	}

	h.log.InfoContext(ctx, "projection saved",
		logger.Rut(cmd.Rut),
		logger.Program(cmd.Program),
		slog.String("projection_id", saved.ID),
		slog.Bool("created", created),
	)
	return &SaveProjectionResult{Plan: saved, Created: created}, nil
}

// UpdateProjectionCommand changes the supplied fields of a plan.
// nil values mean "don't change".
type UpdateProjectionCommand struct {
	Rut       string
	ID        string
	Name      *string
	Semesters []academic.ProjectedSemester
}

// Update applies cmd to a plan owned by cmd.Rut.
func (h *ProjectionHandler) Update(ctx context.Context, cmd UpdateProjectionCommand) (*projection.Plan, error) {
	plan, err := query.GetOwnedPlan(ctx, h.repo, cmd.Rut, cmd.ID)
	if err != nil {
		return nil, err
	}
	now := h.now()

	if cmd.Name != nil {
		if err := plan.Rename(*cmd.Name, now); err != nil {
			return nil, err
		}
	}
	if cmd.Semesters != nil {
		target := query.Target{Rut: plan.Rut, Program: plan.ProgramCode, Catalog: plan.CatalogCode}
		if err := target.Validate(h.loader.DefaultCatalog()); err != nil {
			return nil, err
		}
		semesters, err := h.check(ctx, "Update", target, cmd.Semesters)
		if err != nil {
			return nil, err
		}
		plan.Replace(semesters, now)
	}
	plan.UpdatedAt = now

	if err := h.repo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("update_projection: %w", err)
	}
	h.log.InfoContext(ctx, "projection updated", logger.Rut(cmd.Rut), slog.String("projection_id", plan.ID))
	return plan, nil
}

// DeleteProjectionCommand removes a plan.
type DeleteProjectionCommand struct {
	Rut string
	ID  string
}

// Delete removes a plan owned by cmd.Rut.
func (h *ProjectionHandler) Delete(ctx context.Context, cmd DeleteProjectionCommand) error {
	plan, err := query.GetOwnedPlan(ctx, h.repo, cmd.Rut, cmd.ID)
	if err != nil {
		return err
	}
	if err := h.repo.Delete(ctx, plan.ID); err != nil {
		return fmt.Errorf("delete_projection: %w", err)
	}
	h.log.InfoContext(ctx, "projection deleted", logger.Rut(cmd.Rut), slog.String("projection_id", plan.ID))
	return nil
}

// check returns the semesters to store. Under strict save they are bound to
// the curriculum and must pass the planner; otherwise they are only
// renumbered.
func (h *ProjectionHandler) check(ctx context.Context, op string, t query.Target, semesters []academic.ProjectedSemester) ([]academic.ProjectedSemester, error) {
	if h.flags == nil || !h.flags.IsEnabled(config.FeatureStrictSave, t.Rut) {
		return projection.Normalize(semesters), nil
	}

	data, err := h.loader.Load(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("save_projection: %w", err)
	}
	planner := academic.NewPlanner(data.Curriculum, data.Records, semesters)
	if rej := planner.Check(); rej != nil {
		return nil, RejectionError(op, rej)
	}
	return planner.Semesters(), nil
}
