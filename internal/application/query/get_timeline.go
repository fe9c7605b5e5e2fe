package query

import (
	"context"
	"fmt"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TIMELINE QUERY
// The "malla temporal": the history laid out term by term.
// ══════════════════════════════════════════════════════════════════════════════

// ErrTimelineDisabled is returned when the timeline feature is off for the
// student.
var ErrTimelineDisabled = shared.NewDomainError("timeline", "Get", shared.ErrForbidden, "timeline is not enabled")

// GetTimelineQuery contains the parameters of the timeline query.
type GetTimelineQuery struct {
	Target
}

// TimelineDTO wraps the timeline with the program it belongs to.
type TimelineDTO struct {
	Program  string            `json:"program"`
	Catalog  string            `json:"catalog"`
	Standing academic.Standing `json:"standing"`
	academic.Timeline
}

// GetTimelineHandler handles GetTimelineQuery.
type GetTimelineHandler struct {
	loader *AcademicLoader
	flags  FeatureGate
}

// NewGetTimelineHandler creates a new GetTimelineHandler.
func NewGetTimelineHandler(loader *AcademicLoader, flags FeatureGate) *GetTimelineHandler {
	return &GetTimelineHandler{loader: loader, flags: flags}
}

// Handle executes the query.
func (h *GetTimelineHandler) Handle(ctx context.Context, q GetTimelineQuery) (*TimelineDTO, error) {
	if h.flags != nil && !h.flags.IsEnabled(config.FeatureTimeline, q.Rut) {
		return nil, ErrTimelineDisabled
	}
	data, err := h.loader.Load(ctx, q.Target)
	if err != nil {
		return nil, fmt.Errorf("get_timeline: %w", err)
	}
	return &TimelineDTO{
		Program:  data.Ref.Program,
		Catalog:  data.Ref.Catalog,
		Standing: academic.EvaluateStanding(data.Records),
		Timeline: academic.BuildTimeline(data.Index, data.Records),
	}, nil
}
