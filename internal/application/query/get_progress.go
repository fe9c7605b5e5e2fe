package query

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Reconciles the attempt history against the curriculum: one final status
// per course, the career summary and the academic standing.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the parameters of the progress query.
type GetProgressQuery struct {
	Target
}

// CourseProgressDTO is one curriculum course with its reconciled status.
type CourseProgressDTO struct {
	Code          string                `json:"code"`
	Name          string                `json:"name"`
	Credits       int                   `json:"credits"`
	Level         int                   `json:"level"`
	Prerequisites []string              `json:"prerequisites"`
	Status        academic.CourseStatus `json:"status"`
	Attempts      int                   `json:"attempts"`
}

// ProgressDTO is the reconciled progress of one student and program.
type ProgressDTO struct {
	Program  string            `json:"program"`
	Catalog  string            `json:"catalog"`
	Summary  academic.Summary  `json:"summary"`
	Standing academic.Standing `json:"standing"`

	Courses []CourseProgressDTO `json:"courses"`

	// Extra lists approved or failed courses outside the curriculum, such as
	// electives or courses of a previous catalog.
	Extra []CourseProgressDTO `json:"extra"`
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	loader *AcademicLoader
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(loader *AcademicLoader) *GetProgressHandler {
	return &GetProgressHandler{loader: loader}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	data, err := h.loader.Load(ctx, q.Target)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	return BuildProgress(data), nil
}

// BuildProgress reconciles loaded data into a ProgressDTO.
func BuildProgress(data *StudentData) *ProgressDTO {
	progress := academic.ReconcileProgress(data.Curriculum, data.Records)

	attempts := make(map[string]int)
	for _, r := range data.Records {
		attempts[r.CourseCode]++
	}

	dto := &ProgressDTO{
		Program:  data.Ref.Program,
		Catalog:  data.Ref.Catalog,
		Summary:  progress.Summary,
		Standing: progress.Summary.Standing,
		Courses:  make([]CourseProgressDTO, 0, len(data.Curriculum)),
		Extra:    []CourseProgressDTO{},
	}

	inCurriculum := make(map[string]struct{}, len(data.Curriculum))
	for _, c := range data.Curriculum {
		inCurriculum[c.Code] = struct{}{}
		dto.Courses = append(dto.Courses, courseProgress(c, progress.StatusOf(c.Code), attempts[c.Code]))
	}

	index := data.Index.Index()
	for code, status := range progress.CourseStatus {
		if _, ok := inCurriculum[code]; ok {
			continue
		}
		c, ok := index[code]
		if !ok {
			c = academic.CurriculumCourse{Code: code, Name: code}
		}
		dto.Extra = append(dto.Extra, courseProgress(c, status, attempts[code]))
	}
	slices.SortFunc(dto.Extra, func(a, b CourseProgressDTO) int {
		return cmp.Compare(a.Code, b.Code)
	})

	return dto
}

func courseProgress(c academic.CurriculumCourse, status academic.CourseStatus, attempts int) CourseProgressDTO {
	prereqs := c.Prerequisites
	if prereqs == nil {
		prereqs = []string{}
	}
	return CourseProgressDTO{
		Code:          c.Code,
		Name:          c.Name,
		Credits:       c.Credits,
		Level:         c.Level,
		Prerequisites: prereqs,
		Status:        status,
		Attempts:      attempts,
	}
}
