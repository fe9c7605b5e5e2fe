package academic

import (
	"context"
	"fmt"
	"strings"
)

// CatalogRef identifies one curriculum catalog of a program.
type CatalogRef struct {
	Program string `json:"program"`
	Catalog string `json:"catalog"`
}

// String renders the ref as "program-catalog", the form the curriculum API
// expects.
func (r CatalogRef) String() string {
	return r.Program + "-" + r.Catalog
}

// ParseCatalogRef parses "8266-202410".
func ParseCatalogRef(s string) (CatalogRef, error) {
	program, catalog, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || program == "" || catalog == "" {
		return CatalogRef{}, fmt.Errorf("academic: invalid catalog ref %q", s)
	}
	return CatalogRef{Program: program, Catalog: catalog}, nil
}

// ParseCatalogRefs parses a comma-separated list of refs.
func ParseCatalogRefs(s string) ([]CatalogRef, error) {
	var refs []CatalogRef
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ref, err := ParseCatalogRef(part)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// DedupCatalogRefs drops repeated refs, keeping the first of each.
func DedupCatalogRefs(refs []CatalogRef) []CatalogRef {
	seen := make(map[CatalogRef]struct{}, len(refs))
	out := make([]CatalogRef, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// HistorySource provides a student's attempt history. Absence is an empty
// result, not an error.
type HistorySource interface {
	FetchAttemptHistory(ctx context.Context, rut, program string) ([]CourseAttemptRecord, error)
}

// CurriculumSource provides curriculum rows. Absence is an empty result.
type CurriculumSource interface {
	FetchCurriculum(ctx context.Context, ref CatalogRef) ([]CurriculumCourse, error)
	// FetchCurricula unions several catalogs, first occurrence of a code wins.
	FetchCurricula(ctx context.Context, refs []CatalogRef) (Curriculum, error)
}

// Source is the full read side of the university systems.
type Source interface {
	HistorySource
	CurriculumSource
}

// EnrolledSource provides the courses a student is taking this term.
type EnrolledSource interface {
	FetchEnrolledCourses(ctx context.Context, rut string) ([]EnrolledCourse, error)
}
