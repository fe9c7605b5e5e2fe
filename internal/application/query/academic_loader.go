// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC LOADER
// Fetches what every academic read needs: the program curriculum, the
// metadata index backfilled from legacy catalogs, and the attempt history.
// ══════════════════════════════════════════════════════════════════════════════

// FeatureGate reports whether a feature is on for a student.
type FeatureGate interface {
	IsEnabled(name, rut string) bool
}

// Target identifies a student's program.
type Target struct {
	Rut     string
	Program string
	// Catalog is optional; the default catalog is used when empty.
	Catalog string
}

// Validate checks the target and fills defaults.
func (t *Target) Validate(defaultCatalog string) error {
	t.Rut = student.NormalizeRut(t.Rut)
	t.Program = strings.TrimSpace(t.Program)
	t.Catalog = strings.TrimSpace(t.Catalog)
	if err := student.ValidateRut(t.Rut); err != nil {
		return err
	}
	if t.Program == "" {
		return shared.NewDomainError("academic", "Validate", shared.ErrEmptyValue, "program is required")
	}
	if t.Catalog == "" {
		t.Catalog = defaultCatalog
	}
	return nil
}

// Ref returns the target's catalog ref.
func (t Target) Ref() academic.CatalogRef {
	return academic.CatalogRef{Program: t.Program, Catalog: t.Catalog}
}

// StudentData is the raw academic input of one student and program.
type StudentData struct {
	Ref academic.CatalogRef

	// Curriculum is the program's own catalog. Totals are computed over it.
	Curriculum academic.Curriculum

	// Index is Curriculum followed by the legacy catalogs, used only to
	// name and weigh courses the current catalog no longer lists.
	Index academic.Curriculum

	Records []academic.CourseAttemptRecord
}

// AcademicLoader loads StudentData from the university source.
type AcademicLoader struct {
	source         academic.Source
	legacy         []academic.CatalogRef
	defaultCatalog string
	flags          FeatureGate
	log            *slog.Logger
}

// NewAcademicLoader creates a new AcademicLoader.
func NewAcademicLoader(
	source academic.Source,
	legacy []academic.CatalogRef,
	defaultCatalog string,
	flags FeatureGate,
	log *slog.Logger,
) *AcademicLoader {
	if log == nil {
		log = slog.Default()
	}
	return &AcademicLoader{
		source:         source,
		legacy:         legacy,
		defaultCatalog: defaultCatalog,
		flags:          flags,
		log:            log.With(logger.Component("academic_loader")),
	}
}

// DefaultCatalog returns the catalog used when a target names none.
func (l *AcademicLoader) DefaultCatalog() string { return l.defaultCatalog }

// Load fetches curriculum, legacy index and history concurrently.
func (l *AcademicLoader) Load(ctx context.Context, t Target) (*StudentData, error) {
	if err := t.Validate(l.defaultCatalog); err != nil {
		return nil, err
	}
	ref := t.Ref()
	data := &StudentData{Ref: ref}
	legacy := l.legacyRefs(t.Rut, ref)

	var legacyIndex academic.Curriculum
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := l.source.FetchCurriculum(gctx, ref)
		if err != nil {
			return fmt.Errorf("fetching curriculum %s: %w", ref, err)
		}
		data.Curriculum = academic.Curriculum(c)
		return nil
	})
	g.Go(func() error {
		records, err := l.source.FetchAttemptHistory(gctx, t.Rut, t.Program)
		if err != nil {
			return fmt.Errorf("fetching history: %w", err)
		}
		data.Records = records
		return nil
	})
	if len(legacy) > 0 {
		g.Go(func() error {
			c, err := l.source.FetchCurricula(gctx, legacy)
			if err != nil {
				// Backfill is best effort.
				l.log.WarnContext(gctx, "legacy curricula unavailable", logger.Err(err))
				return nil
			}
			legacyIndex = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if data.Curriculum == nil {
		data.Curriculum = academic.Curriculum{}
	}
	if data.Records == nil {
		data.Records = []academic.CourseAttemptRecord{}
	}
	data.Index = academic.MergeCurricula(data.Curriculum, legacyIndex)

	l.log.DebugContext(ctx, "academic data loaded",
		logger.Rut(t.Rut),
		logger.Program(t.Program),
		slog.Int("courses", len(data.Curriculum)),
		slog.Int("index", len(data.Index)),
		slog.Int("records", len(data.Records)),
	)
	return data, nil
}

// legacyRefs returns the legacy catalogs to backfill from, without the
// primary ref and without repeats. Nil when the feature is off.
func (l *AcademicLoader) legacyRefs(rut string, primary academic.CatalogRef) []academic.CatalogRef {
	if len(l.legacy) == 0 || l.flags == nil || !l.flags.IsEnabled(config.FeatureLegacyBackfill, rut) {
		return nil
	}
	refs := academic.DedupCatalogRefs(append([]academic.CatalogRef{primary}, l.legacy...))
	return refs[1:]
}
