// Package jobs holds the background jobs run by the scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// WarmCurriculaJob fetches a fixed set of catalogs through the cached source
// so that student requests find them in Redis. A catalog that fails is
// logged and the rest are still fetched.
type WarmCurriculaJob struct {
	source      academic.CurriculumSource
	refs        []academic.CatalogRef
	concurrency int
	logger      *slog.Logger
}

// NewWarmCurriculaJob creates the job. Duplicate refs are fetched once.
func NewWarmCurriculaJob(source academic.CurriculumSource, refs []academic.CatalogRef, log *slog.Logger) *WarmCurriculaJob {
	if log == nil {
		log = logger.Discard()
	}
	return &WarmCurriculaJob{
		source:      source,
		refs:        academic.DedupCatalogRefs(refs),
		concurrency: 4,
		logger:      log.With(logger.Component("warm_curricula")),
	}
}

func (j *WarmCurriculaJob) Name() string { return "warm_curricula" }

func (j *WarmCurriculaJob) Description() string {
	return fmt.Sprintf("Refreshes %d cached curricula", len(j.refs))
}

// Run fetches every catalog and returns the joined failures.
func (j *WarmCurriculaJob) Run(ctx context.Context) error {
	var (
		mu      sync.Mutex
		errs    []error
		courses int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, ref := range j.refs {
		g.Go(func() error {
			rows, err := j.source.FetchCurriculum(gctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				j.logger.WarnContext(gctx, "curriculum warm-up failed",
					slog.String("catalog", ref.String()),
					logger.Err(err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", ref, err))
				return nil
			}
			courses += len(rows)
			return nil
		})
	}
	_ = g.Wait()

	j.logger.InfoContext(ctx, "curricula warmed",
		slog.Int("catalogs", len(j.refs)),
		slog.Int("failed", len(errs)),
		slog.Int("courses", courses),
	)
	return errors.Join(errs...)
}
