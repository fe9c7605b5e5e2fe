package redis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// Upstream is what CachedSource decorates.
type Upstream interface {
	academic.Source
	academic.EnrolledSource
}

// CacheTTLs sets how long each kind of read stays cached.
type CacheTTLs struct {
	Curriculum time.Duration
	History    time.Duration
	Enrolled   time.Duration
}

// DefaultCacheTTLs returns the TTLs used when none are configured.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Curriculum: 12 * time.Hour,
		History:    5 * time.Minute,
		Enrolled:   5 * time.Minute,
	}
}

// CachedSource is a read-through cache in front of the university API.
// Cache failures are logged and the call falls through to upstream; empty
// results are not cached.
type CachedSource struct {
	upstream Upstream
	store    Store
	keys     Keyer
	ttl      CacheTTLs
	logger   *slog.Logger
}

var _ Upstream = (*CachedSource)(nil)

// NewCachedSource wraps upstream with store.
func NewCachedSource(upstream Upstream, store Store, keys Keyer, ttl CacheTTLs, log *slog.Logger) *CachedSource {
	if log == nil {
		log = logger.Discard()
	}
	return &CachedSource{
		upstream: upstream,
		store:    store,
		keys:     keys,
		ttl:      ttl,
		logger:   log.With(logger.Component("academic_cache")),
	}
}

func (c *CachedSource) FetchCurriculum(ctx context.Context, ref academic.CatalogRef) ([]academic.CurriculumCourse, error) {
	return readThrough(ctx, c, c.keys.CurriculumKey(ref.String()), c.ttl.Curriculum,
		func() ([]academic.CurriculumCourse, error) { return c.upstream.FetchCurriculum(ctx, ref) })
}

func (c *CachedSource) FetchCurricula(ctx context.Context, refs []academic.CatalogRef) (academic.Curriculum, error) {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return readThrough(ctx, c, c.keys.CurriculumKey(strings.Join(parts, "+")), c.ttl.Curriculum,
		func() (academic.Curriculum, error) { return c.upstream.FetchCurricula(ctx, refs) })
}

func (c *CachedSource) FetchAttemptHistory(ctx context.Context, rut, program string) ([]academic.CourseAttemptRecord, error) {
	return readThrough(ctx, c, c.keys.HistoryKey(rut, program), c.ttl.History,
		func() ([]academic.CourseAttemptRecord, error) { return c.upstream.FetchAttemptHistory(ctx, rut, program) })
}

func (c *CachedSource) FetchEnrolledCourses(ctx context.Context, rut string) ([]academic.EnrolledCourse, error) {
	return readThrough(ctx, c, c.keys.EnrolledKey(rut), c.ttl.Enrolled,
		func() ([]academic.EnrolledCourse, error) { return c.upstream.FetchEnrolledCourses(ctx, rut) })
}

// InvalidateStudent drops every cached read of rut. Catalogs are shared and stay.
func (c *CachedSource) InvalidateStudent(ctx context.Context, rut string) error {
	if err := c.store.DeleteByPattern(ctx, c.keys.HistoryPattern(rut)); err != nil {
		return err
	}
	return c.store.Delete(ctx, c.keys.EnrolledKey(rut))
}

func readThrough[T any, S ~[]T](ctx context.Context, c *CachedSource, key string, ttl time.Duration, load func() (S, error)) (S, error) {
	var cached S
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), logger.Err(err))
	}

	fresh, err := load()
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 && ttl > 0 {
		if err := c.store.Set(ctx, key, fresh, ttl); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), logger.Err(err))
		}
	}
	return fresh, nil
}
