// Package scheduler runs background jobs on fixed intervals alongside the
// API server, e.g. keeping the curriculum cache warm.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of background work.
type Job interface {
	// Name must be unique within a scheduler.
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// IntervalSchedule runs a job every Interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns an IntervalSchedule for d.
func Every(d time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: d}
}

func (s IntervalSchedule) Next(t time.Time) time.Time { return t.Add(s.Interval) }

func (s IntervalSchedule) String() string { return "every " + s.Interval.String() }

// JobResult records one execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Manual    bool
	Err       error
}

// Success reports whether the run returned no error.
func (r JobResult) Success() bool { return r.Err == nil }

// Errors returned by the scheduler.
var (
	ErrNilJob           = errors.New("job cannot be nil")
	ErrNilSchedule      = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrJobNotFound      = errors.New("job not found")
	ErrAlreadyRunning   = errors.New("scheduler is already running")
	ErrNotRunning       = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config configures a Scheduler.
type Config struct {
	Logger *slog.Logger

	// Tick is how often due jobs are checked for.
	Tick time.Duration

	// RunOnStart runs every job once as soon as the scheduler starts.
	RunOnStart bool

	// HistorySize caps the results kept for History.
	HistorySize int
}

// DefaultConfig returns the settings used by the server.
func DefaultConfig() Config {
	return Config{
		Tick:        time.Second,
		RunOnStart:  true,
		HistorySize: 100,
	}
}

// Scheduler runs registered jobs whenever their schedule is due. A job never
// overlaps with itself: a tick that finds it still running skips it.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	history []JobResult
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	nextRun   time.Time
	lastRun   time.Time
	busy      bool
	runCount  int64
	failCount int64
}

// New creates a Scheduler. Zero fields in cfg take their defaults.
func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Scheduler{
		cfg:    cfg,
		logger: log.With(logger.Component("scheduler")),
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register adds job with its schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, schedule: schedule, nextRun: schedule.Next(time.Now())}
	if s.cfg.RunOnStart {
		sj.nextRun = time.Time{}
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.dispatch(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatch(ctx, now)
		}
	}
}

// dispatch starts every job that is due and not already running.
func (s *Scheduler) dispatch(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sj := range s.jobs {
		if sj.busy || now.Before(sj.nextRun) {
			continue
		}
		sj.busy = true
		sj.nextRun = sj.schedule.Next(now)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(ctx, sj, false)
		}()
	}
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	started := time.Now()

	err := sj.job.Run(ctx)
	result := JobResult{
		JobName:   name,
		StartedAt: started,
		Duration:  time.Since(started),
		Manual:    manual,
		Err:       err,
	}

	s.mu.Lock()
	if !manual {
		sj.busy = false
	}
	sj.lastRun = started
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	s.history = append(s.history, result)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			slog.String("job", name),
			slog.Duration("duration", result.Duration),
			logger.Err(err),
		)
	} else {
		s.logger.Info("job completed",
			slog.String("job", name),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

// RunNow executes a job immediately, outside its schedule, and waits for it.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	result := s.execute(ctx, sj, true)
	return result, result.Err
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
}

// Jobs lists registered jobs by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// History returns up to limit of the most recent results, oldest first.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}
