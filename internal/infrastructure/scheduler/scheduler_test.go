package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestIntervalSchedule(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := Every(6 * time.Hour)
	assert.Equal(t, base.Add(6*time.Hour), s.Next(base))
	assert.Equal(t, "every 6h0m0s", s.String())
}

func TestRegister(t *testing.T) {
	s := New(Config{})

	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "b"}, Every(time.Minute)))
	require.NoError(t, s.Register(&countingJob{name: "a"}, Every(time.Hour)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, Every(time.Hour)), ErrJobAlreadyExists)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "every 1h0m0s", jobs[0].Schedule)
}

func TestStartStop(t *testing.T) {
	s := New(Config{Tick: 10 * time.Millisecond, RunOnStart: true})
	job := &countingJob{name: "warm"}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	// The hourly schedule is not due again within the test.
	assert.Equal(t, int32(1), job.runs.Load())
	history := s.History(0)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success())
	assert.False(t, history[0].Manual)
}

func TestNoOverlap(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond, RunOnStart: true})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	require.Eventually(t, func() bool { return job.runs.Load() > 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond, RunOnStart: true})
	job := &countingJob{name: "stuck", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	history := s.History(1)
	require.Len(t, history, 1)
	assert.ErrorIs(t, history[0].Err, context.Canceled)
}

func TestRunNow(t *testing.T) {
	s := New(Config{})
	boom := errors.New("upstream down")
	job := &countingJob{name: "warm", err: boom}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "warm")
	assert.ErrorIs(t, err, boom)
	assert.True(t, result.Manual)
	assert.False(t, result.Success())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	info := s.Jobs()[0]
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
}

func TestHistoryIsCapped(t *testing.T) {
	s := New(Config{HistorySize: 3})
	require.NoError(t, s.Register(&countingJob{name: "j"}, Every(time.Hour)))

	for range 5 {
		_, err := s.RunNow(context.Background(), "j")
		require.NoError(t, err)
	}
	assert.Len(t, s.History(0), 3)
	assert.Len(t, s.History(2), 2)
}
