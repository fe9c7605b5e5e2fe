package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := New("ucn",
		WithFailureThreshold(2),
		WithSuccessThreshold(1),
		WithTimeout(time.Minute),
		WithClock(clock.now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	require.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	clock.t = clock.t.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := New("ucn", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.t = clock.t.Add(time.Second)
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 2, cb.Counts().TotalFailures)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	cb := New("ucn", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, errDown)
	}))

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State(), "caller cancellation is not a failure")
}

func TestUCNAPIBreaker_OptionsOverridePreset(t *testing.T) {
	cb := UCNAPIBreaker("ucn-test", nil, nil, WithFailureThreshold(5))
	for range 3 {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateClosed, cb.State())

	for range 2 {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Zero values leave the preset in place.
	cb = UCNAPIBreaker("ucn-test", nil, nil, WithFailureThreshold(0), WithTimeout(0))
	for range 3 {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := UCNAPIBreaker("ucn-test", nil, nil)
	for range 3 {
		_ = cb.Execute(context.Background(), fail)
	}
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().Requests)
}
