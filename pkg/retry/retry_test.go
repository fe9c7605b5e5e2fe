package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast() Option { return WithDelays(time.Millisecond, 2*time.Millisecond) }

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, fast(), WithMaxAttempts(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, fast(), WithMaxAttempts(5))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_PlainErrorsAreNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, fast())

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	retries := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, fast(), WithMaxAttempts(3), WithRetryIf(func(error) bool { return true }),
		WithOnRetry(func(int, error, time.Duration) { retries++ }))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", Retryable(errFlaky)
		}
		return "ok", nil
	}, fast())

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestMarkers(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsRetryable(Retryable(errFlaky)))
	assert.True(t, IsPermanent(Permanent(errFlaky)))
	assert.False(t, IsRetryable(errFlaky))
}
