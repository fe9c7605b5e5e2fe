// Package retry runs operations with exponential backoff and jitter on top of
// cenkalti/backoff. Errors decide their own fate: Permanent stops at once,
// Retryable (or a custom RetryIf) asks for another attempt.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryableError indicates that an error is retryable.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error to indicate it should be retried.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PermanentError indicates that an error should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first call. Default: 3
	MaxAttempts int

	InitialDelay time.Duration // Default: 100ms
	MaxDelay     time.Duration // Default: 5s
	Multiplier   float64       // Default: 2.0
	JitterFactor float64       // Default: 0.1

	// MaxElapsed caps the total time spent, zero means no cap.
	MaxElapsed time.Duration

	// RetryIf decides whether an error is retried. If nil, only
	// RetryableError errors are.
	RetryIf func(error) bool

	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithDelays sets the initial and maximum delay.
func WithDelays(initial, maxDelay time.Duration) Option {
	return func(c *Config) {
		if initial > 0 {
			c.InitialDelay = initial
		}
		if maxDelay > 0 {
			c.MaxDelay = maxDelay
		}
	}
}

// WithMaxElapsed caps the total retry time.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Config) { c.MaxElapsed = d }
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry sets the retry callback.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned unwrapped from any
// Permanent marker.
func Do(ctx context.Context, fn func(context.Context) error, opts ...Option) error {
	_, err := DoWithData(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// DoWithData is Do for operations that return a value.
func DoWithData[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.JitterFactor

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return v, backoff.Permanent(pe.Err)
		}
		if !shouldRetry(cfg, err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(cfg.MaxAttempts, 1))),
	}
	if cfg.MaxElapsed > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(cfg.MaxElapsed))
	}
	if cfg.OnRetry != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, d time.Duration) {
			cfg.OnRetry(attempt, err, d)
		}))
	}

	v, err := backoff.Retry(ctx, operation, retryOpts...)
	if re, ok := err.(*RetryableError); ok {
		err = re.Err
	}
	return v, err
}

func shouldRetry(cfg Config, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if cfg.RetryIf != nil {
		return cfg.RetryIf(err)
	}
	return IsRetryable(err)
}
