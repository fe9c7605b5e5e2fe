package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malla-ucn/malla-estudiante/pkg/circuitbreaker"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type breakerState circuitbreaker.State

func (b breakerState) BreakerState() circuitbreaker.State { return circuitbreaker.State(b) }

func TestCompositeHealthChecker(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name        string
		setup       func(c *CompositeHealthChecker)
		wantHealthy bool
		wantReady   bool
	}{
		{
			name:        "no checks",
			setup:       func(*CompositeHealthChecker) {},
			wantHealthy: true,
			wantReady:   true,
		},
		{
			name: "all pass",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("database", NewPingCheck(ok))
				c.AddNonCriticalCheck("ucn_api", NewBreakerCheck(breakerState(circuitbreaker.StateClosed)))
			},
			wantHealthy: true,
			wantReady:   true,
		},
		{
			name: "non-critical failure only affects readiness",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("database", NewPingCheck(ok))
				c.AddNonCriticalCheck("cache", NewPingCheck(down))
				c.AddNonCriticalCheck("ucn_api", NewBreakerCheck(breakerState(circuitbreaker.StateOpen)))
			},
			wantHealthy: true,
			wantReady:   false,
		},
		{
			name: "critical failure",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("database", NewPingCheck(down))
			},
			wantHealthy: false,
			wantReady:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("test")
			tt.setup(c)
			status := c.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestCompositeHealthChecker_Message(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddNonCriticalCheck("cache", NewPingCheck(pingFunc(func(context.Context) error { return errors.New("x") })))
	c.AddNonCriticalCheck("api", NewBreakerCheck(breakerState(circuitbreaker.StateOpen)))

	status := c.Check(context.Background())
	assert.Equal(t, "Some checks failed: api, cache", status.Message)
	require.Contains(t, status.Checks, "api")
	assert.False(t, status.Checks["api"].Critical)
}

func TestCompositeHealthChecker_Details(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", NewPingCheck(pingFunc(func(context.Context) error { return nil })))
	c.AddNonCriticalCheck("cache", NewPingCheck(pingFunc(func(context.Context) error { return nil })))
	c.SetDetails("database", func() map[string]any {
		return map[string]any{"total_conns": int32(4), "max_conns": int32(10)}
	})
	c.SetDetails("missing", func() map[string]any { return map[string]any{"x": 1} })

	status := c.Check(context.Background())
	require.Contains(t, status.Checks, "database")
	assert.Equal(t, int32(4), status.Checks["database"].Details["total_conns"])
	assert.Nil(t, status.Checks["cache"].Details)
	assert.NotContains(t, status.Checks, "missing")
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refilled after 30s at 2/min")

	now = now.Add(5 * time.Minute)
	l.Allow("10.0.0.3")
	assert.Equal(t, 1, l.Len(), "idle buckets are swept")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "192.0.2.10", ClientIP(r, false))
	assert.Equal(t, "203.0.113.7", ClientIP(r, true))
}
