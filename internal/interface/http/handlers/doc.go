// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// The HealthChecker interface runs named checks in parallel. Critical checks
// decide /health; every check decides /ready:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("database", handlers.NewPingCheck(repo))
//	checker.AddNonCriticalCheck("cache", handlers.NewPingCheck(cache))
//	checker.AddNonCriticalCheck("ucn_api", handlers.NewBreakerCheck(ucnClient))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// # Middleware
//
// IPRateLimiter keeps a token bucket per client IP:
//
//	limiter := handlers.NewIPRateLimiter(120, 10*time.Minute)
//	if !limiter.Allow(handlers.ClientIP(r, false)) {
//	    // 429
//	}
//
// Middleware compose with Chain, outermost first:
//
//	h := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)(mux)
package handlers
