package cli

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/application/command"
	"github.com/malla-ucn/malla-estudiante/internal/application/query"
	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/auth"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/external/ucn"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/postgres"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/redis"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/schema"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/sqlite"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/scheduler"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/malla-ucn/malla-estudiante/internal/interface/http"
	"github.com/malla-ucn/malla-estudiante/internal/interface/http/handlers"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION STORE
// ══════════════════════════════════════════════════════════════════════════════

// pingRepository is a projection store that can be health-checked.
type pingRepository interface {
	projection.Repository
	Ping(ctx context.Context) error
}

// store bundles the configured projection backend.
type store struct {
	driver   string
	repo     pingRepository
	migrator schema.Migrator
	close    func()

	// stats reports connection pool usage, when the backend has a pool.
	stats func() map[string]any
}

// openStore connects to the backend selected by DATABASE_DRIVER.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (*store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := postgres.Connect(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns:        int32(cfg.MaxOpenConns),
			MinConns:        int32(cfg.MaxIdleConns),
			MaxConnLifetime: cfg.ConnMaxLifetime,
			MaxConnIdleTime: cfg.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return &store{
			driver:   cfg.Driver,
			repo:     postgres.NewProjectionRepository(conn),
			migrator: postgres.NewMigrator(conn),
			close:    conn.Close,
			stats:    conn.Stats,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return &store{
			driver:   cfg.Driver,
			repo:     sqlite.NewProjectionRepository(db),
			migrator: sqlite.NewMigrator(db),
			close:    func() { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIVERSITY SOURCE
// ══════════════════════════════════════════════════════════════════════════════

func ucnClientConfig(cfg config.UCNConfig, log *slog.Logger) ucn.ClientConfig {
	c := ucn.DefaultClientConfig()
	c.LoginURL = cfg.LoginURL
	c.AvanceURL = cfg.AvanceURL
	c.MallasURL = cfg.MallasURL
	c.RamosURL = cfg.RamosURL
	c.HawaiiAuth = cfg.HawaiiAuth
	c.Timeout = cfg.RequestTimeout
	c.RateLimit = rate.Limit(cfg.RateLimit)
	c.Burst = cfg.RateLimitBurst
	c.Retry.MaxAttempts = cfg.MaxRetries + 1
	c.Retry.InitialDelay = cfg.RetryBaseDelay
	c.Retry.MaxDelay = cfg.RetryMaxDelay
	c.BreakerThreshold = cfg.CircuitBreakerThreshold
	c.BreakerTimeout = cfg.CircuitBreakerTimeout
	c.Logger = log
	return c
}

func redisConfig(cfg config.RedisConfig) redis.Config {
	c := redis.DefaultConfig()
	c.URL = cfg.URL
	c.Host = cfg.Host
	c.Port = cfg.Port
	c.Password = cfg.Password
	c.DB = cfg.DB
	c.PoolSize = cfg.PoolSize
	c.MinIdleConns = cfg.MinIdleConns
	c.DialTimeout = cfg.DialTimeout
	c.ReadTimeout = cfg.ReadTimeout
	c.WriteTimeout = cfg.WriteTimeout
	return c
}

// source is the university read side, possibly behind the Redis cache.
type source struct {
	redis.Upstream
	client *ucn.Client  // nil when the upstream was injected
	cache  *redis.Cache // nil when caching is off
}

func (s *source) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// openSource builds the university client and, when Redis is enabled and
// the cache flag is on, wraps it in a read-through cache. A Redis outage at
// startup disables the cache instead of failing.
func (a *App) openSource(ctx context.Context) *source {
	cfg, log := a.Config, a.Logger

	src := &source{Upstream: a.Upstream}
	if src.Upstream == nil {
		src.client = ucn.NewClient(ucnClientConfig(cfg.UCN, log))
		src.Upstream = src.client
	}

	if cfg.Redis.Disabled || !cfg.Features.IsEnabled(config.FeatureRedisCache, "") {
		return src
	}
	cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
	if err != nil {
		log.Warn("redis unavailable, running without cache", logger.Err(err))
		return src
	}

	secret := cfg.Redis.KeySecret
	if secret == "" {
		secret = string(cfg.SessionSecret())
	}
	ttl := redis.DefaultCacheTTLs()
	ttl.Curriculum = cfg.Redis.CurriculumTTL
	ttl.History = cfg.Redis.HistoryTTL
	ttl.Enrolled = cfg.Redis.HistoryTTL

	src.cache = cache
	src.Upstream = redis.NewCachedSource(src.Upstream, cache, redis.NewKeyer(secret), ttl, log)
	return src
}

// newLoader builds the academic loader over src.
func (a *App) newLoader(src *source) (*query.AcademicLoader, error) {
	legacy, err := a.Config.UCN.LegacyRefs()
	if err != nil {
		return nil, fmt.Errorf("legacy catalogs: %w", err)
	}
	return query.NewAcademicLoader(src, legacy, a.Config.UCN.DefaultCatalog, a.Config.Features, a.Logger), nil
}

// buildScheduler registers the cache warm-up job. It returns nil when there
// is no cache to warm, the interval is zero or no catalog is configured.
func (a *App) buildScheduler(src *source) (*scheduler.Scheduler, error) {
	cfg := a.Config
	if src.cache == nil || cfg.Redis.WarmInterval <= 0 {
		return nil, nil
	}

	warm, err := cfg.Redis.WarmRefs()
	if err != nil {
		return nil, fmt.Errorf("warm catalogs: %w", err)
	}
	legacy, err := cfg.UCN.LegacyRefs()
	if err != nil {
		return nil, fmt.Errorf("legacy catalogs: %w", err)
	}
	refs := append(warm, legacy...)
	if len(refs) == 0 {
		return nil, nil
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = a.Logger
	s := scheduler.New(schedCfg)
	if err := s.Register(jobs.NewWarmCurriculaJob(src, refs, a.Logger), scheduler.Every(cfg.Redis.WarmInterval)); err != nil {
		return nil, err
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP SERVER
// ══════════════════════════════════════════════════════════════════════════════

// buildServer wires every handler of the API.
func (a *App) buildServer(st *store, src *source) (*httpserver.Server, error) {
	cfg, log := a.Config, a.Logger

	sessions, err := auth.NewManager(cfg.SessionSecret(), cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	loader, err := a.newLoader(src)
	if err != nil {
		return nil, err
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewPingCheck(st.repo))
	if st.stats != nil {
		health.SetDetails("database", st.stats)
	}
	if src.cache != nil {
		health.AddNonCriticalCheck("cache", handlers.NewPingCheck(src.cache))
	}
	if src.client != nil {
		health.AddNonCriticalCheck("ucn_api", handlers.NewBreakerCheck(src.client))
	}

	authenticator := a.Authenticator
	if authenticator == nil {
		if src.client == nil {
			return nil, fmt.Errorf("no authenticator configured")
		}
		authenticator = src.client
	}

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.CORSOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMin
	serverCfg.TrustProxy = !cfg.IsDevelopment()
	serverCfg.SessionCookie = cfg.Session.CookieName
	serverCfg.SecureCookies = cfg.IsProduction()
	serverCfg.Version = cfg.App.Version

	return httpserver.NewServer(serverCfg, httpserver.Dependencies{
		GetProgress:    query.NewGetProgressHandler(loader),
		GetTimeline:    query.NewGetTimelineHandler(loader, cfg.Features),
		GetCurriculum:  query.NewGetCurriculumHandler(src),
		GetAvailable:   query.NewGetAvailableCoursesHandler(loader),
		GetEnrolled:    query.NewGetEnrolledCoursesHandler(src),
		ListProjection: query.NewListProjectionsHandler(st.repo),
		GetProjection:  query.NewGetProjectionHandler(st.repo),
		Login:          command.NewLoginHandler(authenticator, sessions, log),
		Projections:    command.NewProjectionHandler(st.repo, loader, cfg.Features, log),
		EditPlan:       command.NewEditPlanHandler(loader),
		Sessions:       sessions,
		DefaultCatalog: cfg.UCN.DefaultCatalog,
		Logger:         log,
		HealthChecker:  health,
	}), nil
}
