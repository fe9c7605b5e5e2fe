package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/schema"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

func newServeCmd(app *App) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, !skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
	return cmd
}

func (a *App) serve(ctx context.Context, migrate bool) error {
	cfg, log := a.Config, a.Logger
	log.Info("starting malla-estudiante",
		slog.String("version", cfg.App.Version),
		slog.String("timezone", cfg.App.Location.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 1. PROJECTION STORE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("opening projection store", slog.String("driver", cfg.Database.Driver))
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing projection store")
		st.close()
	}()

	if err := st.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if migrate {
		log.Info("running database migrations")
		if err := st.migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if status, err := st.migrator.Status(ctx); err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			log.Info("migrations completed",
				slog.Int("pending", len(schema.Pending(status))),
				slog.Int("total", len(status)),
			)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. UNIVERSITY SOURCE (+ REDIS CACHE)
	// ─────────────────────────────────────────────────────────────────────────
	src := a.openSource(ctx)
	defer src.Close()
	log.Info("university source ready", slog.Bool("cache", src.cache != nil))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. BACKGROUND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := a.buildScheduler(src)
	if err != nil {
		return err
	}
	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server, err := a.buildServer(st, src)
	if err != nil {
		return err
	}
	errCh := server.StartAsync()
	log.Info("malla-estudiante is running", slog.String("http_address", server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("HTTP server shutdown error", logger.Err(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}
