// Package cli implements the malla command line: the API server, schema
// migrations and read-only student reports.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/malla-ucn/malla-estudiante/config"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/redis"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// App holds what every command needs. Config and Logger are filled before
// a command runs when they are nil.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Out    io.Writer

	// Upstream and Authenticator replace the university client when set.
	Upstream      redis.Upstream
	Authenticator student.Authenticator
}

// NewRootCmd creates the top-level "malla" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "malla",
		Short:         "Curriculum progress and semester planning for UCN students",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
	}

	root.AddCommand(
		newServeCmd(app),
		newMigrateCmd(app),
		newSummaryCmd(app),
		newPlansCmd(app),
	)
	return root
}

func (a *App) init(cmd *cobra.Command) error {
	if a.Out == nil {
		a.Out = cmd.OutOrStdout()
	}
	if a.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	if a.Logger == nil {
		a.Logger = newLogger(a.Config)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	opts.Output = os.Stderr
	if cfg.IsProduction() {
		opts.Format = logger.FormatJSON
	}
	return logger.New(opts).With(
		slog.String("app", cfg.App.Name),
		slog.String("env", string(cfg.App.Environment)),
	)
}
