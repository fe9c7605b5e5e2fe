package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/malla-ucn/malla-estudiante/internal/infrastructure/persistence/schema"
)

func newMigrateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the projection store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.withMigrator(cmd.Context(), func(ctx context.Context, m schema.Migrator) error {
					before, err := m.Status(ctx)
					if err != nil {
						return err
					}
					if err := m.Migrate(ctx); err != nil {
						return err
					}
					fmt.Fprintf(app.Out, "applied %d migration(s)\n", len(schema.Pending(before)))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the last applied migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.withMigrator(cmd.Context(), func(ctx context.Context, m schema.Migrator) error {
					before, err := m.Status(ctx)
					if err != nil {
						return err
					}
					last := schema.Latest(applied(before))
					if last == nil {
						fmt.Fprintln(app.Out, "nothing to revert")
						return nil
					}
					if err := m.Rollback(ctx); err != nil {
						return err
					}
					fmt.Fprintf(app.Out, "reverted %03d_%s\n", last.Version, last.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.withMigrator(cmd.Context(), func(ctx context.Context, m schema.Migrator) error {
					status, err := m.Status(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
					for _, mg := range status {
						when := "pending"
						if mg.IsApplied {
							when = mg.AppliedAt.Format("2006-01-02 15:04:05")
						}
						fmt.Fprintf(tw, "%03d\t%s\t%s\n", mg.Version, mg.Name, when)
					}
					return tw.Flush()
				})
			},
		},
	)
	return cmd
}

func (a *App) withMigrator(ctx context.Context, fn func(context.Context, schema.Migrator) error) error {
	st, err := openStore(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer st.close()
	return fn(ctx, st.migrator)
}

func applied(status []schema.Migration) []schema.Migration {
	var out []schema.Migration
	for _, m := range status {
		if m.IsApplied {
			out = append(out, m)
		}
	}
	return out
}
