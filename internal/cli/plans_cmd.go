package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/malla-ucn/malla-estudiante/internal/application/query"
	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/pkg/timeutil"
)

func newPlansCmd(app *App) *cobra.Command {
	var (
		q      query.ListProjectionsQuery
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List a student's saved projections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, app.Config.Database)
			if err != nil {
				return err
			}
			defer st.close()

			plans, err := query.NewListProjectionsHandler(st.repo).Handle(ctx, q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(app.Out, plans)
			}
			return formatPlans(app.Out, plans)
		},
	}

	cmd.Flags().StringVar(&q.Rut, "rut", "", "Student RUT")
	cmd.Flags().StringVar(&q.Program, "program", "", "Program code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("rut")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

func formatPlans(w io.Writer, plans []*projection.Plan) error {
	if len(plans) == 0 {
		_, err := fmt.Fprintln(w, "no saved projections")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSEMESTERS\tCREDITS\tUPDATED")
	for _, p := range plans {
		credits := 0
		for _, s := range p.Semesters {
			credits += s.TotalCredits
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Name, len(p.Semesters), credits, timeutil.FormatDateTimeStr(p.UpdatedAt))
	}
	return tw.Flush()
}
