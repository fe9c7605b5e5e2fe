package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/malla-ucn/malla-estudiante/internal/application/query"
	"github.com/malla-ucn/malla-estudiante/pkg/timeutil"
)

func newSummaryCmd(app *App) *cobra.Command {
	var (
		t      query.Target
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a student's reconciled progress and standing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src := app.openSource(ctx)
			defer src.Close()

			loader, err := app.newLoader(src)
			if err != nil {
				return err
			}
			progress, err := query.NewGetProgressHandler(loader).Handle(ctx, query.GetProgressQuery{Target: t})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(app.Out, progress)
			}
			return formatProgress(app.Out, progress)
		},
	}

	cmd.Flags().StringVar(&t.Rut, "rut", "", "Student RUT, e.g. 12345678-9")
	cmd.Flags().StringVar(&t.Program, "program", "", "Program code")
	cmd.Flags().StringVar(&t.Catalog, "catalog", "", "Catalog code (default from UCN_DEFAULT_CATALOG)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("rut")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatProgress(w io.Writer, p *query.ProgressDTO) error {
	s := p.Summary
	fmt.Fprintf(w, "Program %s, catalog %s\n", p.Program, p.Catalog)
	term := timeutil.CurrentPeriod(timeutil.Now())
	fmt.Fprintf(w, "Term:     %s (next %s)\n", term.Display(), term.Next().Display())
	fmt.Fprintf(w, "Standing: %s\n", p.Standing)
	fmt.Fprintf(w, "Credits:  %d/%d (%d%%)\n", s.CreditsApproved, s.CreditsTotal, s.CareerPercent)
	fmt.Fprintf(w, "Courses:  %d/%d approved, %d failed\n\n", s.CoursesApproved, s.CoursesTotal, s.CoursesFailed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tCODE\tNAME\tCREDITS\tSTATUS\tATTEMPTS")
	for _, c := range p.Courses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%d\n", c.Level, c.Code, c.Name, c.Credits, c.Status, c.Attempts)
	}
	for _, c := range p.Extra {
		fmt.Fprintf(tw, "-\t%s\t%s\t%d\t%s\t%d\n", c.Code, c.Name, c.Credits, c.Status, c.Attempts)
	}
	return tw.Flush()
}
