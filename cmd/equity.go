package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/access-cli/internal/analysis"
	"github.com/sells-group/access-cli/internal/equity"
)

var equityCategories []string

var equityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Report services per 1000 people and people per service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("category") {
			cfg.Analysis.Categories = equityCategories
		}
		if err := cfg.Validate("equity"); err != nil {
			return err
		}

		l := newLoader(cfg)
		defer l.close()

		s, err := buildStudy(ctx, l, false)
		if err != nil {
			return err
		}

		categories := cfg.Analysis.Categories
		if len(categories) == 0 {
			categories = s.Categories()
		}

		rows := make([]equityRow, 0, len(categories))
		for _, name := range categories {
			stats, err := s.PerCapita(name)
			if err != nil {
				return eris.Wrapf(err, "equity %s", name)
			}
			svc, err := s.Services(name)
			if err != nil {
				return err
			}
			rows = append(rows, equityRow{Category: name, Services: svc.Len(), Stats: stats})
		}

		formatEquity(cmd.OutOrStdout(), s, rows)
		return nil
	},
}

type equityRow struct {
	Category string
	Services int
	Stats    equity.Stats
}

// formatEquity writes per-category equity metrics to w.
func formatEquity(out io.Writer, s *analysis.Study, rows []equityRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Study:\t%s\n\n", s.Name())
	_, _ = fmt.Fprintln(w, "CATEGORY\tSERVICES\tPER_1000\tPEOPLE/SERVICE")
	_, _ = fmt.Fprintln(w, "--------\t--------\t--------\t--------------")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\t%.1f\n",
			r.Category, r.Services, r.Stats.ServicesPer1000, r.Stats.PeoplePerService)
	}
	_ = w.Flush()
}

func init() {
	equityCmd.Flags().StringSliceVar(&equityCategories, "category", nil, "service categories to evaluate (default: all loaded)")
	rootCmd.AddCommand(equityCmd)
}
