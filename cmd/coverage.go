package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/analysis"
	"github.com/sells-group/access-cli/internal/config"
	"github.com/sells-group/access-cli/internal/report"
)

var (
	coverageCategories []string
	coverageThreshold  float64
	coverageUnit       string
	coverageMode       string
	coverageFormat     string
	coverageOutput     string
	coverageSave       bool
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report population coverage and equity per service category",
	Long:  "Computes the distance from every population point to the nearest service of each category and reports the share of people within the threshold, along with services per 1000 people and people per service.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyCoverageFlags(cmd, cfg)

		if err := cfg.Validate("coverage"); err != nil {
			return err
		}

		l := newLoader(cfg)
		defer l.close()

		s, err := buildStudy(ctx, l, true)
		if err != nil {
			return err
		}

		threshold, err := cfg.Analysis.ThresholdIn(s.Unit(cfg.Analysis.Mode))
		if err != nil {
			return eris.Wrap(err, "coverage threshold")
		}

		r, results, err := s.Report(ctx, analysis.ReportOptions{
			Categories: cfg.Analysis.Categories,
			Threshold:  threshold,
			Mode:       cfg.Analysis.Mode,
		})
		if err != nil {
			return eris.Wrap(err, "coverage")
		}

		if err := writeReport(cmd.OutOrStdout(), cfg.Report, r); err != nil {
			return err
		}

		if coverageSave {
			return saveReport(ctx, l, r, results)
		}
		return nil
	},
}

// applyCoverageFlags copies explicitly set flags over the loaded config.
func applyCoverageFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("category") {
		c.Analysis.Categories = coverageCategories
	}
	if flags.Changed("threshold") {
		c.Analysis.Threshold = coverageThreshold
	}
	if flags.Changed("unit") {
		c.Analysis.ThresholdUnit = coverageUnit
	}
	if flags.Changed("mode") {
		c.Analysis.Mode = coverageMode
	}
	if flags.Changed("format") {
		c.Report.Format = coverageFormat
	}
	if flags.Changed("output") {
		c.Report.Output = coverageOutput
	}
}

// writeReport renders to rc.Output when set, otherwise to stdout.
func writeReport(stdout io.Writer, rc config.ReportConfig, r *report.Report) error {
	if rc.Output == "" {
		return report.Write(stdout, rc.Format, r)
	}

	f, err := os.Create(rc.Output)
	if err != nil {
		return eris.Wrap(err, "create report file")
	}
	if err := report.Write(f, report.FormatFromPath(rc.Output, rc.Format), r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "close report file")
	}

	zap.L().Info("report written", zap.String("path", rc.Output), zap.String("report_id", r.ID))
	return nil
}

func saveReport(ctx context.Context, l *loader, r *report.Report, results []analysis.Result) error {
	pool, err := l.postgres(ctx)
	if err != nil {
		return err
	}
	if _, err := report.SavePostgres(ctx, pool, cfg.Report.Table, r); err != nil {
		return err
	}

	if cfg.Report.DistancesTable == "" {
		return nil
	}
	for i, row := range r.Rows {
		n, err := report.SaveDistances(ctx, pool, cfg.Report.DistancesTable, r.ID, row.Category, results[i].Annotated)
		if err != nil {
			return err
		}
		zap.L().Debug("saved distances", zap.String("category", row.Category), zap.Int64("rows", n))
	}
	return nil
}

func init() {
	coverageCmd.Flags().StringSliceVar(&coverageCategories, "category", nil, "service categories to evaluate (default: all loaded)")
	coverageCmd.Flags().Float64Var(&coverageThreshold, "threshold", 0, "coverage threshold in --unit, or in the mode's unit (default 1000 meters in euclidean mode, 15 minutes over a travel-time network)")
	coverageCmd.Flags().StringVar(&coverageUnit, "unit", "", "unit of --threshold: meters (m), seconds (s) or minutes (min)")
	coverageCmd.Flags().StringVar(&coverageMode, "mode", analysis.ModeEuclidean, "euclidean or the configured network name")
	coverageCmd.Flags().StringVar(&coverageFormat, "format", report.FormatTable, "output format: table, json, yaml or xlsx")
	coverageCmd.Flags().StringVarP(&coverageOutput, "output", "o", "", "write the report to this file instead of stdout")
	coverageCmd.Flags().BoolVar(&coverageSave, "save", false, "upsert the report into store.database_url (report.table)")
	rootCmd.AddCommand(coverageCmd)
}
