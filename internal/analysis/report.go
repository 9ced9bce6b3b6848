package analysis

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/equity"
	"github.com/sells-group/access-cli/internal/report"
)

// maxConcurrentCategories bounds categories evaluated at once.
const maxConcurrentCategories = 4

// ReportOptions selects what Report evaluates.
type ReportOptions struct {
	Categories []string // empty means every loaded category
	Threshold  float64  // in Unit(Mode)
	Mode       string
}

// Report evaluates every requested category and collects one row each, in
// request order. Categories without services still get a row (no coverage,
// infinite burden). Equity columns are filled only for weighted populations.
// The returned results line up with the report rows.
func (s *Study) Report(ctx context.Context, opts ReportOptions) (*report.Report, []Result, error) {
	pop, err := s.requirePopulation()
	if err != nil {
		return nil, nil, err
	}
	categories := opts.Categories
	if len(categories) == 0 {
		categories = s.Categories()
	}
	if len(categories) == 0 {
		return nil, nil, &dataset.EmptyInputError{What: "service categories"}
	}

	_, weighted := pop.(*dataset.WeightedPoints)
	if !weighted {
		s.log.Warn("analysis: population has no headcounts, skipping equity metrics",
			zap.String("study", s.name))
	}

	rows := make([]report.Row, len(categories))
	results := make([]Result, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCategories)
	for i, name := range categories {
		g.Go(func() error {
			res, err := s.Accessibility(gctx, name, opts.Threshold, opts.Mode)
			if err != nil {
				return err
			}
			svc, err := s.Services(name)
			if err != nil {
				return err
			}
			row := report.Row{Category: name, Services: svc.Len(), Coverage: res.Coverage}
			if weighted {
				var stats equity.Stats
				if stats, err = s.PerCapita(name); err != nil {
					return err
				}
				row.Equity = &stats
			}
			rows[i] = row
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	r := report.New(s.name, opts.Mode)
	for _, row := range rows {
		r.Add(row)
	}
	s.log.Info("analysis: report complete",
		zap.String("study", s.name),
		zap.String("report_id", r.ID),
		zap.String("mode", opts.Mode),
		zap.Int("categories", len(rows)))
	return r, results, nil
}
