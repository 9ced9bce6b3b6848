package report

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/access"
	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/db"
)

// Columns written by SavePostgres. The target table needs a unique
// constraint on (study, mode, category).
var coverageColumns = []string{
	"report_id", "study", "mode", "category", "services",
	"covered_population", "total_population", "coverage_ratio", "weighted",
	"threshold", "unit", "services_per_1000", "people_per_service", "created_at",
}

// Columns written by SaveDistances.
var distanceColumns = []string{"report_id", "category", "row", "x", "y", "weight", "distance", "unit"}

// SavePostgres upserts one row per category into table. Rerunning a study
// with the same mode replaces its earlier rows.
func SavePostgres(ctx context.Context, pool db.Pool, table string, r *Report) (int64, error) {
	if r == nil {
		return 0, eris.New("report: nil report")
	}
	rows := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		c := row.Coverage
		var per1000, burden any
		if row.Equity != nil {
			per1000, burden = row.Equity.ServicesPer1000, row.Equity.PeoplePerService
		}
		rows = append(rows, []any{
			r.ID, r.Study, r.Mode, row.Category, row.Services,
			c.CoveredPopulation, c.TotalPopulation, c.CoverageRatio, c.Weighted,
			c.Threshold, string(c.Unit), per1000, burden, r.CreatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        table,
		Columns:      coverageColumns,
		ConflictKeys: []string{"study", "mode", "category"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "report: save %s", table)
	}
	zap.L().Info("report: saved coverage",
		zap.String("table", table),
		zap.String("report_id", r.ID),
		zap.Int64("rows", n))
	return n, nil
}

// SaveDistances copies the per-location distance column of one category
// into table, tagged with the report ID.
func SaveDistances(ctx context.Context, pool db.Pool, table, reportID, category string, a *access.Annotated) (int64, error) {
	if a == nil {
		return 0, eris.New("report: nil annotated population")
	}
	col, err := a.Column(access.DistanceColumn)
	if err != nil {
		return 0, err
	}

	pop := a.Population()
	var weights []float64
	if w, ok := pop.(*dataset.WeightedPoints); ok {
		weights = w.Weights()
	}

	rows := make([][]any, pop.Len())
	for i, p := range pop.Points() {
		var weight any
		if weights != nil {
			weight = weights[i]
		}
		rows[i] = []any{reportID, category, i, p.X, p.Y, weight, col.Values[i], string(col.Unit)}
	}

	n, err := db.CopyFrom(ctx, pool, table, distanceColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "report: save distances for %s", category)
	}
	return n, nil
}
