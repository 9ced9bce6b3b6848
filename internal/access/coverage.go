package access

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
)

// CoverageStats is the outcome of one coverage aggregation. Weighted is
// false when the population had no headcounts, in which case the totals count
// locations rather than people. Threshold is expressed in Unit.
type CoverageStats struct {
	CoverageRatio     float64      `json:"coverage_ratio" yaml:"coverage_ratio"`
	CoveredPopulation float64      `json:"covered_population" yaml:"covered_population"`
	TotalPopulation   float64      `json:"total_population" yaml:"total_population"`
	Weighted          bool         `json:"weighted" yaml:"weighted"`
	Threshold         float64      `json:"threshold" yaml:"threshold"`
	Unit              dataset.Unit `json:"unit" yaml:"unit"`
}

// Coverage sums population within threshold of a service. A point exactly at
// the threshold is covered. The threshold is converted into the column's
// unit; comparing time with length fails with *dataset.UnitMismatchError.
// An empty population has a ratio of 0.
func (c *Calculator) Coverage(a *Annotated, column string, threshold dataset.Distance) (CoverageStats, error) {
	if a == nil {
		return CoverageStats{}, eris.New("access: nil annotated population")
	}
	col, err := a.Column(column)
	if err != nil {
		return CoverageStats{}, err
	}
	limit, err := threshold.In(col.Unit)
	if err != nil {
		return CoverageStats{}, err
	}

	weights, weighted := dataset.CountWeights(a.Population())
	if !weighted {
		c.log.Warn("access: population has no weights, counting locations instead of people",
			zap.String("column", dataset.WeightColumn),
			zap.Int("locations", len(weights)))
	}

	stats := CoverageStats{Weighted: weighted, Threshold: limit.Value, Unit: col.Unit}
	for i, w := range weights {
		stats.TotalPopulation += w
		if col.Values[i] <= limit.Value {
			stats.CoveredPopulation += w
		}
	}
	if stats.TotalPopulation > 0 {
		stats.CoverageRatio = stats.CoveredPopulation / stats.TotalPopulation
	}
	return stats, nil
}
