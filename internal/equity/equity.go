// Package equity computes per-capita service density and the population
// burden carried by each service. It needs no spatial index: both metrics
// are pure count and sum arithmetic.
package equity

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
)

// Stats holds both equity metrics for one service category.
type Stats struct {
	ServicesPer1000  float64 `json:"services_per_1000" yaml:"services_per_1000"`
	PeoplePerService float64 `json:"people_per_service" yaml:"people_per_service"`
}

// Calculator computes equity metrics.
type Calculator struct {
	log *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the diagnostics logger. Default zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) {
		c.log = l
	}
}

// NewCalculator creates a Calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{log: zap.L()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServicesPer1000 returns services per 1000 people. With zero population the
// density is +Inf when any service exists and 0 otherwise. A population
// without headcounts fails with *dataset.MissingColumnError.
func (c *Calculator) ServicesPer1000(pop dataset.Population, svc *dataset.Services) (float64, error) {
	total, n, err := c.totals(pop, svc)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		if n > 0 {
			return math.Inf(1), nil
		}
		return 0, nil
	}
	return float64(n) / total * 1000, nil
}

// PeoplePerService returns the average population served by one service.
// With zero services the burden is +Inf when anyone lives in the area and 0
// otherwise.
func (c *Calculator) PeoplePerService(pop dataset.Population, svc *dataset.Services) (float64, error) {
	total, n, err := c.totals(pop, svc)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		if total > 0 {
			return math.Inf(1), nil
		}
		return 0, nil
	}
	return total / float64(n), nil
}

// Compute returns both metrics.
func (c *Calculator) Compute(pop dataset.Population, svc *dataset.Services) (Stats, error) {
	density, err := c.ServicesPer1000(pop, svc)
	if err != nil {
		return Stats{}, err
	}
	burden, err := c.PeoplePerService(pop, svc)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ServicesPer1000: density, PeoplePerService: burden}, nil
}

func (c *Calculator) totals(pop dataset.Population, svc *dataset.Services) (float64, int, error) {
	if pop == nil || svc == nil {
		return 0, 0, eris.New("equity: population and services are required")
	}
	weighted, ok := pop.(*dataset.WeightedPoints)
	if !ok {
		return 0, 0, &dataset.MissingColumnError{Column: dataset.WeightColumn}
	}
	total := weighted.Total()
	if total == 0 {
		c.log.Warn("equity: total population is zero",
			zap.Int("locations", weighted.Len()),
			zap.Int("services", svc.Len()))
	}
	if svc.Empty() {
		c.log.Warn("equity: no services provided", zap.Float64("population", total))
	}
	return total, svc.Len(), nil
}
