// Package access computes per-person distances to the nearest service and the
// share of the population covered within a threshold.
package access

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/network"
	"github.com/sells-group/access-cli/internal/spatial"
)

var errMissingInput = eris.New("access: population and services are required")

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the diagnostics logger. Default zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) {
		c.log = l
	}
}

// WithWorkers caps goroutines used by Euclidean batch queries.
func WithWorkers(n int) Option {
	return func(c *Calculator) {
		c.workers = n
	}
}

// Calculator annotates populations with nearest-service distances. It holds
// no per-call state and is safe for concurrent use.
type Calculator struct {
	log     *zap.Logger
	workers int
}

// NewCalculator creates a Calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{log: zap.L()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NearestDistance annotates every population point with the straight-line
// distance (meters) to its nearest service. With no services every point is
// +Inf away. The input population is never modified.
func (c *Calculator) NearestDistance(ctx context.Context, pop dataset.Population, svc *dataset.Services) (*Annotated, error) {
	if pop == nil || svc == nil {
		return nil, errMissingInput
	}
	if err := c.checkFrames(pop, svc.Frame()); err != nil {
		return nil, err
	}

	col := dataset.Column{Name: DistanceColumn, Unit: dataset.Meters}
	if svc.Empty() {
		c.log.Warn("access: no services provided, treating every point as infinitely far",
			zap.Int("points", pop.Len()))
		col.Values = infinities(pop.Len())
		return Annotate(pop).WithColumn(col), nil
	}

	idx, err := spatial.Build(svc.Points(), spatial.WithWorkers(c.workers))
	if err != nil {
		return nil, eris.Wrap(err, "access: build service index")
	}
	values, err := idx.NearestDistances(ctx, pop.Points())
	if err != nil {
		return nil, eris.Wrap(err, "access: query nearest services")
	}
	col.Values = values
	return Annotate(pop).WithColumn(col), nil
}

// NetworkDistance routes over g from every population point to its nearest
// service. Distances are in metric's unit: meters for network.Length,
// seconds for network.TravelTime. An empty or invalid graph fails with
// *dataset.InvalidGraphError.
func (c *Calculator) NetworkDistance(ctx context.Context, pop dataset.Population, svc *dataset.Services, g *network.Graph, metric network.Metric) (*Annotated, error) {
	r, err := network.NewRouter(g, network.WithLogger(c.log))
	if err != nil {
		return nil, err
	}
	return c.RouterDistance(ctx, pop, svc, r, metric)
}

// RouterDistance is NetworkDistance with a prepared router, so several
// service categories can share one snapped graph.
func (c *Calculator) RouterDistance(ctx context.Context, pop dataset.Population, svc *dataset.Services, r *network.Router, metric network.Metric) (*Annotated, error) {
	if pop == nil || svc == nil {
		return nil, errMissingInput
	}
	if r == nil {
		return nil, &dataset.InvalidGraphError{Reason: "nil router"}
	}
	if err := c.checkFrames(pop, svc.Frame()); err != nil {
		return nil, err
	}
	if _, err := dataset.CheckFrames(pop.Frame(), r.Graph().Frame()); err != nil {
		return nil, err
	}

	if svc.Empty() {
		c.log.Warn("access: no services provided, treating every point as unreachable",
			zap.Int("points", pop.Len()),
			zap.String("metric", string(metric)))
		col := dataset.Column{Name: DistanceColumn, Unit: metric.Unit(), Values: infinities(pop.Len())}
		return Annotate(pop).WithColumn(col), nil
	}

	col, err := r.Distances(ctx, pop.Points(), svc.Points(), metric)
	if err != nil {
		return nil, eris.Wrap(err, "access: route to services")
	}
	col.Name = DistanceColumn
	return Annotate(pop).WithColumn(col), nil
}

// checkFrames rejects mismatched frames and warns on angular ones, where a
// meter threshold is meaningless but the arithmetic still "works".
func (c *Calculator) checkFrames(pop dataset.Population, svc dataset.Frame) error {
	geographic, err := dataset.CheckFrames(pop.Frame(), svc)
	if err != nil {
		return err
	}
	if geographic {
		c.log.Warn("access: coordinates are in degrees; project to a metric frame before comparing distances",
			zap.Stringer("frame", pop.Frame()))
	}
	return nil
}

func infinities(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Inf(1)
	}
	return out
}
