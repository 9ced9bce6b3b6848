// Package analysis ties a population, a service catalog and any number of
// named street networks into a study that answers accessibility and equity
// questions per service category.
package analysis

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/access"
	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/equity"
	"github.com/sells-group/access-cli/internal/network"
)

// ModeEuclidean measures straight-line distance in meters. Any other mode
// names a registered street network.
const ModeEuclidean = "euclidean"

// ErrNoPopulation is returned by operations that need a population before
// one was set.
var ErrNoPopulation = eris.New("analysis: no population loaded; set one before computing metrics")

// Option configures a Study.
type Option func(*Study)

// WithLogger sets the logger passed down to the calculators. Default zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(s *Study) {
		s.log = l
	}
}

// WithWorkers caps goroutines used by Euclidean batch queries.
func WithWorkers(n int) Option {
	return func(s *Study) {
		s.workers = n
	}
}

// WithMetric selects the edge weight used in network modes. Default
// network.TravelTime, reported in minutes.
func WithMetric(m network.Metric) Option {
	return func(s *Study) {
		s.metric = m
	}
}

// WithDirection sets the traversal direction for networks added afterwards.
func WithDirection(d network.Direction) Option {
	return func(s *Study) {
		s.direction = d
	}
}

// Study holds the inputs of one analysis area. Loading methods may be called
// at any time; metric methods see the inputs present when they start.
type Study struct {
	name      string
	log       *zap.Logger
	workers   int
	metric    network.Metric
	direction network.Direction

	mu         sync.RWMutex
	population dataset.Population
	catalog    *dataset.Catalog
	networks   map[string]*network.Router
}

// New creates an empty study.
func New(name string, opts ...Option) *Study {
	s := &Study{
		name:     name,
		log:      zap.L(),
		metric:   network.TravelTime,
		catalog:  dataset.NewCatalog(),
		networks: map[string]*network.Router{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the study name.
func (s *Study) Name() string { return s.name }

// SetPopulation replaces the population.
func (s *Study) SetPopulation(p dataset.Population) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.population = p
}

// Population returns the current population, or nil.
func (s *Study) Population() dataset.Population {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.population
}

// SetServices stores services under category, replacing any earlier set.
func (s *Study) SetServices(category string, svc *dataset.Services) {
	s.catalog.Put(category, svc)
}

// MergeCatalog stores every category of c.
func (s *Study) MergeCatalog(c *dataset.Catalog) error {
	for _, name := range c.Categories() {
		svc, err := c.Get(name)
		if err != nil {
			return err
		}
		s.catalog.Put(name, svc)
	}
	return nil
}

// Services looks up one category.
func (s *Study) Services(category string) (*dataset.Services, error) {
	return s.catalog.Get(category)
}

// Categories lists loaded service categories in sorted order.
func (s *Study) Categories() []string {
	return s.catalog.Categories()
}

// AddNetwork prepares a router over g and registers it under name.
func (s *Study) AddNetwork(name string, g *network.Graph) error {
	if name == ModeEuclidean {
		return eris.Errorf("analysis: %q is reserved for straight-line distance", name)
	}
	r, err := network.NewRouter(g, network.WithDirection(s.direction), network.WithLogger(s.log))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[name] = r
	s.log.Debug("analysis: registered network",
		zap.String("network", name),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()))
	return nil
}

// Networks lists registered network names in sorted order.
func (s *Study) Networks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.networks))
	for k := range s.networks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of one accessibility run.
type Result struct {
	Annotated *access.Annotated
	Coverage  access.CoverageStats
}

// Unit is the unit Accessibility thresholds are given in for mode.
func (s *Study) Unit(mode string) dataset.Unit {
	if mode == ModeEuclidean {
		return dataset.Meters
	}
	if s.metric == network.Length {
		return dataset.Meters
	}
	return dataset.Minutes
}

// Accessibility measures how far each person is from the nearest service in
// category and how many live within threshold. In euclidean mode the
// threshold is in meters. Any other mode names a network added with
// AddNetwork; with the default travel-time metric distances are reported
// and compared in minutes.
func (s *Study) Accessibility(ctx context.Context, category string, threshold float64, mode string) (Result, error) {
	pop, err := s.requirePopulation()
	if err != nil {
		return Result{}, err
	}
	svc, err := s.catalog.Get(category)
	if err != nil {
		return Result{}, err
	}

	calc := access.NewCalculator(access.WithLogger(s.log), access.WithWorkers(s.workers))

	var annotated *access.Annotated
	if mode == ModeEuclidean {
		annotated, err = calc.NearestDistance(ctx, pop, svc)
	} else {
		annotated, err = s.routeDistance(ctx, calc, pop, svc, mode)
	}
	if err != nil {
		return Result{}, err
	}

	stats, err := calc.Coverage(annotated, access.DistanceColumn, dataset.Distance{Value: threshold, Unit: s.Unit(mode)})
	if err != nil {
		return Result{}, err
	}
	s.log.Debug("analysis: accessibility",
		zap.String("study", s.name),
		zap.String("category", category),
		zap.String("mode", mode),
		zap.Float64("coverage_ratio", stats.CoverageRatio))
	return Result{Annotated: annotated, Coverage: stats}, nil
}

func (s *Study) routeDistance(ctx context.Context, calc *access.Calculator, pop dataset.Population, svc *dataset.Services, mode string) (*access.Annotated, error) {
	s.mu.RLock()
	r, ok := s.networks[mode]
	s.mu.RUnlock()
	if !ok {
		return nil, &dataset.NotFoundError{Kind: "network", Key: mode, Available: append([]string{ModeEuclidean}, s.Networks()...)}
	}

	annotated, err := calc.RouterDistance(ctx, pop, svc, r, s.metric)
	if err != nil {
		return nil, err
	}
	if s.metric != network.TravelTime {
		return annotated, nil
	}

	col, err := annotated.Column(access.DistanceColumn)
	if err != nil {
		return nil, err
	}
	minutes, err := col.Convert(dataset.Minutes)
	if err != nil {
		return nil, err
	}
	return annotated.WithColumn(minutes), nil
}

// PerCapita computes equity metrics for category. The population must carry
// headcounts.
func (s *Study) PerCapita(category string) (equity.Stats, error) {
	pop, err := s.requirePopulation()
	if err != nil {
		return equity.Stats{}, err
	}
	svc, err := s.catalog.Get(category)
	if err != nil {
		return equity.Stats{}, err
	}
	return equity.NewCalculator(equity.WithLogger(s.log)).Compute(pop, svc)
}

func (s *Study) requirePopulation() (dataset.Population, error) {
	pop := s.Population()
	if pop == nil {
		return nil, ErrNoPopulation
	}
	return pop, nil
}
