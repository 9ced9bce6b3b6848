package analysis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/access-cli/internal/category"
	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/network"
)

var frame = dataset.FrameFromSRID(dataset.SRIDWebMercator)

func weightedPopulation(t *testing.T) *dataset.WeightedPoints {
	t.Helper()
	p, err := dataset.NewWeightedPoints(frame,
		[]dataset.Point{{X: 0}, {X: 1000}, {X: 5000}},
		[]float64{10, 20, 5})
	require.NoError(t, err)
	return p
}

// streetGraph is a two-way street with nodes every 1000 m and 72 s per block.
func streetGraph(t *testing.T) *network.Graph {
	t.Helper()
	b := network.NewBuilder(frame)
	var prev network.NodeID
	for i := 0; i < 6; i++ {
		id := b.AddNode(dataset.Point{X: float64(i) * 1000})
		if i > 0 {
			b.AddStreet(prev, id, 1000, 72)
		}
		prev = id
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func testStudy(t *testing.T, opts ...Option) (*Study, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	s := New("riverside", append([]Option{WithLogger(zap.New(core))}, opts...)...)
	s.SetPopulation(weightedPopulation(t))
	s.SetServices(category.Healthcare, dataset.NewServices(frame, []dataset.Point{{X: 10}, {X: 2000}}))
	s.SetServices(category.Food, dataset.NewServices(frame, nil))
	require.NoError(t, s.AddNetwork("drive", streetGraph(t)))
	return s, logs
}

func TestAccessibility_Euclidean(t *testing.T) {
	s, _ := testStudy(t)

	res, err := s.Accessibility(context.Background(), category.Healthcare, 1000, ModeEuclidean)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Coverage.CoveredPopulation)
	assert.Equal(t, 35.0, res.Coverage.TotalPopulation)
	assert.Equal(t, dataset.Meters, res.Coverage.Unit)
	assert.InDelta(t, 990.0, res.Annotated.Distances()[1], 1e-9)
}

func TestAccessibility_NetworkMinutes(t *testing.T) {
	s, _ := testStudy(t)

	res, err := s.Accessibility(context.Background(), category.Healthcare, 3, "drive")
	require.NoError(t, err)
	assert.Equal(t, dataset.Minutes, res.Coverage.Unit)
	assert.Equal(t, 3.0, res.Coverage.Threshold)
	assert.Equal(t, 30.0, res.Coverage.CoveredPopulation)

	d := res.Annotated.Distances()
	require.Len(t, d, 3)
	assert.InDelta(t, 0.0, d[0], 1e-9)
	assert.InDelta(t, 1.2, d[1], 1e-9)
	assert.InDelta(t, 3.6, d[2], 1e-9)
}

func TestAccessibility_NetworkLength(t *testing.T) {
	s, _ := testStudy(t, WithMetric(network.Length))
	assert.Equal(t, dataset.Meters, s.Unit("drive"))

	res, err := s.Accessibility(context.Background(), category.Healthcare, 1000, "drive")
	require.NoError(t, err)
	assert.Equal(t, dataset.Meters, res.Coverage.Unit)
	assert.Equal(t, 30.0, res.Coverage.CoveredPopulation)
	assert.InDelta(t, 3000.0, res.Annotated.Distances()[2], 1e-9)
}

func TestAccessibility_NoServices(t *testing.T) {
	s, logs := testStudy(t)

	res, err := s.Accessibility(context.Background(), category.Food, 1000, ModeEuclidean)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Coverage.CoverageRatio)
	assert.True(t, math.IsInf(res.Annotated.Distances()[0], 1))
	assert.Equal(t, 1, logs.FilterMessageSnippet("no services").Len())
}

func TestAccessibility_MissingPopulation(t *testing.T) {
	s := New("empty")
	s.SetServices(category.Food, dataset.NewServices(frame, nil))

	_, err := s.Accessibility(context.Background(), category.Food, 1000, ModeEuclidean)
	assert.ErrorIs(t, err, ErrNoPopulation)

	_, err = s.PerCapita(category.Food)
	assert.ErrorIs(t, err, ErrNoPopulation)
}

func TestAccessibility_MissingCategory(t *testing.T) {
	s, _ := testStudy(t)

	_, err := s.Accessibility(context.Background(), category.Emergency, 1000, ModeEuclidean)
	var nf *dataset.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, category.Emergency, nf.Key)
	assert.Equal(t, []string{category.Food, category.Healthcare}, nf.Available)
}

func TestAccessibility_MissingNetwork(t *testing.T) {
	s, _ := testStudy(t)

	_, err := s.Accessibility(context.Background(), category.Healthcare, 10, "walk")
	var nf *dataset.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "network", nf.Kind)
	assert.Equal(t, []string{ModeEuclidean, "drive"}, nf.Available)
}

func TestAddNetwork(t *testing.T) {
	s := New("riverside")
	assert.Error(t, s.AddNetwork(ModeEuclidean, streetGraph(t)))

	err := s.AddNetwork("walk", nil)
	var invalid *dataset.InvalidGraphError
	assert.True(t, errors.As(err, &invalid))

	require.NoError(t, s.AddNetwork("walk", streetGraph(t)))
	require.NoError(t, s.AddNetwork("bike", streetGraph(t)))
	assert.Equal(t, []string{"bike", "walk"}, s.Networks())
}

func TestMergeCatalog(t *testing.T) {
	s := New("riverside")
	c := dataset.NewCatalog()
	c.Put(category.Healthcare, dataset.NewServices(frame, []dataset.Point{{X: 1}}))
	c.Put(category.GreenSpace, dataset.NewServices(frame, nil))

	require.NoError(t, s.MergeCatalog(c))
	assert.Equal(t, []string{category.GreenSpace, category.Healthcare}, s.Categories())

	svc, err := s.Services(category.Healthcare)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())
}

func TestPerCapita(t *testing.T) {
	s, _ := testStudy(t)

	stats, err := s.PerCapita(category.Healthcare)
	require.NoError(t, err)
	assert.InDelta(t, 57.142857, stats.ServicesPer1000, 1e-6)
	assert.InDelta(t, 17.5, stats.PeoplePerService, 1e-9)

	stats, err = s.PerCapita(category.Food)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.ServicesPer1000)
	assert.True(t, math.IsInf(stats.PeoplePerService, 1))
}

func TestPerCapita_Unweighted(t *testing.T) {
	s, _ := testStudy(t)
	s.SetPopulation(dataset.NewUnweightedPoints(frame, []dataset.Point{{X: 0}}))

	_, err := s.PerCapita(category.Healthcare)
	var missing *dataset.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, dataset.WeightColumn, missing.Column)
}
