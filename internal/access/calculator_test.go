package access

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/network"
)

var webMercator = dataset.FrameFromSRID(dataset.SRIDWebMercator)

// population: (0,0) x10, (1000,0) x20, (5000,0) x5.
func testPopulation(t *testing.T) *dataset.WeightedPoints {
	t.Helper()
	p, err := dataset.NewWeightedPoints(webMercator,
		[]dataset.Point{{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 5000, Y: 0}},
		[]float64{10, 20, 5})
	require.NoError(t, err)
	return p
}

func testServices() *dataset.Services {
	return dataset.NewServices(webMercator, []dataset.Point{{X: 10, Y: 0}, {X: 2000, Y: 0}})
}

func observed(level zapcore.Level) (*Calculator, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewCalculator(WithLogger(zap.New(core))), logs
}

func TestNearestDistance(t *testing.T) {
	c, logs := observed(zapcore.WarnLevel)

	res, err := c.NearestDistance(context.Background(), testPopulation(t), testServices())
	require.NoError(t, err)

	col, err := res.Column(DistanceColumn)
	require.NoError(t, err)
	assert.Equal(t, dataset.Meters, col.Unit)
	require.Len(t, col.Values, 3)
	assert.InDelta(t, 10.0, col.Values[0], 1e-9)
	assert.InDelta(t, 990.0, col.Values[1], 1e-9)
	assert.InDelta(t, 3000.0, col.Values[2], 1e-9)
	assert.Equal(t, 0, logs.Len())
}

func TestCoverage(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	res, err := c.NearestDistance(context.Background(), testPopulation(t), testServices())
	require.NoError(t, err)

	stats, err := c.Coverage(res, DistanceColumn, dataset.MetersOf(1000))
	require.NoError(t, err)
	assert.Equal(t, 35.0, stats.TotalPopulation)
	assert.Equal(t, 30.0, stats.CoveredPopulation)
	assert.InDelta(t, 30.0/35.0, stats.CoverageRatio, 1e-9)
	assert.True(t, stats.Weighted)
	assert.Equal(t, dataset.Meters, stats.Unit)
	assert.Equal(t, 1000.0, stats.Threshold)
}

func TestCoverage_BoundaryInclusive(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	res, err := c.NearestDistance(context.Background(), testPopulation(t), testServices())
	require.NoError(t, err)

	// The second point is exactly 990 m away.
	stats, err := c.Coverage(res, DistanceColumn, dataset.MetersOf(990))
	require.NoError(t, err)
	assert.Equal(t, 30.0, stats.CoveredPopulation)

	stats, err = c.Coverage(res, DistanceColumn, dataset.MetersOf(989.999))
	require.NoError(t, err)
	assert.Equal(t, 10.0, stats.CoveredPopulation)
}

func TestNearestDistance_NoServices(t *testing.T) {
	c, logs := observed(zapcore.WarnLevel)

	empty := dataset.NewServices(webMercator, nil)
	res, err := c.NearestDistance(context.Background(), testPopulation(t), empty)
	require.NoError(t, err)
	for _, d := range res.Distances() {
		assert.True(t, math.IsInf(d, 1))
	}
	assert.Equal(t, 1, logs.FilterMessageSnippet("no services").Len())

	stats, err := c.Coverage(res, DistanceColumn, dataset.MetersOf(1000))
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.CoveredPopulation)
	assert.Equal(t, 0.0, stats.CoverageRatio)
	assert.Equal(t, 35.0, stats.TotalPopulation)
}

func TestNearestDistance_GeographicFrameWarns(t *testing.T) {
	c, logs := observed(zapcore.WarnLevel)
	wgs84 := dataset.FrameFromSRID(dataset.SRIDWGS84)

	pop := dataset.NewUnweightedPoints(wgs84, []dataset.Point{{X: 13.4, Y: 52.5}})
	svc := dataset.NewServices(wgs84, []dataset.Point{{X: 13.41, Y: 52.5}})
	res, err := c.NearestDistance(context.Background(), pop, svc)
	require.NoError(t, err)
	assert.Len(t, res.Distances(), 1)
	assert.Equal(t, 1, logs.FilterMessageSnippet("degrees").Len())
}

func TestNearestDistance_FrameMismatch(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	utm := dataset.FrameFromSRID(32633)
	svc := dataset.NewServices(utm, []dataset.Point{{X: 1, Y: 1}})

	_, err := c.NearestDistance(context.Background(), testPopulation(t), svc)
	var mismatch *dataset.FrameMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestNearestDistance_NilInputs(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	_, err := c.NearestDistance(context.Background(), nil, testServices())
	assert.Error(t, err)
	_, err = c.NearestDistance(context.Background(), testPopulation(t), nil)
	assert.Error(t, err)
}

func TestNearestDistance_DoesNotMutateInput(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	pop := testPopulation(t)
	beforePoints, beforeWeights := pop.Points(), pop.Weights()

	res, err := c.NearestDistance(context.Background(), pop, testServices())
	require.NoError(t, err)
	_, err = c.Coverage(res, DistanceColumn, dataset.MetersOf(1000))
	require.NoError(t, err)

	assert.Equal(t, beforePoints, pop.Points())
	assert.Equal(t, beforeWeights, pop.Weights())
	assert.Same(t, pop, res.Population())
	assert.Equal(t, []string{DistanceColumn}, res.Columns())
}

func TestCoverage_MissingColumn(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	_, err := c.Coverage(Annotate(testPopulation(t)), DistanceColumn, dataset.MetersOf(1000))
	var missing *dataset.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, DistanceColumn, missing.Column)
}

func TestCoverage_Unweighted(t *testing.T) {
	c, logs := observed(zapcore.WarnLevel)
	pop := dataset.NewUnweightedPoints(webMercator, []dataset.Point{{X: 0}, {X: 1000}, {X: 5000}})

	res, err := c.NearestDistance(context.Background(), pop, testServices())
	require.NoError(t, err)
	stats, err := c.Coverage(res, DistanceColumn, dataset.MetersOf(1000))
	require.NoError(t, err)

	assert.False(t, stats.Weighted)
	assert.Equal(t, 3.0, stats.TotalPopulation)
	assert.Equal(t, 2.0, stats.CoveredPopulation)
	assert.InDelta(t, 2.0/3.0, stats.CoverageRatio, 1e-9)
	assert.Equal(t, 1, logs.FilterMessageSnippet("counting locations").Len())
}

func TestCoverage_EmptyPopulation(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	pop, err := dataset.NewWeightedPoints(webMercator, nil, nil)
	require.NoError(t, err)

	res, err := c.NearestDistance(context.Background(), pop, testServices())
	require.NoError(t, err)
	stats, err := c.Coverage(res, DistanceColumn, dataset.MetersOf(1000))
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.TotalPopulation)
	assert.Equal(t, 0.0, stats.CoverageRatio)
}

func TestCoverage_UnitMismatch(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	res, err := c.NearestDistance(context.Background(), testPopulation(t), testServices())
	require.NoError(t, err)

	_, err = c.Coverage(res, DistanceColumn, dataset.MinutesOf(15))
	var um *dataset.UnitMismatchError
	assert.True(t, errors.As(err, &um))
}

func TestCoverage_RatioBounds(t *testing.T) {
	c, _ := observed(zapcore.ErrorLevel)
	r := rand.New(rand.NewPCG(21, 42))

	for trial := 0; trial < 20; trial++ {
		n := 1 + r.IntN(200)
		pts := make([]dataset.Point, n)
		weights := make([]float64, n)
		for i := range pts {
			pts[i] = dataset.Point{X: r.Float64() * 10000, Y: r.Float64() * 10000}
			weights[i] = r.Float64() * 100
		}
		pop, err := dataset.NewWeightedPoints(webMercator, pts, weights)
		require.NoError(t, err)
		svc := dataset.NewServices(webMercator, []dataset.Point{{X: r.Float64() * 10000, Y: r.Float64() * 10000}})

		res, err := c.NearestDistance(context.Background(), pop, svc)
		require.NoError(t, err)
		require.Len(t, res.Distances(), n)
		for _, d := range res.Distances() {
			assert.GreaterOrEqual(t, d, 0.0)
		}
		stats, err := c.Coverage(res, DistanceColumn, dataset.MetersOf(r.Float64()*8000))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.CoverageRatio, 0.0)
		assert.LessOrEqual(t, stats.CoverageRatio, 1.0)
	}
}

// streetGraph: nodes every 1000 m on the x axis from 0 to 5000, 72 s per hop
// (50 km/h).
func streetGraph(t *testing.T) *network.Graph {
	t.Helper()
	b := network.NewBuilder(webMercator)
	for i := 0; i <= 5; i++ {
		b.AddNode(dataset.Point{X: float64(i) * 1000})
	}
	for i := 0; i < 5; i++ {
		b.AddStreet(network.NodeID(i), network.NodeID(i+1), 1000, 72)
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestNetworkDistance(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)

	res, err := c.NetworkDistance(context.Background(), testPopulation(t), testServices(), streetGraph(t), network.Length)
	require.NoError(t, err)
	col, err := res.Column(DistanceColumn)
	require.NoError(t, err)
	assert.Equal(t, dataset.Meters, col.Unit)
	// Services snap to nodes 0 and 2.
	assert.Equal(t, []float64{0, 1000, 3000}, col.Values)

	res, err = c.NetworkDistance(context.Background(), testPopulation(t), testServices(), streetGraph(t), network.TravelTime)
	require.NoError(t, err)
	col, err = res.Column(DistanceColumn)
	require.NoError(t, err)
	assert.Equal(t, dataset.Seconds, col.Unit)
	assert.Equal(t, []float64{0, 72, 216}, col.Values)

	// 3 minutes = 180 s covers the first two points only.
	stats, err := c.Coverage(res, DistanceColumn, dataset.MinutesOf(3))
	require.NoError(t, err)
	assert.Equal(t, 30.0, stats.CoveredPopulation)
	assert.Equal(t, 180.0, stats.Threshold)
}

func TestNetworkDistance_EmptyGraph(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	_, err := c.NetworkDistance(context.Background(), testPopulation(t), testServices(), nil, network.Length)

	var invalid *dataset.InvalidGraphError
	require.True(t, errors.As(err, &invalid))
	var empty *dataset.EmptyInputError
	assert.True(t, errors.As(err, &empty))
}

func TestNetworkDistance_NoServices(t *testing.T) {
	c, logs := observed(zapcore.WarnLevel)
	empty := dataset.NewServices(webMercator, nil)

	res, err := c.NetworkDistance(context.Background(), testPopulation(t), empty, streetGraph(t), network.TravelTime)
	require.NoError(t, err)
	for _, d := range res.Distances() {
		assert.True(t, math.IsInf(d, 1))
	}
	assert.Equal(t, 1, logs.FilterMessageSnippet("unreachable").Len())
}

func TestNetworkDistance_GraphFrameMismatch(t *testing.T) {
	c, _ := observed(zapcore.WarnLevel)
	b := network.NewBuilder(dataset.FrameFromSRID(32633))
	b.AddNode(dataset.Point{})
	g, err := b.Build()
	require.NoError(t, err)

	_, err = c.NetworkDistance(context.Background(), testPopulation(t), testServices(), g, network.Length)
	var mismatch *dataset.FrameMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestAnnotated_WithColumnCopyOnWrite(t *testing.T) {
	base := Annotate(testPopulation(t))
	vals := []float64{1, 2, 3}
	a := base.WithColumn(dataset.Column{Name: "walk", Unit: dataset.Minutes, Values: vals})
	vals[0] = 99

	col, err := a.Column("walk")
	require.NoError(t, err)
	assert.Equal(t, 1.0, col.Values[0])
	assert.Empty(t, base.Columns())
	assert.Nil(t, base.Distances())
	assert.Equal(t, 3, a.Len())
}
