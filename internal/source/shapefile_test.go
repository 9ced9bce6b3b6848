package source

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/access-cli/internal/category"
	"github.com/sells-group/access-cli/internal/dataset"
)

func writePointShapefile(t *testing.T, withWeights bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocks.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	fields := []shp.Field{shp.StringField("NAME", 16)}
	if withWeights {
		fields = append(fields, shp.FloatField("POPULATION", 12, 2))
	}
	require.NoError(t, w.SetFields(fields))

	pts := []shp.Point{{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 5000, Y: 0}}
	weights := []float64{10, 20, 5}
	for i := range pts {
		n := w.Write(&pts[i])
		require.NoError(t, w.WriteAttribute(int(n), 0, "block"))
		if withWeights {
			require.NoError(t, w.WriteAttribute(int(n), 1, weights[i]))
		}
	}
	w.Close()
	return path
}

func TestReadPopulationShapefile(t *testing.T) {
	pop, err := ReadPopulationShapefile(writePointShapefile(t, true), frame)
	require.NoError(t, err)

	w, ok := pop.(*dataset.WeightedPoints)
	require.True(t, ok)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 35.0, w.Total())
	assert.Equal(t, dataset.Point{X: 5000}, w.Point(2))
}

func TestReadPopulationShapefile_Unweighted(t *testing.T) {
	pop, err := ReadPopulationShapefile(writePointShapefile(t, false), frame)
	require.NoError(t, err)
	_, ok := pop.(*dataset.UnweightedPoints)
	assert.True(t, ok)
	assert.Equal(t, 3, pop.Len())
}

func TestReadPopulationShapefile_Missing(t *testing.T) {
	_, err := ReadPopulationShapefile(filepath.Join(t.TempDir(), "nope.shp"), frame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func TestReadCatalogShapefile_Polygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("AMENITY", 24)}))

	square := func(x0, y0, size float64) *shp.Polygon {
		ring := []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y0 + size}, {X: x0 + size, Y: y0 + size}, {X: x0 + size, Y: y0}, {X: x0, Y: y0}}
		p := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		return &p
	}
	for i, rec := range []struct {
		shape   *shp.Polygon
		amenity string
	}{
		{square(0, 0, 10), "hospital"},
		{square(100, 100, 20), "school"},
		{square(500, 500, 5), "parking"},
	} {
		n := w.Write(rec.shape)
		require.Equal(t, int32(i), n)
		require.NoError(t, w.WriteAttribute(int(n), 0, rec.amenity))
	}
	w.Close()

	cat, err := ReadCatalogShapefile(path, frame)
	require.NoError(t, err)

	health, err := cat.Get(category.Healthcare)
	require.NoError(t, err)
	require.Equal(t, 1, health.Len())
	assert.InDelta(t, 5.0, health.Points()[0].X, 1e-9)
	assert.InDelta(t, 5.0, health.Points()[0].Y, 1e-9)

	schools, err := cat.Get(category.EducationSchool)
	require.NoError(t, err)
	require.Equal(t, 1, schools.Len())
	assert.InDelta(t, 110.0, schools.Points()[0].X, 1e-9)
}

func TestPolygonToMultiPolygon_Holes(t *testing.T) {
	shell := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 5, Y: 3}, {X: 9, Y: 3}, {X: 9, Y: 7}, {X: 5, Y: 7}, {X: 5, Y: 3}}
	island := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 2}, {X: 22, Y: 2}, {X: 22, Y: 0}, {X: 20, Y: 0}}
	p := shp.Polygon(*shp.NewPolyLine([][]shp.Point{shell, hole, island}))

	g := polygonToMultiPolygon(&p)
	require.NotNil(t, g)
	mp := g.(*geom.MultiPolygon)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())

	pt, err := dataset.PointFromGeom(g)
	require.NoError(t, err)
	// (84*388/84 + 4*21) / 88
	assert.InDelta(t, (388.0+84.0)/88.0, pt.X, 1e-9)
}

func TestPolyLineToMultiLineString_Parts(t *testing.T) {
	pl := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 10, Y: 0}},
		{{X: 100, Y: 0}, {X: 110, Y: 0}},
	})
	g := polyLineToMultiLineString(pl)
	require.NotNil(t, g)
	assert.Equal(t, 2, g.(*geom.MultiLineString).NumLineStrings())

	pt, err := dataset.PointFromGeom(g)
	require.NoError(t, err)
	assert.InDelta(t, 55.0, pt.X, 1e-9)

	assert.Nil(t, polyLineToMultiLineString(&shp.PolyLine{}))
}
