package dataset

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Point is a 2D coordinate in a projected frame.
type Point struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PointFromGeom reduces a geometry to a single representative point: the
// true centroid, with polygon holes subtracted and line parts weighted by
// length. The result may fall outside a concave shape.
func PointFromGeom(g geom.T) (Point, error) {
	if g == nil {
		return Point{}, eris.New("dataset: nil geometry")
	}
	if _, ok := g.(*geom.GeometryCollection); ok {
		return Point{}, eris.New("dataset: geometry collections are not supported")
	}
	if g.Stride() < 2 || len(g.FlatCoords()) < g.Stride() {
		return Point{}, eris.New("dataset: geometry has no coordinates")
	}
	c, err := xy.Centroid(g)
	if err != nil {
		return Point{}, eris.Wrap(err, "dataset: centroid")
	}
	// Zero-length lines divide by zero inside the line centroid.
	if len(c) < 2 || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return Point{}, eris.New("dataset: degenerate geometry")
	}
	return Point{X: c[0], Y: c[1]}, nil
}
