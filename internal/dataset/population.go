package dataset

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// WeightColumn is the name of the population weight column.
const WeightColumn = "population"

// Population is a set of population locations sharing one frame. It is
// either *WeightedPoints (headcounts) or *UnweightedPoints (each location
// counts once).
type Population interface {
	Frame() Frame
	Len() int
	Point(i int) Point
	// Points returns a copy of the coordinates.
	Points() []Point
	isPopulation()
}

// WeightedPoints carries a non-negative headcount per location.
type WeightedPoints struct {
	frame   Frame
	points  []Point
	weights []float64
}

// NewWeightedPoints copies points and weights into a new population.
func NewWeightedPoints(frame Frame, points []Point, weights []float64) (*WeightedPoints, error) {
	if len(points) != len(weights) {
		return nil, eris.Errorf("dataset: %d points but %d weights", len(points), len(weights))
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, eris.Errorf("dataset: invalid weight %v at row %d", w, i)
		}
	}
	return &WeightedPoints{
		frame:   frame,
		points:  append([]Point(nil), points...),
		weights: append([]float64(nil), weights...),
	}, nil
}

func (w *WeightedPoints) Frame() Frame         { return w.frame }
func (w *WeightedPoints) Len() int             { return len(w.points) }
func (w *WeightedPoints) Point(i int) Point    { return w.points[i] }
func (w *WeightedPoints) Points() []Point      { return append([]Point(nil), w.points...) }
func (w *WeightedPoints) Weight(i int) float64 { return w.weights[i] }
func (*WeightedPoints) isPopulation()          {}

// Weights returns a copy of the weights.
func (w *WeightedPoints) Weights() []float64 {
	return append([]float64(nil), w.weights...)
}

// Total returns the summed headcount.
func (w *WeightedPoints) Total() float64 {
	if len(w.weights) == 0 {
		return 0
	}
	return floats.Sum(w.weights)
}

// UnweightedPoints is a population whose rows carry no headcount.
type UnweightedPoints struct {
	frame  Frame
	points []Point
}

// NewUnweightedPoints copies points into a new population.
func NewUnweightedPoints(frame Frame, points []Point) *UnweightedPoints {
	return &UnweightedPoints{frame: frame, points: append([]Point(nil), points...)}
}

func (u *UnweightedPoints) Frame() Frame      { return u.frame }
func (u *UnweightedPoints) Len() int          { return len(u.points) }
func (u *UnweightedPoints) Point(i int) Point { return u.points[i] }
func (u *UnweightedPoints) Points() []Point   { return append([]Point(nil), u.points...) }
func (*UnweightedPoints) isPopulation()       {}

// CountWeights returns one weight per row and whether those weights are
// headcounts. Unweighted populations yield 1.0 per location.
func CountWeights(p Population) ([]float64, bool) {
	switch t := p.(type) {
	case *WeightedPoints:
		return t.Weights(), true
	default:
		w := make([]float64, p.Len())
		for i := range w {
			w[i] = 1
		}
		return w, false
	}
}
