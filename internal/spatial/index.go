// Package spatial provides an exact nearest-neighbour index over 2D points.
package spatial

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/sells-group/access-cli/internal/dataset"
)

// minChunk is the smallest batch handed to a single worker.
const minChunk = 2048

// Option configures an Index.
type Option func(*Index)

// WithWorkers caps the number of goroutines used by batch queries.
// Values <= 0 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(ix *Index) {
		ix.workers = n
	}
}

// Index is an immutable k-d tree over a set of points. It is safe for
// concurrent queries.
type Index struct {
	tree    *kdtree.Tree
	n       int
	workers int
}

// Build indexes points. It fails with *dataset.EmptyInputError when points is
// empty; callers handle the no-facility case before building.
func Build(points []dataset.Point, opts ...Option) (*Index, error) {
	if len(points) == 0 {
		return nil, &dataset.EmptyInputError{What: "spatial index points"}
	}
	s := make(sites, len(points))
	for i, p := range points {
		s[i] = site{x: p.X, y: p.Y, id: i}
	}
	ix := &Index{tree: kdtree.New(s, false), n: len(points)}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.workers <= 0 {
		ix.workers = runtime.GOMAXPROCS(0)
	}
	return ix, nil
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.n }

// Nearest returns the position (in the slice passed to Build) of the point
// closest to q and the Euclidean distance to it.
func (ix *Index) Nearest(q dataset.Point) (int, float64) {
	c, d2 := ix.tree.Nearest(site{x: q.X, y: q.Y, id: -1})
	return c.(site).id, math.Sqrt(d2)
}

// NearestDistances returns, for every query, the distance to the nearest
// indexed point. Output order matches input order.
func (ix *Index) NearestDistances(ctx context.Context, queries []dataset.Point) ([]float64, error) {
	out := make([]float64, len(queries))
	err := ix.each(ctx, queries, func(i int, _ int, d float64) {
		out[i] = d
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NearestIDs returns, for every query, the position of the nearest indexed
// point.
func (ix *Index) NearestIDs(ctx context.Context, queries []dataset.Point) ([]int, error) {
	out := make([]int, len(queries))
	err := ix.each(ctx, queries, func(i int, id int, _ float64) {
		out[i] = id
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// each runs fn for every query. Large batches are split into contiguous
// chunks, one goroutine each; fn only ever writes slot i, so results do not
// depend on scheduling.
func (ix *Index) each(ctx context.Context, queries []dataset.Point, fn func(i, id int, d float64)) error {
	if len(queries) == 0 {
		return nil
	}

	chunk := (len(queries) + ix.workers - 1) / ix.workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for start := 0; start < len(queries); start += chunk {
		end := min(start+chunk, len(queries))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%minChunk == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				id, d := ix.Nearest(queries[i])
				fn(i, id, d)
			}
			return nil
		})
	}
	return g.Wait()
}
