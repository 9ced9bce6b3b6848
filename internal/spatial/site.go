package spatial

import "gonum.org/v1/gonum/spatial/kdtree"

// site is an indexed point that remembers its input position.
type site struct {
	x, y float64
	id   int
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	if d == 0 {
		return s.x - q.x
	}
	return s.y - q.y
}

func (s site) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx, dy := s.x-q.x, s.y-q.y
	return dx*dx + dy*dy
}

// sites implements kdtree.Interface.
type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Pivot(d kdtree.Dim) int                { return plane{sites: s, dim: d}.Pivot() }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

// plane orders sites along one dimension for median partitioning.
type plane struct {
	sites
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	if p.dim == 0 {
		return p.sites[i].x < p.sites[j].x
	}
	return p.sites[i].y < p.sites[j].y
}

func (p plane) Swap(i, j int) { p.sites[i], p.sites[j] = p.sites[j], p.sites[i] }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}

// Pivot uses median of medians so that tree shape, and therefore tie
// resolution, is deterministic.
func (p plane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
