package network

import (
	"container/heap"
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/spatial"
)

// Direction decides which way edges are traversed relative to the sources.
type Direction int

const (
	// ToSources measures the trip from each node to its nearest source, so
	// edges are relaxed in reverse. This is the trip a resident makes to a
	// facility.
	ToSources Direction = iota
	// FromSources measures the trip from the nearest source out to each node.
	FromSources
)

// ParseDirection parses "to_sources" or "from_sources".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "to_sources", "":
		return ToSources, nil
	case "from_sources":
		return FromSources, nil
	}
	return ToSources, eris.Errorf("network: unknown direction %q", s)
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithDirection sets the traversal direction. Default ToSources.
func WithDirection(d Direction) RouterOption {
	return func(r *Router) {
		r.direction = d
	}
}

// WithLogger sets the logger used for diagnostics. Default zap.L().
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		r.log = l
	}
}

// Router answers nearest-source queries over a read-only Graph. It is safe
// for concurrent use.
type Router struct {
	graph     *Graph
	nodes     *spatial.Index
	direction Direction
	log       *zap.Logger
}

// NewRouter indexes the graph's nodes for snapping.
func NewRouter(g *Graph, opts ...RouterOption) (*Router, error) {
	if g == nil || g.NodeCount() == 0 {
		return nil, &dataset.InvalidGraphError{
			Reason: "graph has no nodes",
			Err:    &dataset.EmptyInputError{What: "graph nodes"},
		}
	}
	idx, err := spatial.Build(g.coords)
	if err != nil {
		return nil, eris.Wrap(err, "network: index nodes")
	}
	r := &Router{graph: g, nodes: idx, direction: ToSources, log: zap.L()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Graph returns the routed graph.
func (r *Router) Graph() *Graph { return r.graph }

// Snap maps every point to the geometrically closest node.
func (r *Router) Snap(ctx context.Context, points []dataset.Point) ([]NodeID, error) {
	ids, err := r.nodes.NearestIDs(ctx, points)
	if err != nil {
		return nil, eris.Wrap(err, "network: snap points")
	}
	out := make([]NodeID, len(ids))
	for i, id := range ids {
		out[i] = NodeID(id)
	}
	return out, nil
}

// MultiSourceDistances returns, for every node, the shortest distance under
// metric to the nearest node in sources. Duplicate sources are ignored.
// Nodes no source can reach, and every node when sources is empty, get +Inf.
func (r *Router) MultiSourceDistances(sources []NodeID, metric Metric) ([]float64, error) {
	g := r.graph
	dist := make([]float64, g.NodeCount())
	for i := range dist {
		dist[i] = math.Inf(1)
	}

	var pq frontier
	for _, s := range sources {
		if s < 0 || int(s) >= len(dist) {
			return nil, eris.Errorf("network: source node %d out of range", s)
		}
		if dist[s] == 0 {
			continue
		}
		dist[s] = 0
		pq = append(pq, item{node: s, dist: 0})
	}
	heap.Init(&pq)

	start, adj := g.inStart, g.in
	if r.direction == FromSources {
		start, adj = g.outStart, g.out
	}

	settled := make([]bool, len(dist))
	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(item)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true

		for _, ei := range adj[start[cur.node]:start[cur.node+1]] {
			e := g.edges[ei]
			next := e.From
			if r.direction == FromSources {
				next = e.To
			}
			if settled[next] {
				continue
			}
			if d := cur.dist + e.Weight(metric); d < dist[next] {
				dist[next] = d
				heap.Push(&pq, item{node: next, dist: d})
			}
		}
	}
	return dist, nil
}

// Distances snaps services and population to the graph, routes once from all
// service nodes, and returns one distance per population point in the
// metric's unit.
func (r *Router) Distances(ctx context.Context, population, services []dataset.Point, metric Metric) (dataset.Column, error) {
	col := dataset.Column{Unit: metric.Unit(), Values: make([]float64, len(population))}

	sources, err := r.Snap(ctx, services)
	if err != nil {
		return dataset.Column{}, err
	}
	dist, err := r.MultiSourceDistances(sources, metric)
	if err != nil {
		return dataset.Column{}, err
	}
	origins, err := r.Snap(ctx, population)
	if err != nil {
		return dataset.Column{}, err
	}

	unreachable := 0
	for i, v := range origins {
		col.Values[i] = dist[v]
		if math.IsInf(dist[v], 1) {
			unreachable++
		}
	}
	if unreachable > 0 && len(sources) > 0 {
		r.log.Warn("network: population points cannot reach any service",
			zap.Int("unreachable", unreachable),
			zap.Int("points", len(population)),
			zap.String("metric", string(metric)),
		)
	}
	return col, nil
}

// item is a frontier entry. Stale entries are skipped when popped.
type item struct {
	node NodeID
	dist float64
}

// frontier is a binary min-heap on distance, ties broken by node id.
type frontier []item

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].node < f[j].node
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(item)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}
