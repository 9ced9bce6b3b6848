// Package network routes over street graphs: it snaps coordinates to graph
// nodes and computes, in one traversal, every node's shortest distance to the
// nearest of a set of source nodes.
package network

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/access-cli/internal/dataset"
)

// NodeID is the arena index of a node.
type NodeID int32

// Metric selects which edge weight routing minimises.
type Metric string

// Supported metrics. Length is in meters, TravelTime in seconds.
const (
	Length     Metric = "length"
	TravelTime Metric = "travel_time"
)

// ParseMetric parses a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Length, TravelTime:
		return Metric(s), nil
	}
	return "", eris.Errorf("network: unknown metric %q (want %q or %q)", s, Length, TravelTime)
}

// Unit returns the unit of distances computed with m. Callers compare against
// thresholds in the same unit, converting seconds to minutes themselves.
func (m Metric) Unit() dataset.Unit {
	if m == TravelTime {
		return dataset.Seconds
	}
	return dataset.Meters
}

// Edge is a directed edge. A two-way street is two edges.
type Edge struct {
	From       NodeID
	To         NodeID
	Length     float64
	TravelTime float64
}

// Weight returns the edge weight under m.
func (e Edge) Weight(m Metric) float64 {
	if m == TravelTime {
		return e.TravelTime
	}
	return e.Length
}

// Graph is an immutable directed multigraph. Nodes and edges live in flat
// arrays; adjacency is stored in CSR form for both directions.
type Graph struct {
	frame  dataset.Frame
	coords []dataset.Point
	edges  []Edge

	// out[outStart[v]:outStart[v+1]] are indexes into edges leaving v.
	outStart []int32
	out      []int32
	// in[inStart[v]:inStart[v+1]] are indexes into edges entering v.
	inStart []int32
	in      []int32
}

// Frame returns the coordinate frame of node coordinates.
func (g *Graph) Frame() dataset.Frame { return g.frame }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.coords) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Coord returns the coordinate of node v.
func (g *Graph) Coord(v NodeID) dataset.Point { return g.coords[v] }

// Edge returns edge i.
func (g *Graph) Edge(i int) Edge { return g.edges[i] }

// Builder accumulates nodes and edges for a Graph.
type Builder struct {
	frame  dataset.Frame
	coords []dataset.Point
	edges  []Edge
}

// NewBuilder starts a graph in the given frame.
func NewBuilder(frame dataset.Frame) *Builder {
	return &Builder{frame: frame}
}

// AddNode appends a node and returns its id.
func (b *Builder) AddNode(p dataset.Point) NodeID {
	b.coords = append(b.coords, p)
	return NodeID(len(b.coords) - 1)
}

// AddEdge appends a directed edge.
func (b *Builder) AddEdge(from, to NodeID, length, travelTime float64) {
	b.edges = append(b.edges, Edge{From: from, To: to, Length: length, TravelTime: travelTime})
}

// AddStreet appends a two-way street as a pair of directed edges.
func (b *Builder) AddStreet(u, v NodeID, length, travelTime float64) {
	b.AddEdge(u, v, length, travelTime)
	b.AddEdge(v, u, length, travelTime)
}

// Build validates and freezes the graph. A graph without nodes, with edges
// pointing at unknown nodes, or with negative or NaN weights is rejected
// with *dataset.InvalidGraphError.
func (b *Builder) Build() (*Graph, error) {
	if len(b.coords) == 0 {
		return nil, &dataset.InvalidGraphError{
			Reason: "graph has no nodes",
			Err:    &dataset.EmptyInputError{What: "graph nodes"},
		}
	}
	n := NodeID(len(b.coords))
	for i, e := range b.edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return nil, &dataset.InvalidGraphError{
				Reason: fmt.Sprintf("edge %d references node outside [0,%d)", i, n),
			}
		}
		for _, w := range []float64{e.Length, e.TravelTime} {
			if math.IsNaN(w) || w < 0 {
				return nil, &dataset.InvalidGraphError{
					Reason: fmt.Sprintf("edge %d (%d->%d) has negative or NaN weight %v", i, e.From, e.To, w),
				}
			}
		}
	}

	g := &Graph{
		frame:  b.frame,
		coords: append([]dataset.Point(nil), b.coords...),
		edges:  append([]Edge(nil), b.edges...),
	}
	g.outStart, g.out = csr(len(g.coords), g.edges, func(e Edge) NodeID { return e.From })
	g.inStart, g.in = csr(len(g.coords), g.edges, func(e Edge) NodeID { return e.To })
	return g, nil
}

// csr groups edge indexes by the node key selects, preserving insertion order
// within each node.
func csr(nodes int, edges []Edge, key func(Edge) NodeID) ([]int32, []int32) {
	start := make([]int32, nodes+1)
	for _, e := range edges {
		start[key(e)+1]++
	}
	for v := 0; v < nodes; v++ {
		start[v+1] += start[v]
	}
	idx := make([]int32, len(edges))
	for i := range idx {
		idx[i] = int32(i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return key(edges[idx[a]]) < key(edges[idx[b]])
	})
	return start, idx
}
