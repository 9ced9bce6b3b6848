package source

import (
	"encoding/csv"
	"io"
	"math"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/network"
)

// DefaultSpeedKPH is assumed for edges carrying neither a travel time nor a
// speed.
const DefaultSpeedKPH = 50.0

// NodeRecord is one row of a street network node table.
type NodeRecord struct {
	ID int64   `csv:"id"`
	X  float64 `csv:"x"`
	Y  float64 `csv:"y"`
}

// EdgeRecord is one row of a street network edge table. Edges are directed
// unless Oneway is explicitly false. TravelTime (seconds) is derived from
// SpeedKPH, or DefaultSpeedKPH, when absent.
type EdgeRecord struct {
	From       int64    `csv:"from"`
	To         int64    `csv:"to"`
	Length     float64  `csv:"length"`
	TravelTime *float64 `csv:"travel_time,omitempty"`
	SpeedKPH   *float64 `csv:"speed_kph,omitempty"`
	Oneway     *bool    `csv:"oneway,omitempty"`
}

// travelTime returns the edge's traversal time in seconds.
func (e EdgeRecord) travelTime() (float64, error) {
	if e.TravelTime != nil {
		return *e.TravelTime, nil
	}
	speed := DefaultSpeedKPH
	if e.SpeedKPH != nil {
		speed = *e.SpeedKPH
	}
	if speed <= 0 || math.IsNaN(speed) {
		return 0, eris.Errorf("source: edge %d -> %d: speed_kph must be > 0, got %v", e.From, e.To, speed)
	}
	return e.Length / (speed / 3.6), nil
}

// BuildGraph assembles a routable graph from node and edge records. Node IDs
// are external (e.g. OSM ids) and need not be dense.
func BuildGraph(frame dataset.Frame, nodes []NodeRecord, edges []EdgeRecord) (*network.Graph, error) {
	b := network.NewBuilder(frame)
	ids := make(map[int64]network.NodeID, len(nodes))
	for _, n := range nodes {
		if _, dup := ids[n.ID]; dup {
			return nil, eris.Errorf("source: duplicate node id %d", n.ID)
		}
		ids[n.ID] = b.AddNode(dataset.Point{X: n.X, Y: n.Y})
	}

	for _, e := range edges {
		from, ok := ids[e.From]
		if !ok {
			return nil, eris.Errorf("source: edge references unknown node %d", e.From)
		}
		to, ok := ids[e.To]
		if !ok {
			return nil, eris.Errorf("source: edge references unknown node %d", e.To)
		}
		tt, err := e.travelTime()
		if err != nil {
			return nil, err
		}
		if e.Oneway != nil && !*e.Oneway {
			b.AddStreet(from, to, e.Length, tt)
		} else {
			b.AddEdge(from, to, e.Length, tt)
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: built street network", zap.Int("nodes", g.NodeCount()), zap.Int("edges", g.EdgeCount()))
	return g, nil
}

// ReadGraphCSV reads node (id, x, y) and edge (from, to, length, and
// optionally travel_time, speed_kph, oneway) tables.
func ReadGraphCSV(nodes, edges io.Reader, frame dataset.Frame) (*network.Graph, error) {
	var nodeRecs []NodeRecord
	if err := decodeCSV(nodes, &nodeRecs, "id", "x", "y"); err != nil {
		return nil, eris.Wrap(err, "source: read nodes CSV")
	}
	var edgeRecs []EdgeRecord
	if err := decodeCSV(edges, &edgeRecs, "from", "to", "length"); err != nil {
		return nil, eris.Wrap(err, "source: read edges CSV")
	}
	return BuildGraph(frame, nodeRecs, edgeRecs)
}

// decodeCSV decodes every record of r into out, a pointer to a slice of
// structs, after checking the header carries required columns.
func decodeCSV[T any](r io.Reader, out *[]T, required ...string) error {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return eris.New("source: CSV has no header row")
		}
		return eris.Wrap(err, "source: read CSV header")
	}
	have := make(map[string]bool, len(dec.Header()))
	for _, h := range dec.Header() {
		have[h] = true
	}
	for _, name := range required {
		if !have[name] {
			return eris.Errorf("source: CSV header is missing column %q", name)
		}
	}

	for {
		var rec T
		if err := dec.Decode(&rec); err == io.EOF {
			return nil
		} else if err != nil {
			return eris.Wrap(err, "source: decode CSV record")
		}
		*out = append(*out, rec)
	}
}
