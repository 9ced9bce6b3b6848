package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/category"
	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/db"
	"github.com/sells-group/access-cli/internal/network"
)

// PostGIS reads datasets from PostGIS tables. Geometries are decoded from
// EWKB; a geometry whose SRID differs from the configured frame fails with
// *dataset.FrameMismatchError.
type PostGIS struct {
	pool  db.Pool
	frame dataset.Frame
	geom  string
}

// NewPostGIS creates a PostGIS source reading the "geom" column.
func NewPostGIS(pool db.Pool, frame dataset.Frame) *PostGIS {
	return &PostGIS{pool: pool, frame: frame, geom: ColumnGeometry}
}

// splitTable returns schema and table, defaulting the schema to public.
func splitTable(table string) (string, string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return schema, name
	}
	return "public", table
}

// columns returns the lower-cased column names of table. A table with no
// columns does not exist.
func (s *PostGIS) columns(ctx context.Context, table string) (map[string]bool, error) {
	schema, name := splitTable(table)
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2`,
		schema, name)
	if err != nil {
		return nil, eris.Wrapf(err, "source: list columns of %s", table)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, eris.Wrapf(err, "source: scan column of %s", table)
		}
		cols[strings.ToLower(col)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: list columns of %s", table)
	}
	if len(cols) == 0 {
		return nil, &dataset.NotFoundError{Kind: "table", Key: table}
	}
	return cols, nil
}

// point decodes an EWKB geometry and checks its SRID.
func (s *PostGIS) point(data []byte) (dataset.Point, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return dataset.Point{}, eris.Wrap(err, "source: decode EWKB")
	}
	if srid := g.SRID(); srid != 0 && s.frame.SRID != dataset.SRIDUnknown && srid != s.frame.SRID {
		return dataset.Point{}, &dataset.FrameMismatchError{Left: s.frame, Right: dataset.FrameFromSRID(srid)}
	}
	return dataset.PointFromGeom(g)
}

func (s *PostGIS) geomExpr() string {
	return fmt.Sprintf("ST_AsEWKB(%s)", pgx.Identifier{s.geom}.Sanitize())
}

// Population reads table. It is weighted when the table has a population
// column.
func (s *PostGIS) Population(ctx context.Context, table string) (dataset.Population, error) {
	cols, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	b := populationBuilder{weighted: cols[dataset.WeightColumn]}

	sel := s.geomExpr()
	if b.weighted {
		sel += fmt.Sprintf(", %s::float8", pgx.Identifier{dataset.WeightColumn}.Sanitize())
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL",
		sel, db.Identifier(table).Sanitize(), pgx.Identifier{s.geom}.Sanitize())

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "source: query population %s", table)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			data []byte
			w    float64
		)
		dest := []any{&data}
		if b.weighted {
			dest = append(dest, &w)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "source: scan population %s", table)
		}
		p, err := s.point(data)
		if err != nil {
			return nil, err
		}
		b.add(p, w)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: query population %s", table)
	}

	pop, err := b.build(s.frame)
	if err != nil {
		return nil, eris.Wrapf(err, "source: population %s", table)
	}
	zap.L().Debug("source: loaded population", zap.String("table", table), zap.Int("rows", pop.Len()), zap.Bool("weighted", b.weighted))
	return pop, nil
}

// Catalog reads service features from table, classified by a category
// column or by whichever OSM tag columns the table has.
func (s *PostGIS) Catalog(ctx context.Context, table string) (*dataset.Catalog, error) {
	cols, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	var attrCols []string
	for _, c := range append([]string{ColumnCategory}, category.TagKeys...) {
		if cols[c] {
			attrCols = append(attrCols, c)
		}
	}

	sel := []string{s.geomExpr()}
	for _, c := range attrCols {
		sel = append(sel, fmt.Sprintf("COALESCE(%s::text, '')", pgx.Identifier{c}.Sanitize()))
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL",
		strings.Join(sel, ", "), db.Identifier(table).Sanitize(), pgx.Identifier{s.geom}.Sanitize())

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "source: query services %s", table)
	}
	defer rows.Close()

	b := newCatalogBuilder(s.frame)
	for rows.Next() {
		var data []byte
		vals := make([]string, len(attrCols))
		dest := []any{&data}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "source: scan services %s", table)
		}
		p, err := s.point(data)
		if err != nil {
			return nil, err
		}
		b.add(p, classify(func(name string) (string, bool) {
			for i, c := range attrCols {
				if c == name {
					return vals[i], true
				}
			}
			return "", false
		}))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: query services %s", table)
	}
	if b.unmatched > 0 {
		zap.L().Debug("source: skipped services matching no category", zap.String("table", table), zap.Int("skipped", b.unmatched))
	}
	return b.build(), nil
}

// Graph reads a street network from a nodes table (id, geom) and an edges
// table (from, to, length, travel_time). A NULL travel_time is derived from
// DefaultSpeedKPH.
func (s *PostGIS) Graph(ctx context.Context, nodesTable, edgesTable string) (*network.Graph, error) {
	nodeSQL := fmt.Sprintf("SELECT id, %s FROM %s WHERE %s IS NOT NULL ORDER BY id",
		s.geomExpr(), db.Identifier(nodesTable).Sanitize(), pgx.Identifier{s.geom}.Sanitize())
	rows, err := s.pool.Query(ctx, nodeSQL)
	if err != nil {
		return nil, eris.Wrapf(err, "source: query nodes %s", nodesTable)
	}
	var nodes []NodeRecord
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "source: scan nodes %s", nodesTable)
		}
		p, err := s.point(data)
		if err != nil {
			rows.Close()
			return nil, err
		}
		nodes = append(nodes, NodeRecord{ID: id, X: p.X, Y: p.Y})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: query nodes %s", nodesTable)
	}

	edgeSQL := fmt.Sprintf(`SELECT "from", "to", length, COALESCE(travel_time, length / $1) FROM %s`,
		db.Identifier(edgesTable).Sanitize())
	rows, err = s.pool.Query(ctx, edgeSQL, DefaultSpeedKPH/3.6)
	if err != nil {
		return nil, eris.Wrapf(err, "source: query edges %s", edgesTable)
	}
	defer rows.Close()

	var edges []EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		var tt float64
		if err := rows.Scan(&e.From, &e.To, &e.Length, &tt); err != nil {
			return nil, eris.Wrapf(err, "source: scan edges %s", edgesTable)
		}
		e.TravelTime = &tt
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: query edges %s", edgesTable)
	}

	return BuildGraph(s.frame, nodes, edges)
}
