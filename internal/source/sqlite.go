package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/access-cli/internal/category"
	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/network"
)

// SQLite reads datasets from plain tables in a SQLite file. Coordinates are
// stored as x and y columns in the configured frame.
type SQLite struct {
	db    *sql.DB
	frame dataset.Frame
}

// OpenSQLite opens the SQLite database at dsn.
func OpenSQLite(dsn string, frame dataset.Frame) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLite{db: db, frame: frame}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// quote renders a double-quoted identifier.
func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (s *SQLite) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quote(table)))
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, &dataset.NotFoundError{Kind: "table", Key: table}
		}
		return nil, eris.Wrapf(err, "sqlite: inspect %s", table)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: inspect %s", table)
	}
	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[strings.ToLower(n)] = true
	}
	return cols, nil
}

// Population reads x, y and, when the table has one, population.
func (s *SQLite) Population(ctx context.Context, table string) (dataset.Population, error) {
	cols, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if !cols[ColumnX] || !cols[ColumnY] {
		return nil, eris.Errorf("sqlite: table %s needs x and y columns", table)
	}
	b := populationBuilder{weighted: cols[dataset.WeightColumn]}

	query := fmt.Sprintf("SELECT x, y FROM %s", quote(table))
	if b.weighted {
		query = fmt.Sprintf("SELECT x, y, population FROM %s", quote(table))
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query population %s", table)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p dataset.Point
			w sql.NullFloat64
		)
		dest := []any{&p.X, &p.Y}
		if b.weighted {
			dest = append(dest, &w)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan population %s", table)
		}
		if b.weighted && !w.Valid {
			return nil, eris.Errorf("sqlite: population %s has a NULL population value", table)
		}
		b.add(p, w.Float64)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: query population %s", table)
	}

	pop, err := b.build(s.frame)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: population %s", table)
	}
	zap.L().Debug("source: loaded population", zap.String("table", table), zap.Int("rows", pop.Len()), zap.Bool("weighted", b.weighted))
	return pop, nil
}

// Catalog reads service rows classified by a category column or OSM tag
// columns.
func (s *SQLite) Catalog(ctx context.Context, table string) (*dataset.Catalog, error) {
	cols, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if !cols[ColumnX] || !cols[ColumnY] {
		return nil, eris.Errorf("sqlite: table %s needs x and y columns", table)
	}
	var attrCols []string
	for _, c := range append([]string{ColumnCategory}, category.TagKeys...) {
		if cols[c] {
			attrCols = append(attrCols, c)
		}
	}

	sel := []string{"x", "y"}
	for _, c := range attrCols {
		sel = append(sel, quote(c))
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), quote(table)))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query services %s", table)
	}
	defer rows.Close()

	b := newCatalogBuilder(s.frame)
	for rows.Next() {
		var p dataset.Point
		vals := make([]sql.NullString, len(attrCols))
		dest := []any{&p.X, &p.Y}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan services %s", table)
		}
		b.add(p, classify(func(name string) (string, bool) {
			for i, c := range attrCols {
				if c == name && vals[i].Valid {
					return vals[i].String, true
				}
			}
			return "", false
		}))
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: query services %s", table)
	}
	return b.build(), nil
}

// Graph reads a nodes table (id, x, y) and an edges table (from, to,
// length, and optionally travel_time).
func (s *SQLite) Graph(ctx context.Context, nodesTable, edgesTable string) (*network.Graph, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, x, y FROM %s ORDER BY id", quote(nodesTable)))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query nodes %s", nodesTable)
	}
	var nodes []NodeRecord
	for rows.Next() {
		var n NodeRecord
		if err := rows.Scan(&n.ID, &n.X, &n.Y); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "sqlite: scan nodes %s", nodesTable)
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: query nodes %s", nodesTable)
	}

	cols, err := s.columns(ctx, edgesTable)
	if err != nil {
		return nil, err
	}
	tt := "NULL"
	if cols["travel_time"] {
		tt = "travel_time"
	}
	rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`SELECT "from", "to", length, %s FROM %s`, tt, quote(edgesTable)))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query edges %s", edgesTable)
	}
	defer rows.Close()

	var edges []EdgeRecord
	for rows.Next() {
		var (
			e    EdgeRecord
			secs sql.NullFloat64
		)
		if err := rows.Scan(&e.From, &e.To, &e.Length, &secs); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan edges %s", edgesTable)
		}
		if secs.Valid {
			e.TravelTime = &secs.Float64
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: query edges %s", edgesTable)
	}
	return BuildGraph(s.frame, nodes, edges)
}
