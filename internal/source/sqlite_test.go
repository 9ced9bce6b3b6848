package source

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/access-cli/internal/category"
	"github.com/sells-group/access-cli/internal/dataset"
)

const sqliteFixture = `
CREATE TABLE blocks (id INTEGER PRIMARY KEY, x REAL NOT NULL, y REAL NOT NULL, population REAL);
INSERT INTO blocks (x, y, population) VALUES (0, 0, 10), (1000, 0, 20), (5000, 0, 5);

CREATE TABLE addresses (x REAL, y REAL);
INSERT INTO addresses VALUES (1, 2), (3, 4);

CREATE TABLE pois (x REAL, y REAL, amenity TEXT, leisure TEXT);
INSERT INTO pois VALUES (10, 0, 'doctors', NULL), (2000, 0, NULL, 'park'), (40, 40, 'bench', NULL);

CREATE TABLE nodes (id INTEGER PRIMARY KEY, x REAL, y REAL);
INSERT INTO nodes VALUES (100, 0, 0), (200, 1000, 0);

CREATE TABLE edges ("from" INTEGER, "to" INTEGER, length REAL);
INSERT INTO edges VALUES (100, 200, 1000), (200, 100, 1000);
`

func openFixture(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(sqliteFixture)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := OpenSQLite(path, frame)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Population(t *testing.T) {
	s := openFixture(t)

	pop, err := s.Population(context.Background(), "blocks")
	require.NoError(t, err)
	w, ok := pop.(*dataset.WeightedPoints)
	require.True(t, ok)
	assert.Equal(t, 35.0, w.Total())
	assert.Equal(t, dataset.Point{X: 5000}, w.Point(2))

	pop, err = s.Population(context.Background(), "addresses")
	require.NoError(t, err)
	_, ok = pop.(*dataset.UnweightedPoints)
	assert.True(t, ok)
	assert.Equal(t, 2, pop.Len())
}

func TestSQLite_MissingTable(t *testing.T) {
	s := openFixture(t)

	_, err := s.Population(context.Background(), "ghost")
	var nf *dataset.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "table", nf.Kind)
}

func TestSQLite_NeedsCoordinates(t *testing.T) {
	s := openFixture(t)

	_, err := s.Catalog(context.Background(), "edges")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs x and y columns")
}

func TestSQLite_Catalog(t *testing.T) {
	s := openFixture(t)

	cat, err := s.Catalog(context.Background(), "pois")
	require.NoError(t, err)

	health, err := cat.Get(category.Healthcare)
	require.NoError(t, err)
	assert.Equal(t, []dataset.Point{{X: 10}}, health.Points())

	parks, err := cat.Get(category.GreenSpace)
	require.NoError(t, err)
	assert.Equal(t, []dataset.Point{{X: 2000}}, parks.Points())

	food, err := cat.Get(category.Food)
	require.NoError(t, err)
	assert.True(t, food.Empty())
}

func TestSQLite_Graph(t *testing.T) {
	s := openFixture(t)

	g, err := s.Graph(context.Background(), "nodes", "edges")
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	require.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 1000.0, g.Edge(0).Length)
	assert.InDelta(t, 72.0, g.Edge(0).TravelTime, 1e-9)
}
