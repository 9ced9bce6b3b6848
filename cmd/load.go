package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/analysis"
	"github.com/sells-group/access-cli/internal/config"
	"github.com/sells-group/access-cli/internal/dataset"
	"github.com/sells-group/access-cli/internal/db"
	"github.com/sells-group/access-cli/internal/network"
	"github.com/sells-group/access-cli/internal/source"
)

// loader reads the configured inputs. Database handles are opened on first
// use and released by close.
type loader struct {
	cfg   *config.Config
	frame dataset.Frame

	pool *pgxpool.Pool
	lite *source.SQLite
}

func newLoader(c *config.Config) *loader {
	return &loader{cfg: c, frame: dataset.FrameFromSRID(c.Analysis.SRID)}
}

func (l *loader) close() {
	if l.pool != nil {
		l.pool.Close()
	}
	if l.lite != nil {
		_ = l.lite.Close()
	}
}

// postgres returns the shared pool, connecting on first call.
func (l *loader) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if l.pool != nil {
		return l.pool, nil
	}
	pool, err := db.Connect(ctx, l.cfg.Store.DatabaseURL, db.PoolConfig{MaxConns: l.cfg.Store.MaxConns})
	if err != nil {
		return nil, err
	}
	l.pool = pool
	return pool, nil
}

// tables is the store that serves table inputs.
type tables interface {
	Population(ctx context.Context, table string) (dataset.Population, error)
	Catalog(ctx context.Context, table string) (*dataset.Catalog, error)
	Graph(ctx context.Context, nodesTable, edgesTable string) (*network.Graph, error)
}

func (l *loader) store(ctx context.Context) (tables, error) {
	switch l.cfg.Store.Driver {
	case "sqlite":
		if l.lite == nil {
			lite, err := source.OpenSQLite(l.cfg.Store.SQLitePath, l.frame)
			if err != nil {
				return nil, err
			}
			l.lite = lite
		}
		return l.lite, nil
	case "postgres":
		pool, err := l.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return source.NewPostGIS(pool, l.frame), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", l.cfg.Store.Driver)
	}
}

func (l *loader) population(ctx context.Context) (dataset.Population, error) {
	in := l.cfg.Input
	if in.PopulationTable != "" {
		st, err := l.store(ctx)
		if err != nil {
			return nil, err
		}
		return st.Population(ctx, in.PopulationTable)
	}

	switch ext(in.Population) {
	case ".csv":
		f, err := os.Open(in.Population)
		if err != nil {
			return nil, eris.Wrap(err, "open population file")
		}
		defer f.Close() //nolint:errcheck
		return source.ReadPopulationCSV(ctx, f, l.frame, source.CSVOptions{})
	case ".geojson", ".json":
		f, err := os.Open(in.Population)
		if err != nil {
			return nil, eris.Wrap(err, "open population file")
		}
		defer f.Close() //nolint:errcheck
		return source.ReadPopulationGeoJSON(f, l.frame)
	case ".shp":
		return source.ReadPopulationShapefile(in.Population, l.frame)
	}
	return nil, eris.Errorf("unsupported population input %q (want .csv, .geojson, .json or .shp)", in.Population)
}

func (l *loader) catalog(ctx context.Context) (*dataset.Catalog, error) {
	in := l.cfg.Input
	if in.ServicesTable != "" {
		st, err := l.store(ctx)
		if err != nil {
			return nil, err
		}
		return st.Catalog(ctx, in.ServicesTable)
	}

	switch ext(in.Services) {
	case ".csv":
		f, err := os.Open(in.Services)
		if err != nil {
			return nil, eris.Wrap(err, "open services file")
		}
		defer f.Close() //nolint:errcheck
		return source.ReadCatalogCSV(ctx, f, l.frame, source.CSVOptions{})
	case ".geojson", ".json":
		f, err := os.Open(in.Services)
		if err != nil {
			return nil, eris.Wrap(err, "open services file")
		}
		defer f.Close() //nolint:errcheck
		return source.ReadCatalogGeoJSON(f, l.frame)
	case ".shp":
		return source.ReadCatalogShapefile(in.Services, l.frame)
	}
	return nil, eris.Errorf("unsupported services input %q (want .csv, .geojson, .json or .shp)", in.Services)
}

// graph reads nodes and edges from CSV files, or from store tables when
// they are not CSV paths.
func (l *loader) graph(ctx context.Context) (*network.Graph, error) {
	in := l.cfg.Input
	if ext(in.Nodes) != ".csv" || ext(in.Edges) != ".csv" {
		st, err := l.store(ctx)
		if err != nil {
			return nil, err
		}
		return st.Graph(ctx, in.Nodes, in.Edges)
	}

	nodes, err := os.Open(in.Nodes)
	if err != nil {
		return nil, eris.Wrap(err, "open nodes file")
	}
	defer nodes.Close() //nolint:errcheck
	edges, err := os.Open(in.Edges)
	if err != nil {
		return nil, eris.Wrap(err, "open edges file")
	}
	defer edges.Close() //nolint:errcheck
	return source.ReadGraphCSV(nodes, edges, l.frame)
}

// buildStudy loads population and services, plus the street network when
// the configured mode routes over one.
func buildStudy(ctx context.Context, l *loader, withNetwork bool) (*analysis.Study, error) {
	metric, err := network.ParseMetric(l.cfg.Analysis.Metric)
	if err != nil {
		return nil, err
	}
	direction, err := network.ParseDirection(l.cfg.Analysis.Direction)
	if err != nil {
		return nil, err
	}

	s := analysis.New(l.cfg.Analysis.Study,
		analysis.WithWorkers(l.cfg.Analysis.Workers),
		analysis.WithMetric(metric),
		analysis.WithDirection(direction),
	)

	pop, err := l.population(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load population")
	}
	s.SetPopulation(pop)

	cat, err := l.catalog(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load services")
	}
	if err := s.MergeCatalog(cat); err != nil {
		return nil, err
	}

	if withNetwork && l.cfg.Analysis.Mode != analysis.ModeEuclidean {
		g, err := l.graph(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load street network")
		}
		if err := s.AddNetwork(l.cfg.Input.Network, g); err != nil {
			return nil, err
		}
	}

	zap.L().Info("study loaded",
		zap.String("study", s.Name()),
		zap.Int("population_points", pop.Len()),
		zap.Strings("categories", s.Categories()),
		zap.Strings("networks", s.Networks()),
	)
	return s, nil
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
