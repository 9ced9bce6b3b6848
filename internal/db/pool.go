// Package db provides the PostgreSQL/PostGIS connection and bulk write
// helpers shared by the PostGIS source and the report sink.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Pool is the subset of *pgxpool.Pool used by this module. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	Retry           RetryConfig
}

// Connect opens a pool against url and pings it, retrying transient
// failures such as a server that is still starting.
func Connect(ctx context.Context, url string, pc PoolConfig) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, eris.New("db: no database_url configured (set store.database_url)")
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse connection string")
	}
	if pc.MaxConns > 0 {
		poolCfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		poolCfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := retry(ctx, pc.Retry, "connect", func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg.Copy())
		if err != nil {
			return nil, eris.Wrap(err, "db: create connection pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "db: ping database")
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("db: connected", zap.String("host", poolCfg.ConnConfig.Host), zap.String("database", poolCfg.ConnConfig.Database))
	return pool, nil
}
