// Package database provides the PostgreSQL connection pool backing the
// session store.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing and recycling defaults, used when Config leaves a field zero.
// Session rows are small and turn processing holds a connection only for the
// commit, so a modest pool goes a long way.
const (
	defaultMaxConns        = 25
	defaultMinConns        = 5
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
)

// Config controls pool sizing and connection recycling.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// New creates a connection pool from cfg, filling unset fields with the
// package defaults, and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = int32(orDefault(cfg.MaxConns, defaultMaxConns))
	poolCfg.MinConns = int32(orDefault(cfg.MinConns, defaultMinConns))
	poolCfg.MaxConnLifetime = orDefaultDur(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	poolCfg.MaxConnIdleTime = orDefaultDur(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func orDefaultDur(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
