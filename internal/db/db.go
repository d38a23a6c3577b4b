// Package db provides database utilities and connection handling for CityPulse.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql consumers
)

// PgvectorRequirement documents that the application requires PostgreSQL with pgvector.
// pgvector enables nearest-neighbor queries over event embeddings.
const PgvectorRequirement = "pgvector extension is required for embedding queries"

// VersionQuery is the SQL query to verify pgvector is available.
const VersionQuery = "SELECT extversion FROM pg_extension WHERE extname = 'vector'"

// NewPool opens a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Open opens a database/sql handle for consumers that need the standard
// interface, such as health checks. The caller owns the returned handle.
func Open(dsn string) (*sql.DB, error) {
	handle, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	handle.SetMaxOpenConns(10)
	handle.SetMaxIdleConns(5)
	handle.SetConnMaxLifetime(time.Hour)
	return handle, nil
}
