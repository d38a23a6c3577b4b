package health

import (
	"context"
	"database/sql"
)

// DBChecker reports database liveness for the readiness probe.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
