package health

import (
	"context"
	"database/sql"
	"fmt"
)

// DBChecker reports whether the Postgres store backing content items and
// engagement events is reachable.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a health checker for the given database handle.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database over the existing connection pool.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
