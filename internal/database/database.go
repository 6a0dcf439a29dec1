// Package database owns the Postgres connection and schema migrations.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/flowmesh/flowmesh/internal/config"
)

// Database represents the database access layer
type Database struct {
	db     *sqlx.DB
	config config.DatabaseConfig
}

// NewDatabase creates a new database connection and applies pending
// migrations
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	database := &Database{
		db:     db,
		config: cfg,
	}

	if err := database.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// GetDB returns the underlying sqlx handle
func (d *Database) GetDB() *sqlx.DB {
	return d.db
}

// Ping verifies the connection is alive
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}
