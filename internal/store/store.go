// Package store persists projects and their variable configurations.
//
// Two backends implement core.Store: PostgresStore over a pgx pool and
// SQLiteStore over modernc's pure Go SQLite driver. Both share the same
// schema, embedded as goose migrations per dialect and applied on open.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/config"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/jackc/pgx/v5/stdlib"
)

// Store is a core.Store that can also report its schema version.
type Store interface {
	core.Store
	SchemaVersion(ctx context.Context) (int64, error)
}

// Open returns the migrated store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverPostgres:
		return OpenPostgres(ctx, PoolConfig{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case config.DriverSQLite, "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return MigrationVersion(s.db, DialectSQLite)
}

// SchemaVersion returns the applied migration version.
func (s *PostgresStore) SchemaVersion(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return MigrationVersion(db, DialectPostgres)
}
