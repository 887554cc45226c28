package store

import (
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// Dialects accepted by Migrate.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Migrate runs all pending migrations for dialect.
func Migrate(db *sql.DB, dialect string) error {
	dir, err := setupGoose(dialect)
	if err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func MigrationVersion(db *sql.DB, dialect string) (int64, error) {
	if _, err := setupGoose(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}

func setupGoose(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return "", fmt.Errorf("unknown migration dialect %q", dialect)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("failed to set dialect: %w", err)
	}
	return path.Join("migrations", dialect), nil
}
