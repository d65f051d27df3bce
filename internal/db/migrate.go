package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// RunMigrations applies every pending migration to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func MigrationVersion(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, Migrations)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	return provider.GetDBVersion(ctx)
}
