// Package sqlite implements guestbook.Repo on SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/guestbook"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables guestbook.Tables
}

// Connect opens a SQLite database.
// Tables should be validated before calling Connect.
//
// The pool is limited to one connection: every connection to ":memory:"
// opens a separate database, and a single writer avoids SQLITE_BUSY.
func Connect(ctx context.Context, dsn string, tables guestbook.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the record tables and indexes. It is idempotent.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the guestbook.Repo for database operations.
func (d *database) GetRepo() guestbook.Repo {
	return &repo{db: d.db, tables: d.tables}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
