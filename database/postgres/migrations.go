package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/guestbook"
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func indexName(table, suffix string) string {
	return ident(fmt.Sprintf("idx_%s_%s", table, suffix))
}

// Migrate creates every record table. Statements use IF NOT EXISTS, so it
// can run on each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables guestbook.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	steps := []struct {
		table string
		fn    func(context.Context, *pgxpool.Pool, string) error
	}{
		{tables.Greetings, createGreetingsTable},
		{tables.BlobInfos, createBlobInfosTable},
		{tables.Files, createFilesTable},
		{tables.UploadSessions, createUploadSessionsTable},
	}

	for _, step := range steps {
		if err := step.fn(ctx, pool, step.table); err != nil {
			return fmt.Errorf("migrate up %s: %w", step.table, err)
		}
	}

	return nil
}

// DropTables removes every record table.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables guestbook.Tables) error {
	for _, table := range []string{tables.UploadSessions, tables.Files, tables.BlobInfos, tables.Greetings} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", ident(table))); err != nil {
			return fmt.Errorf("migrate down %s: %w", table, err)
		}
	}
	return nil
}

func createGreetingsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			guestbook_name TEXT NOT NULL,
			author_id TEXT,
			author_email TEXT,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (guestbook_name, created_at DESC, id DESC);
	`,
		ident(tableName),
		indexName(tableName, "guestbook_date"), ident(tableName),
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create greetings table: %w", err)
	}
	return nil
}

func createBlobInfosTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			blob_key TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			etag TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (created_at, blob_key);
	`,
		ident(tableName),
		indexName(tableName, "created_at"), ident(tableName),
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create blob infos table: %w", err)
	}
	return nil
}

// Files carry no foreign key to blob infos. A deleted File leaves its blob
// behind for the sweep.
func createFilesTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			blob_key TEXT NOT NULL,
			user_id TEXT,
			user_email TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (user_id, created_at);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (created_at)
		WHERE (user_id IS NULL);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (blob_key);
	`,
		ident(tableName),
		indexName(tableName, "owner"), ident(tableName),
		indexName(tableName, "anonymous"), ident(tableName),
		indexName(tableName, "blob_key"), ident(tableName),
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create files table: %w", err)
	}
	return nil
}

func createUploadSessionsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			callback_path TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			used_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (expires_at)
		WHERE (used_at IS NULL);
	`,
		ident(tableName),
		indexName(tableName, "pending"), ident(tableName),
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create upload sessions table: %w", err)
	}
	return nil
}
