package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/guestbook"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations in dependency order.
func getTableMigrations(tables guestbook.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Greetings,
			Up:        createGreetingsTable(tables.Greetings),
			Down:      dropTable(tables.Greetings),
		},
		{
			TableName: tables.BlobInfos,
			Up:        createBlobInfosTable(tables.BlobInfos),
			Down:      dropTable(tables.BlobInfos),
		},
		{
			TableName: tables.Files,
			Up:        createFilesTable(tables.Files),
			Down:      dropTable(tables.Files),
		},
		{
			TableName: tables.UploadSessions,
			Up:        createUploadSessionsTable(tables.UploadSessions),
			Down:      dropTable(tables.UploadSessions),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables guestbook.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables guestbook.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func execAll(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createGreetingsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexByBook := quoteIdentifier(fmt.Sprintf("idx_%s_guestbook_date", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					guestbook_name TEXT NOT NULL,
					author_id TEXT,
					author_email TEXT,
					content TEXT NOT NULL,
					created_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`
				CREATE INDEX IF NOT EXISTS %s ON %s (guestbook_name, created_at DESC, id DESC)
			`, indexByBook, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create greetings table: %w", err)
		}
		return nil
	}
}

func createBlobInfosTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexCreated := quoteIdentifier(fmt.Sprintf("idx_%s_created_at", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					blob_key TEXT NOT NULL PRIMARY KEY,
					filename TEXT NOT NULL,
					content_type TEXT NOT NULL,
					size_bytes INTEGER NOT NULL,
					etag TEXT NOT NULL,
					created_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`
				CREATE INDEX IF NOT EXISTS %s ON %s (created_at, blob_key)
			`, indexCreated, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create blob infos table: %w", err)
		}
		return nil
	}
}

// Files reference blob infos without a foreign key: a deleted File leaves
// its blob info behind for the sweep, and the sweep only removes blob infos
// no File references.
func createFilesTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexOwner := quoteIdentifier(fmt.Sprintf("idx_%s_owner", tableName))
		indexBlob := quoteIdentifier(fmt.Sprintf("idx_%s_blob_key", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					blob_key TEXT NOT NULL,
					user_id TEXT,
					user_email TEXT,
					created_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`
				CREATE INDEX IF NOT EXISTS %s ON %s (user_id, created_at)
			`, indexOwner, quotedTable),
			fmt.Sprintf(`
				CREATE INDEX IF NOT EXISTS %s ON %s (blob_key)
			`, indexBlob, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create files table: %w", err)
		}
		return nil
	}
}

func createUploadSessionsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexExpires := quoteIdentifier(fmt.Sprintf("idx_%s_expires_at", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					callback_path TEXT NOT NULL,
					created_at TEXT NOT NULL,
					expires_at TEXT NOT NULL,
					used_at TEXT
				)
			`, quotedTable),
			fmt.Sprintf(`
				CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)
			`, indexExpires, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create upload sessions table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
