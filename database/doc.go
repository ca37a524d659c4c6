// Package database connects to the record store behind the guestbook.
//
// Two backends are supported:
//
//   - PostgreSQL via a pgx connection pool (database/postgres)
//   - SQLite via modernc.org/sqlite (database/sqlite)
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Type:   "sqlite",
//	    DSN:    "guestbook.db",
//	    Tables: guestbook.DefaultTables(),
//	}, true)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	repo := db.GetRepo()
//
// Open pings the backend, runs migrations when asked and validates the
// schema. Connect only opens the connection, which the migrate command uses
// to run each step on its own.
package database
