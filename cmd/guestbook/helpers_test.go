package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/blobstore/filesystem"
	"github.com/sagarc03/guestbook/database/sqlite"
)

var (
	alice = cliUser("alice@example.com", "")
	bob   = cliUser("bob@example.com", "")
)

// newTestService builds a service on in-memory SQLite and a temp blob
// directory.
func newTestService(t *testing.T, cfg guestbook.ServiceConfig) *guestbook.Service {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", guestbook.DefaultTables())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	root, err := os.OpenRoot(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	svc, err := guestbook.NewService(db.GetRepo(), filesystem.NewFileStorage(root), cfg)
	require.NoError(t, err)
	return svc
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
