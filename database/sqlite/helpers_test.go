package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/database/sqlite"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func testTables(t *testing.T) guestbook.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return guestbook.Tables{
		Greetings:      "greetings_" + suffix,
		Files:          "files_" + suffix,
		BlobInfos:      "blob_infos_" + suffix,
		UploadSessions: "upload_sessions_" + suffix,
	}
}

// setupTestRepo creates a migrated in-memory database with unique table names.
func setupTestRepo(t *testing.T) guestbook.Repo {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", testTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	return db.GetRepo()
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newGreeting(book string, author *guestbook.User, content string, at time.Time) guestbook.Greeting {
	return guestbook.Greeting{
		Key:       guestbook.NewGreetingKey(book),
		Guestbook: book,
		Author:    author,
		Content:   content,
		Date:      at,
	}
}

func createBlobFile(t *testing.T, repo guestbook.Repo, filename string, owner *guestbook.User, at time.Time) guestbook.File {
	t.Helper()
	ctx := context.Background()

	blob := guestbook.BlobInfo{
		Key:         uuid.NewString(),
		Filename:    filename,
		ContentType: "application/octet-stream",
		Size:        42,
		ETag:        "etag-" + filename,
		CreatedAt:   at,
	}
	require.NoError(t, repo.CreateBlobInfo(ctx, blob))

	f := guestbook.File{Key: guestbook.NewFileKey(), Blob: blob, User: owner, CreatedAt: at}
	require.NoError(t, repo.CreateFile(ctx, f))
	return f
}
