package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/database/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = &guestbook.User{ID: "alice-id", Email: "alice@example.com"}
	bob   = &guestbook.User{ID: "bob-id", Email: "bob@example.com"}
)

func TestDatabase_MigrateValidate(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	tables := testTables(t)

	db, err := postgres.Connect(ctx, pool.Config().ConnString(), tables)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	defer func() { _ = postgres.DropTables(ctx, pool, tables) }()

	require.NoError(t, db.Ping(ctx))
	assert.ErrorContains(t, db.Validate(ctx), "does not exist")

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "idempotent")
	assert.NoError(t, db.Validate(ctx))
}

func TestNewRepo_InvalidTables(t *testing.T) {
	_, err := postgres.NewRepo(nil, guestbook.Tables{})
	assert.Error(t, err)
}

func TestRepo_Greetings(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	for i := range 12 {
		g := newGreeting("g1", alice, fmt.Sprintf("post %d", i), baseTime.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.CreateGreeting(ctx, g))
	}
	require.NoError(t, repo.CreateGreeting(ctx, newGreeting("g2", nil, "elsewhere", baseTime)))

	got, err := repo.ListGreetings(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "post 11", got[0].Content)
	assert.Equal(t, "post 2", got[9].Content)
	assert.Equal(t, alice, got[0].Author)
	assert.True(t, baseTime.Add(11*time.Second).Equal(got[0].Date))

	other, err := repo.ListGreetings(ctx, "g2", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Nil(t, other[0].Author)
}

func TestRepo_Records(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	g := newGreeting("g1", alice, "hello", baseTime)
	require.NoError(t, repo.CreateGreeting(ctx, g))
	f := createBlobFile(t, repo, "cat.png", alice, baseTime)

	rec, err := repo.GetRecord(ctx, g.Key)
	require.NoError(t, err)
	assert.Equal(t, g.Key, rec.RecordKey())

	rec, err = repo.GetRecord(ctx, f.Key)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", rec.(guestbook.File).Blob.Filename)

	_, err = repo.GetRecord(ctx, guestbook.GuestbookKey("g1"))
	assert.ErrorIs(t, err, guestbook.ErrNotFound)

	require.NoError(t, repo.DeleteRecord(ctx, f.Key))
	assert.ErrorIs(t, repo.DeleteRecord(ctx, f.Key), guestbook.ErrNotFound)
	require.NoError(t, repo.DeleteRecord(ctx, g.Key))
	assert.ErrorIs(t, repo.DeleteRecord(ctx, g.Key), guestbook.ErrNotFound)

	_, err = repo.GetBlobInfo(ctx, f.Blob.Key)
	assert.NoError(t, err, "blob info outlives its file")
}

func TestRepo_ListFiles(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	a1 := createBlobFile(t, repo, "a1.png", alice, baseTime)
	createBlobFile(t, repo, "b1.png", bob, baseTime)
	anon := createBlobFile(t, repo, "anon.gif", nil, baseTime)

	got, err := repo.ListFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a1.Key, got[0].Key)
	assert.Equal(t, a1.Blob, got[0].Blob)

	got, err = repo.ListFiles(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, anon.Key, got[0].Key)
}

func TestRepo_OrphansAndSessions(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	createBlobFile(t, repo, "kept.png", alice, baseTime)
	gone := createBlobFile(t, repo, "gone.png", alice, baseTime)
	require.NoError(t, repo.DeleteRecord(ctx, gone.Key))

	orphans, err := repo.ListOrphanBlobInfos(ctx, baseTime.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, gone.Blob.Key, orphans[0].Key)

	s := guestbook.UploadSession{ID: uuid.New(), CallbackPath: "/upload_image", CreatedAt: baseTime, ExpiresAt: baseTime.Add(time.Hour)}
	require.NoError(t, repo.CreateUploadSession(ctx, s))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeUploadSession(ctx, s.ID, baseTime.Add(time.Minute)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	removed, err := repo.DeleteStaleUploadSessions(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
