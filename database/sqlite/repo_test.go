package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/guestbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = &guestbook.User{ID: "alice-id", Email: "alice@example.com"}
	bob   = &guestbook.User{ID: "bob-id", Email: "bob@example.com"}
)

func TestRepo_Greetings(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	for i := range 12 {
		g := newGreeting("g1", alice, fmt.Sprintf("post %d", i), baseTime.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.CreateGreeting(ctx, g))
	}
	require.NoError(t, repo.CreateGreeting(ctx, newGreeting("g2", nil, "elsewhere", baseTime.Add(time.Hour))))

	got, err := repo.ListGreetings(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)

	assert.Equal(t, "post 11", got[0].Content)
	assert.Equal(t, "post 2", got[9].Content)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Date.After(got[i-1].Date), "newest first")
	}
	for _, g := range got {
		assert.Equal(t, "g1", g.Guestbook)
		assert.Equal(t, "g1", g.Key.Guestbook())
		assert.Equal(t, alice, g.Author)
	}

	other, err := repo.ListGreetings(ctx, "g2", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Nil(t, other[0].Author)
	assert.True(t, baseTime.Add(time.Hour).Equal(other[0].Date))

	empty, err := repo.ListGreetings(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepo_Greetings_SameTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	for i := range 3 {
		require.NoError(t, repo.CreateGreeting(ctx, newGreeting("g", nil, fmt.Sprint(i), baseTime)))
	}

	got, err := repo.ListGreetings(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Greater(t, got[0].Key.Name, got[1].Key.Name)
	assert.Greater(t, got[1].Key.Name, got[2].Key.Name)
}

func TestRepo_GetRecord(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	g := newGreeting("g1", alice, "hello", baseTime)
	require.NoError(t, repo.CreateGreeting(ctx, g))
	f := createBlobFile(t, repo, "cat.png", alice, baseTime)

	t.Run("greeting", func(t *testing.T) {
		rec, err := repo.GetRecord(ctx, g.Key)
		require.NoError(t, err)
		got, ok := rec.(guestbook.Greeting)
		require.True(t, ok)
		assert.Equal(t, "hello", got.Content)
		assert.Equal(t, g.Key, got.Key)
	})

	t.Run("greeting under another guestbook", func(t *testing.T) {
		parent := guestbook.GuestbookKey("g2")
		moved := guestbook.Key{Kind: guestbook.KindGreeting, Name: g.Key.Name, Parent: &parent}
		_, err := repo.GetRecord(ctx, moved)
		assert.ErrorIs(t, err, guestbook.ErrNotFound)
	})

	t.Run("file with blob", func(t *testing.T) {
		rec, err := repo.GetRecord(ctx, f.Key)
		require.NoError(t, err)
		got, ok := rec.(guestbook.File)
		require.True(t, ok)
		assert.Equal(t, f.Blob.Key, got.Blob.Key)
		assert.Equal(t, "cat.png", got.Blob.Filename)
		assert.Equal(t, int64(42), got.Blob.Size)
		assert.Equal(t, alice, got.User)
	})

	t.Run("file whose blob info is gone", func(t *testing.T) {
		require.NoError(t, repo.DeleteBlobInfo(ctx, f.Blob.Key))
		rec, err := repo.GetRecord(ctx, f.Key)
		require.NoError(t, err)
		assert.Empty(t, rec.(guestbook.File).Blob.Key)
	})

	t.Run("guestbook key", func(t *testing.T) {
		_, err := repo.GetRecord(ctx, guestbook.GuestbookKey("g1"))
		assert.ErrorIs(t, err, guestbook.ErrNotFound)
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := repo.GetRecord(ctx, guestbook.NewFileKey())
		assert.ErrorIs(t, err, guestbook.ErrNotFound)
	})
}

func TestRepo_DeleteRecord(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	f := createBlobFile(t, repo, "song.mp3", alice, baseTime)
	g := newGreeting("g1", nil, "bye", baseTime)
	require.NoError(t, repo.CreateGreeting(ctx, g))

	require.NoError(t, repo.DeleteRecord(ctx, f.Key))
	assert.ErrorIs(t, repo.DeleteRecord(ctx, f.Key), guestbook.ErrNotFound)

	_, err := repo.GetBlobInfo(ctx, f.Blob.Key)
	assert.NoError(t, err, "blob info outlives its file")

	require.NoError(t, repo.DeleteRecord(ctx, g.Key))
	assert.ErrorIs(t, repo.DeleteRecord(ctx, g.Key), guestbook.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteRecord(ctx, guestbook.GuestbookKey("g1")), guestbook.ErrNotFound)
}

func TestRepo_ListFiles(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	a1 := createBlobFile(t, repo, "a1.png", alice, baseTime)
	a2 := createBlobFile(t, repo, "a2.mp3", alice, baseTime.Add(time.Second))
	createBlobFile(t, repo, "b1.png", bob, baseTime)
	anon := createBlobFile(t, repo, "anon.gif", nil, baseTime)

	got, err := repo.ListFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a1.Key, got[0].Key)
	assert.Equal(t, a2.Key, got[1].Key)

	sameID := &guestbook.User{ID: alice.ID}
	got, err = repo.ListFiles(ctx, sameID)
	require.NoError(t, err)
	assert.Len(t, got, 2, "ownership matches on ID")

	got, err = repo.ListFiles(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, anon.Key, got[0].Key)
	assert.Nil(t, got[0].User)

	require.NoError(t, repo.DeleteBlobInfo(ctx, a1.Blob.Key))
	got, err = repo.ListFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, got, 1, "files without blob info are skipped")

	got, err = repo.ListFiles(ctx, &guestbook.User{ID: "carol"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRepo_BlobInfos(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	b := guestbook.BlobInfo{Key: uuid.NewString(), Filename: "x.wav", ContentType: "audio/wav", Size: 7, ETag: "e", CreatedAt: baseTime}
	require.NoError(t, repo.CreateBlobInfo(ctx, b))
	assert.Error(t, repo.CreateBlobInfo(ctx, b), "duplicate key")

	got, err := repo.GetBlobInfo(ctx, b.Key)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	require.NoError(t, repo.DeleteBlobInfo(ctx, b.Key))
	_, err = repo.GetBlobInfo(ctx, b.Key)
	assert.ErrorIs(t, err, guestbook.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteBlobInfo(ctx, b.Key), guestbook.ErrNotFound)
}

func TestRepo_ListOrphanBlobInfos(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	referenced := createBlobFile(t, repo, "kept.png", alice, baseTime)
	deleted := createBlobFile(t, repo, "deleted.png", alice, baseTime.Add(time.Second))
	require.NoError(t, repo.DeleteRecord(ctx, deleted.Key))

	pending := guestbook.BlobInfo{Key: uuid.NewString(), Filename: "pending", CreatedAt: baseTime.Add(time.Hour)}
	require.NoError(t, repo.CreateBlobInfo(ctx, pending))

	got, err := repo.ListOrphanBlobInfos(ctx, baseTime.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, deleted.Blob.Key, got[0].Key)

	got, err = repo.ListOrphanBlobInfos(ctx, baseTime.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, deleted.Blob.Key, got[0].Key)
	assert.Equal(t, pending.Key, got[1].Key)

	got, err = repo.ListOrphanBlobInfos(ctx, baseTime.Add(2*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	for _, b := range got {
		assert.NotEqual(t, referenced.Blob.Key, b.Key)
	}
}

func TestRepo_UploadSessions(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	s := guestbook.UploadSession{
		ID:           uuid.New(),
		CallbackPath: "/upload_image",
		CreatedAt:    baseTime,
		ExpiresAt:    baseTime.Add(10 * time.Minute),
	}
	require.NoError(t, repo.CreateUploadSession(ctx, s))

	expired := guestbook.UploadSession{
		ID:           uuid.New(),
		CallbackPath: "/upload_image",
		CreatedAt:    baseTime,
		ExpiresAt:    baseTime.Add(time.Minute),
	}
	require.NoError(t, repo.CreateUploadSession(ctx, expired))

	now := baseTime.Add(2 * time.Minute)

	got, err := repo.ConsumeUploadSession(ctx, s.ID, now)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "/upload_image", got.CallbackPath)
	require.NotNil(t, got.UsedAt)
	assert.True(t, now.Equal(*got.UsedAt))

	_, err = repo.ConsumeUploadSession(ctx, s.ID, now)
	assert.ErrorIs(t, err, guestbook.ErrNotFound, "one-time")

	_, err = repo.ConsumeUploadSession(ctx, expired.ID, now)
	assert.ErrorIs(t, err, guestbook.ErrNotFound, "expired")

	_, err = repo.ConsumeUploadSession(ctx, uuid.New(), now)
	assert.ErrorIs(t, err, guestbook.ErrNotFound, "unknown")

	removed, err := repo.DeleteStaleUploadSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestRepo_ConsumeUploadSession_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	s := guestbook.UploadSession{ID: uuid.New(), CallbackPath: "/cb", CreatedAt: baseTime, ExpiresAt: baseTime.Add(time.Hour)}
	require.NoError(t, repo.CreateUploadSession(ctx, s))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeUploadSession(ctx, s.ID, baseTime); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
