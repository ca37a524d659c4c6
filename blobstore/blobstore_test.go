package blobstore_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sagarc03/guestbook/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Filesystem(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "blobs")

	storage, cleanup, err := blobstore.Open(ctx, blobstore.Config{Backend: "filesystem", Path: dir})
	require.NoError(t, err)
	defer cleanup()

	_, err = storage.Write(ctx, "blobs/ab/abc", "text/plain", bytes.NewReader([]byte("hi")), 2)
	require.NoError(t, err)

	r, err := storage.Get(ctx, "blobs/ab/abc")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestOpen_Unsupported(t *testing.T) {
	_, _, err := blobstore.Open(context.Background(), blobstore.Config{Backend: "gcs"})
	assert.ErrorContains(t, err, "unsupported storage backend: gcs")
}
