// Package filesystem stores blob bytes under a local directory.
// Writes go to a temp file first and are renamed into place, so readers
// never see a partial blob.
package filesystem

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: md5 is the blob checksum, not a security primitive
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sagarc03/guestbook"
)

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Get opens a blob for reading. The returned reader is an *os.File and can
// seek. Returns guestbook.ErrNotFound if the blob does not exist.
func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, guestbook.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically writes content to path and returns the byte count and
// MD5 etag. The content type is not kept on disk; the blob info row holds
// it. A non-negative size must match the bytes read.
func (s *Store) Write(ctx context.Context, path, _ string, content io.Reader, size int64) (guestbook.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return guestbook.SaveResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return guestbook.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := md5.New() //nolint:gosec // G401
	w := io.MultiWriter(h, t)

	written, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("could not copy blob contents: %w", err)
	}

	if size >= 0 && written != size {
		return guestbook.SaveResult{}, fmt.Errorf("short write: expected %d bytes, got %d", size, written)
	}

	if err = t.Sync(); err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("could not sync written blob: %w", err)
	}

	destDir := filepath.Dir(path)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return guestbook.SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, path); renameErr != nil {
		return guestbook.SaveResult{}, fmt.Errorf("failed to rename blob: %w", renameErr)
	}

	success = true

	return guestbook.SaveResult{BytesWritten: written, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a blob. Returns guestbook.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return guestbook.ErrNotFound
		}
		return fmt.Errorf("could not delete blob: %w", err)
	}
	return nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
