package guestbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// DefaultContentType is stored for uploads that declare no content type.
const DefaultContentType = "application/octet-stream"

// CreateUploadURL returns a signed, one-time URL that accepts a multipart
// POST. Once the endpoint has stored the uploaded blobs it hands the request
// to callback.
func (s *Service) CreateUploadURL(ctx context.Context, callback string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("create upload url: %w", err)
	}

	if s.signer == nil {
		return "", fmt.Errorf("create upload url: %w: no signer configured", ErrInternal)
	}

	if !strings.HasPrefix(callback, "/") || strings.HasPrefix(callback, "//") {
		return "", fmt.Errorf("create upload url: %w: callback must be a local path: %q", ErrInvalidInput, callback)
	}

	now := s.clock()
	session := UploadSession{
		ID:           uuid.New(),
		CallbackPath: callback,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.uploadExpiry),
	}

	if err := s.repo.CreateUploadSession(ctx, session); err != nil {
		return "", fmt.Errorf("create upload url: %w", err)
	}

	path := UploadPathPrefix + session.ID.String()
	query, err := s.signer.WithClock(s.now).Sign(http.MethodPost, path, s.uploadExpiry)
	if err != nil {
		return "", fmt.Errorf("create upload url: %w", err)
	}

	return s.publicURL + path + "?" + query.Encode(), nil
}

// ConsumeUpload verifies a request to the upload endpoint and marks its
// session used. path is the request path, sessionID its last segment.
//
// Returns ErrUnauthorized or ErrUploadExpired for a bad signature, and
// ErrNotFound for unknown, used or expired sessions.
func (s *Service) ConsumeUpload(ctx context.Context, path string, query url.Values, sessionID string) (UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return UploadSession{}, fmt.Errorf("consume upload: %w", err)
	}

	if s.signer == nil {
		return UploadSession{}, fmt.Errorf("consume upload: %w: no signer configured", ErrInternal)
	}

	if err := s.signer.WithClock(s.now).Verify(http.MethodPost, path, query); err != nil {
		return UploadSession{}, fmt.Errorf("consume upload: %w", err)
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return UploadSession{}, fmt.Errorf("consume upload: %w: bad session id", ErrNotFound)
	}

	session, err := s.repo.ConsumeUploadSession(ctx, id, s.clock())
	if err != nil {
		return UploadSession{}, fmt.Errorf("consume upload %s: %w", id, err)
	}

	return session, nil
}

// StoreBlob writes one uploaded part to blob storage and records its
// BlobInfo. If the BlobInfo cannot be stored, the written bytes are removed.
func (s *Service) StoreBlob(ctx context.Context, up Upload, content io.Reader) (BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return BlobInfo{}, fmt.Errorf("store blob: %w", err)
	}

	if content == nil {
		return BlobInfo{}, fmt.Errorf("store blob: %w: content cannot be nil", ErrInvalidInput)
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	size := up.Size
	if size <= 0 {
		size = -1
	}

	key := uuid.NewString()
	path := BlobPath(key)

	saveResult, writeErr := s.storage.Write(ctx, path, contentType, content, size)
	if writeErr != nil {
		return BlobInfo{}, fmt.Errorf("store blob %s: write failed: %w", up.Filename, writeErr)
	}

	info := BlobInfo{
		Key:         key,
		Filename:    up.Filename,
		ContentType: contentType,
		Size:        saveResult.BytesWritten,
		ETag:        saveResult.Etag,
		CreatedAt:   s.clock(),
	}

	if createErr := s.repo.CreateBlobInfo(ctx, info); createErr != nil {
		// Use background context for cleanup since original context may be cancelled
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, path); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			return BlobInfo{}, fmt.Errorf("store blob %s: blob info failed (%w) and cleanup failed: %w", up.Filename, createErr, delErr)
		}
		return BlobInfo{}, fmt.Errorf("store blob %s: blob info failed: %w", up.Filename, createErr)
	}

	return info, nil
}

// CompleteUpload records the first uploaded blob as a File owned by user.
// user may be nil.
//
// Returns ErrNoUpload when blobs is empty.
func (s *Service) CompleteUpload(ctx context.Context, blobs []BlobInfo, user *User) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, fmt.Errorf("complete upload: %w", err)
	}

	if len(blobs) == 0 {
		return File{}, fmt.Errorf("complete upload: %w", ErrNoUpload)
	}

	f := File{
		Key:       NewFileKey(),
		Blob:      blobs[0],
		User:      user,
		CreatedAt: s.clock(),
	}

	if err := s.repo.CreateFile(ctx, f); err != nil {
		return File{}, fmt.Errorf("complete upload %s: %w", f.Blob.Filename, err)
	}

	return f, nil
}
