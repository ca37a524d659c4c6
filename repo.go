package guestbook

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// GreetingRepo persists guestbook entries.
type GreetingRepo interface {
	// CreateGreeting stores g. Key, Guestbook and Date are set by the caller.
	CreateGreeting(ctx context.Context, g Greeting) error

	// ListGreetings returns at most limit greetings of one guestbook,
	// newest first. Ties on Date are broken by key name, descending.
	ListGreetings(ctx context.Context, guestbook string, limit int) ([]Greeting, error)
}

// FileRepo persists uploaded file records.
type FileRepo interface {
	// CreateFile stores f, referencing f.Blob.Key.
	CreateFile(ctx context.Context, f File) error

	// ListFiles returns every file owned by owner, oldest first, with blob
	// infos resolved. A nil owner matches files stored without an owner.
	// Files whose blob info is missing are skipped.
	ListFiles(ctx context.Context, owner *User) ([]File, error)
}

// RecordRepo looks records up by key, whatever their kind.
type RecordRepo interface {
	// GetRecord returns a Greeting or File.
	//
	// Returns ErrNotFound when nothing is stored under key, including for
	// Guestbook keys, which only group greetings.
	GetRecord(ctx context.Context, key Key) (Record, error)

	// DeleteRecord removes the record stored under key.
	//
	// Returns ErrNotFound when nothing was deleted.
	DeleteRecord(ctx context.Context, key Key) error
}

// BlobInfoRepo persists blob descriptions. The bytes live in BlobStorage.
type BlobInfoRepo interface {
	CreateBlobInfo(ctx context.Context, b BlobInfo) error

	// GetBlobInfo returns ErrNotFound for unknown keys.
	GetBlobInfo(ctx context.Context, key string) (BlobInfo, error)

	// DeleteBlobInfo returns ErrNotFound for unknown keys.
	DeleteBlobInfo(ctx context.Context, key string) error

	// ListOrphanBlobInfos returns up to limit blob infos created before
	// olderThan that no file references, oldest first.
	ListOrphanBlobInfos(ctx context.Context, olderThan time.Time, limit int) ([]BlobInfo, error)
}

// UploadSessionRepo persists the state behind one-time upload URLs.
type UploadSessionRepo interface {
	CreateUploadSession(ctx context.Context, s UploadSession) error

	// ConsumeUploadSession marks the session used and returns it.
	//
	// Returns ErrNotFound if the session is unknown, already used, or
	// expired at now. Concurrent calls for one session succeed at most once.
	ConsumeUploadSession(ctx context.Context, id uuid.UUID, now time.Time) (UploadSession, error)

	// DeleteStaleUploadSessions removes used sessions and sessions expired
	// at now, returning how many were removed.
	DeleteStaleUploadSessions(ctx context.Context, now time.Time) (int64, error)
}

// Repo is the full record store. Implementations must be safe for
// concurrent use.
type Repo interface {
	GreetingRepo
	FileRepo
	RecordRepo
	BlobInfoRepo
	UploadSessionRepo
}

// BlobStorage defines the interface for blob byte storage.
// Implementations can use the local filesystem, S3, MinIO or any other backend.
//
// All methods accept a context for cancellation and timeout control.
type BlobStorage interface {
	// Get opens the blob at path for reading.
	//
	// Returns ErrNotFound if nothing is stored at path. The caller closes the
	// reader. Readers that also implement io.Seeker are served with range
	// support.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores size bytes from content at path, overwriting any
	// existing blob. size may be -1 when unknown.
	//
	// Returns the bytes written and an ETag (hex MD5 of the content for
	// single-part writes).
	Write(ctx context.Context, path, contentType string, content io.Reader, size int64) (SaveResult, error)

	// Delete removes the blob at path.
	//
	// Returns ErrNotFound if nothing is stored at path.
	Delete(ctx context.Context, path string) error
}
