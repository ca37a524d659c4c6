package guestbook

import (
	"fmt"
	"strings"
	"time"
)

// UploadPathPrefix is the route prefix of the signed upload endpoint.
const UploadPathPrefix = "/_ah/upload/"

// Service implements every guestbook and file operation on top of a Repo
// and a BlobStorage. It holds no mutable state and is safe for concurrent use.
type Service struct {
	repo             Repo
	storage          BlobStorage
	signer           *UploadSigner
	defaultGuestbook string
	pageSize         int
	enforceOwnership bool
	uploadExpiry     time.Duration
	cleanupTimeout   time.Duration
	publicURL        string
	now              func() time.Time
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	DefaultGuestbook string        // Guestbook used when a request names none (default: "default_name")
	PageSize         int           // Greetings per listing (default: 10)
	EnforceOwnership bool          // Restrict view/download/delete to the record owner
	UploadExpiry     time.Duration // Lifetime of upload URLs (default: 10m)
	CleanupTimeout   time.Duration // Timeout for cleanup operations (default: 30s)
	PublicURL        string        // Scheme and host prefixed to upload URLs; empty gives relative URLs
	Signer           *UploadSigner
	Now              func() time.Time
}

func NewService(repo Repo, storage BlobStorage, cfg ServiceConfig) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("new service: %w: repo is required", ErrInvalidInput)
	}
	if storage == nil {
		return nil, fmt.Errorf("new service: %w: storage is required", ErrInvalidInput)
	}

	s := &Service{
		repo:             repo,
		storage:          storage,
		signer:           cfg.Signer,
		defaultGuestbook: cfg.DefaultGuestbook,
		pageSize:         cfg.PageSize,
		enforceOwnership: cfg.EnforceOwnership,
		uploadExpiry:     cfg.UploadExpiry,
		cleanupTimeout:   cfg.CleanupTimeout,
		publicURL:        strings.TrimSuffix(cfg.PublicURL, "/"),
		now:              cfg.Now,
	}

	if s.defaultGuestbook == "" {
		s.defaultGuestbook = DefaultGuestbookName
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.uploadExpiry <= 0 {
		s.uploadExpiry = 10 * time.Minute
	}
	if s.uploadExpiry > MaxExpiresSeconds*time.Second {
		return nil, fmt.Errorf("new service: %w: upload expiry exceeds %ds", ErrInvalidInput, MaxExpiresSeconds)
	}
	if s.cleanupTimeout <= 0 {
		s.cleanupTimeout = 30 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// GuestbookName returns name, or the default guestbook when name is empty.
func (s *Service) GuestbookName(name string) string {
	if name == "" {
		return s.defaultGuestbook
	}
	return name
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
