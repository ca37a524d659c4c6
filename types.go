package guestbook

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultGuestbookName is used when a request names no guestbook.
const DefaultGuestbookName = "default_name"

// DefaultPageSize is the number of greetings shown per guestbook.
const DefaultPageSize = 10

// User identifies a signed-in visitor. Records store the ID and Email;
// ownership compares IDs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Nickname returns the local part of the email, or the ID when there is no email.
func (u *User) Nickname() string {
	if u == nil {
		return ""
	}
	if u.Email == "" {
		return u.ID
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

func (u *User) String() string {
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// SameUser reports whether a and b refer to the same identity. Two nil users match.
func SameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

// Greeting is one guestbook entry. Its key's parent is the guestbook key.
type Greeting struct {
	Key       Key       `json:"key"`
	Guestbook string    `json:"guestbook"`
	Author    *User     `json:"author,omitempty"`
	Content   string    `json:"content"`
	Date      time.Time `json:"date"`
}

// RecordKey implements Record.
func (g Greeting) RecordKey() Key { return g.Key }

// BlobInfo describes a stored blob. Key is the opaque blob reference.
type BlobInfo struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ETag        string    `json:"etag"`
	CreatedAt   time.Time `json:"created_at"`
}

// File is an uploaded blob owned by a user. A nil User means no owner.
type File struct {
	Key       Key       `json:"key"`
	Blob      BlobInfo  `json:"blob"`
	User      *User     `json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordKey implements Record.
func (f File) RecordKey() Key { return f.Key }

// Record is anything the generic key lookup can return.
type Record interface {
	RecordKey() Key
}

// UploadSession backs a one-time upload URL.
type UploadSession struct {
	ID           uuid.UUID  `json:"id"`
	CallbackPath string     `json:"callback_path"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
}

// Upload is one file part received by the upload endpoint.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
}

type SaveResult struct {
	BytesWritten int64
	Etag         string
}

// Tables holds configurable table names for record storage.
// This allows several deployments to share one database.
type Tables struct {
	Greetings      string `mapstructure:"greetings"`
	Files          string `mapstructure:"files"`
	BlobInfos      string `mapstructure:"blob_infos"`
	UploadSessions string `mapstructure:"upload_sessions"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Greetings:      "guestbook_greetings",
		Files:          "guestbook_files",
		BlobInfos:      "guestbook_blob_infos",
		UploadSessions: "guestbook_upload_sessions",
	}
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		label string
		value string
	}{
		{"greetings", t.Greetings},
		{"files", t.Files},
		{"blob infos", t.BlobInfos},
		{"upload sessions", t.UploadSessions},
	}

	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("validate tables: %w: %s table name cannot be empty", ErrInvalidInput, n.label)
		}
		if !IsValidTableName(n.value) {
			return fmt.Errorf("validate tables: %w: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", ErrInvalidInput, n.label, n.value)
		}
		if other, dup := seen[n.value]; dup {
			return fmt.Errorf("validate tables: %w: %s and %s share table name %s", ErrInvalidInput, n.label, other, n.value)
		}
		seen[n.value] = n.label
	}

	return nil
}
