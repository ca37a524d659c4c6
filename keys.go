package guestbook

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Record kinds.
const (
	KindGuestbook = "Guestbook"
	KindGreeting  = "Greeting"
	KindFile      = "File"
)

// Key addresses a record. Greetings are children of a Guestbook key, which
// places every greeting of one guestbook in the same group.
//
// Keys render as "Kind:name" segments joined by "/", outermost parent first,
// and travel in URLs base64url encoded (see Encode).
type Key struct {
	Kind   string
	Name   string
	Parent *Key
}

// GuestbookKey returns the group key for a guestbook name.
func GuestbookKey(name string) Key {
	return Key{Kind: KindGuestbook, Name: name}
}

// NewGreetingKey returns a fresh greeting key under the named guestbook.
func NewGreetingKey(guestbook string) Key {
	parent := GuestbookKey(guestbook)
	return Key{Kind: KindGreeting, Name: uuid.NewString(), Parent: &parent}
}

// NewFileKey returns a fresh file key. Files have no parent.
func NewFileKey() Key {
	return Key{Kind: KindFile, Name: uuid.NewString()}
}

// IsZero reports whether k is the empty key.
func (k Key) IsZero() bool {
	return k.Kind == "" && k.Name == "" && k.Parent == nil
}

// ID parses the key name as a UUID. Only Greeting and File keys have one.
func (k Key) ID() (uuid.UUID, error) {
	id, err := uuid.Parse(k.Name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("key id: %w: %s", ErrInvalidInput, k.Name)
	}
	return id, nil
}

// Guestbook returns the guestbook name a greeting key belongs to.
func (k Key) Guestbook() string {
	if k.Kind == KindGuestbook {
		return k.Name
	}
	if k.Parent != nil {
		return k.Parent.Guestbook()
	}
	return ""
}

// String returns the readable path form, e.g. "Guestbook:default_name/Greeting:<id>".
func (k Key) String() string {
	seg := k.Kind + ":" + url.QueryEscape(k.Name)
	if k.Parent == nil {
		return seg
	}
	return k.Parent.String() + "/" + seg
}

// Encode returns the URL-safe form used in query parameters.
func (k Key) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.String()))
}

// Validate checks kind, name and parent rules.
func (k Key) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("validate key: %w: empty name", ErrInvalidInput)
	}

	switch k.Kind {
	case KindGuestbook, KindFile:
		if k.Parent != nil {
			return fmt.Errorf("validate key: %w: %s keys have no parent", ErrInvalidInput, k.Kind)
		}
	case KindGreeting:
		if k.Parent == nil || k.Parent.Kind != KindGuestbook {
			return fmt.Errorf("validate key: %w: greeting keys need a guestbook parent", ErrInvalidInput)
		}
		if err := k.Parent.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("validate key: %w: unknown kind %q", ErrInvalidInput, k.Kind)
	}

	if k.Kind != KindGuestbook {
		if _, err := k.ID(); err != nil {
			return fmt.Errorf("validate key: %w", err)
		}
	}

	return nil
}

// DecodeKey parses the output of Key.Encode.
func DecodeKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("decode key: %w: empty key", ErrInvalidInput)
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("decode key: %w: bad encoding", ErrInvalidInput)
	}

	var key *Key
	for _, seg := range strings.Split(string(raw), "/") {
		kind, escaped, ok := strings.Cut(seg, ":")
		if !ok {
			return Key{}, fmt.Errorf("decode key: %w: bad segment %q", ErrInvalidInput, seg)
		}
		name, err := url.QueryUnescape(escaped)
		if err != nil {
			return Key{}, fmt.Errorf("decode key: %w: bad name %q", ErrInvalidInput, escaped)
		}
		key = &Key{Kind: kind, Name: name, Parent: key}
	}

	if err := key.Validate(); err != nil {
		return Key{}, fmt.Errorf("decode key: %w", err)
	}

	return *key, nil
}
