package guestbook

import (
	"fmt"
	"strings"
)

// Category groups files by filename suffix for the media listings.
type Category string

const (
	CategoryImages Category = "images"
	CategoryAudio  Category = "audio"
	CategoryVideo  Category = "video"
)

// Suffixes are matched case-sensitively. ".MPG" is the only uppercase entry.
var categorySuffixes = map[Category][]string{
	CategoryImages: {".jpg", ".jpeg", ".png", ".gif"},
	CategoryAudio:  {".wav", ".aif", ".au", ".mp3"},
	CategoryVideo:  {".asf", ".mpeg", ".wmv", ".MPG"},
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	_, ok := categorySuffixes[c]
	return ok
}

// Suffixes returns the filename suffixes of c.
func (c Category) Suffixes() []string {
	return append([]string(nil), categorySuffixes[c]...)
}

// Matches reports whether filename ends with one of c's suffixes.
func (c Category) Matches(filename string) bool {
	for _, suffix := range categorySuffixes[c] {
		if strings.HasSuffix(filename, suffix) {
			return true
		}
	}
	return false
}

// ParseCategory returns the category named s.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("parse category: %w: %s", ErrInvalidInput, s)
	}
	return c, nil
}

// FilterFiles keeps the files whose blob filename matches c, preserving order.
func FilterFiles(files []File, c Category) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if c.Matches(f.Blob.Filename) {
			out = append(out, f)
		}
	}
	return out
}

// BlobPath returns the storage path of a blob key, sharded by its first two
// characters.
func BlobPath(key string) string {
	if len(key) < 2 {
		return "blobs/" + key
	}
	return "blobs/" + key[:2] + "/" + key
}
