package guestbook

import (
	"context"
	"fmt"
	"io"
)

// ListFiles returns every file owned by user. A nil user lists the files
// that were uploaded without an owner.
func (s *Service) ListFiles(ctx context.Context, user *User) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	files, err := s.repo.ListFiles(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	return files, nil
}

// ListCategory returns the files of user whose filename matches c.
func (s *Service) ListCategory(ctx context.Context, user *User, c Category) ([]File, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("list %s: %w: unknown category", c, ErrInvalidInput)
	}

	files, err := s.ListFiles(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}

	return FilterFiles(files, c), nil
}

// OpenBlob resolves an encoded File key and opens its blob for reading.
// The caller closes the reader.
//
// Returns ErrNotFound when user is nil, the key is missing or malformed, no
// record exists, or the record has no blob. With ownership enforcement on,
// another user's file is also ErrNotFound.
func (s *Service) OpenBlob(ctx context.Context, user *User, encodedKey string) (BlobInfo, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return BlobInfo{}, nil, fmt.Errorf("open blob: %w", err)
	}

	record, err := s.lookup(ctx, user, encodedKey)
	if err != nil {
		return BlobInfo{}, nil, fmt.Errorf("open blob: %w", err)
	}

	file, ok := record.(File)
	if !ok || file.Blob.Key == "" {
		return BlobInfo{}, nil, fmt.Errorf("open blob %s: %w: record has no blob", record.RecordKey(), ErrNotFound)
	}

	if s.enforceOwnership && !SameUser(file.User, user) {
		return BlobInfo{}, nil, fmt.Errorf("open blob %s: %w", file.Key, ErrNotFound)
	}

	rc, err := s.storage.Get(ctx, BlobPath(file.Blob.Key))
	if err != nil {
		return BlobInfo{}, nil, fmt.Errorf("open blob %s: %w", file.Key, err)
	}

	return file.Blob, rc, nil
}

// DeleteRecord deletes the record behind an encoded key, whatever its kind.
// The blob of a deleted File stays in storage until Sweep collects it.
//
// Returns ErrNotFound when user is nil, the key is missing or malformed, or
// nothing was deleted.
func (s *Service) DeleteRecord(ctx context.Context, user *User, encodedKey string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if s.enforceOwnership {
		record, err := s.lookup(ctx, user, encodedKey)
		if err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		if !SameUser(recordOwner(record), user) {
			return fmt.Errorf("delete record %s: %w", record.RecordKey(), ErrNotFound)
		}
	}

	key, err := s.decode(user, encodedKey)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if err := s.repo.DeleteRecord(ctx, key); err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}

	return nil
}

func (s *Service) decode(user *User, encodedKey string) (Key, error) {
	if user == nil {
		return Key{}, fmt.Errorf("%w: not signed in", ErrNotFound)
	}

	key, err := DecodeKey(encodedKey)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return key, nil
}

func (s *Service) lookup(ctx context.Context, user *User, encodedKey string) (Record, error) {
	key, err := s.decode(user, encodedKey)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.GetRecord(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return record, nil
}

func recordOwner(r Record) *User {
	switch v := r.(type) {
	case File:
		return v.User
	case Greeting:
		return v.Author
	}
	return nil
}
