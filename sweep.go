package guestbook

import (
	"context"
	"errors"
	"fmt"
)

// SweepResult reports what Sweep removed.
type SweepResult struct {
	Sessions int64 // used or expired upload sessions
	Blobs    int   // orphaned blobs, bytes and blob info
}

// Sweep removes stale upload sessions and blobs no File references.
//
// A blob is orphaned when its File was deleted or its upload never reached
// the callback. Blobs younger than the upload expiry are left alone so an
// upload in flight is not collected before its File is written. Blobs are
// processed limit at a time until none remain.
//
// If a blob is already gone from storage (ErrNotFound) its blob info is
// removed anyway, which finishes a previous sweep that failed halfway.
func (s *Service) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("sweep: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}

	now := s.clock()

	removed, err := s.repo.DeleteStaleUploadSessions(ctx, now)
	if err != nil {
		return result, fmt.Errorf("sweep sessions: %w", err)
	}
	result.Sessions = removed

	olderThan := now.Add(-s.uploadExpiry)

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("sweep: %w", err)
		}

		orphans, listErr := s.repo.ListOrphanBlobInfos(ctx, olderThan, limit)
		if listErr != nil {
			return result, fmt.Errorf("sweep blobs: %w", listErr)
		}

		if len(orphans) == 0 {
			break
		}

		for _, blob := range orphans {
			deleteErr := s.storage.Delete(ctx, BlobPath(blob.Key))
			if deleteErr != nil && !errors.Is(deleteErr, ErrNotFound) {
				return result, fmt.Errorf("sweep blob '%s': %w", blob.Key, deleteErr)
			}

			infoErr := s.repo.DeleteBlobInfo(ctx, blob.Key)
			if infoErr != nil && !errors.Is(infoErr, ErrNotFound) {
				return result, fmt.Errorf("sweep blob '%s': %w", blob.Key, infoErr)
			}

			result.Blobs++
		}

		if len(orphans) < limit {
			break
		}
	}

	return result, nil
}
