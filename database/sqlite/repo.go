package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/guestbook"
)

// timeFormat is fixed width so stored timestamps sort lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

type repo struct {
	db     *sql.DB
	tables guestbook.Tables
}

type rowScanner interface {
	Scan(dest ...any) error
}

func userArgs(u *guestbook.User) (id, email sql.NullString) {
	if u == nil {
		return
	}
	return sql.NullString{String: u.ID, Valid: true}, sql.NullString{String: u.Email, Valid: true}
}

func scannedUser(id, email sql.NullString) *guestbook.User {
	if !id.Valid {
		return nil
	}
	return &guestbook.User{ID: id.String, Email: email.String}
}

func (r *repo) CreateGreeting(ctx context.Context, g guestbook.Greeting) error {
	id, err := g.Key.ID()
	if err != nil {
		return fmt.Errorf("create greeting: %w", err)
	}

	authorID, authorEmail := userArgs(g.Author)
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, guestbook_name, author_id, author_email, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, quoteIdentifier(r.tables.Greetings))

	_, err = r.db.ExecContext(ctx, query,
		id.String(), g.Guestbook, authorID, authorEmail, g.Content, formatTime(g.Date),
	)
	if err != nil {
		return fmt.Errorf("create greeting: %w", err)
	}

	return nil
}

func (r *repo) ListGreetings(ctx context.Context, name string, limit int) ([]guestbook.Greeting, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, guestbook_name, author_id, author_email, content, created_at
		FROM %s
		WHERE guestbook_name = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, quoteIdentifier(r.tables.Greetings))

	rows, err := r.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	greetings := make([]guestbook.Greeting, 0, limit)
	for rows.Next() {
		g, scanErr := scanGreeting(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list greetings: %w", scanErr)
		}
		greetings = append(greetings, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list greetings: rows: %w", err)
	}

	return greetings, nil
}

func scanGreeting(row rowScanner) (guestbook.Greeting, error) {
	var g guestbook.Greeting
	var id, createdAt string
	var authorID, authorEmail sql.NullString

	if err := row.Scan(&id, &g.Guestbook, &authorID, &authorEmail, &g.Content, &createdAt); err != nil {
		return guestbook.Greeting{}, err
	}

	date, err := parseTime(createdAt)
	if err != nil {
		return guestbook.Greeting{}, fmt.Errorf("parse created_at: %w", err)
	}

	parent := guestbook.GuestbookKey(g.Guestbook)
	g.Key = guestbook.Key{Kind: guestbook.KindGreeting, Name: id, Parent: &parent}
	g.Author = scannedUser(authorID, authorEmail)
	g.Date = date
	return g, nil
}

func (r *repo) CreateFile(ctx context.Context, f guestbook.File) error {
	id, err := f.Key.ID()
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if f.Blob.Key == "" {
		return fmt.Errorf("create file: %w: blob key cannot be empty", guestbook.ErrInvalidInput)
	}

	userID, userEmail := userArgs(f.User)
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, blob_key, user_id, user_email, created_at)
		VALUES (?, ?, ?, ?, ?)`, quoteIdentifier(r.tables.Files))

	_, err = r.db.ExecContext(ctx, query, id.String(), f.Blob.Key, userID, userEmail, formatTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	return nil
}

func (r *repo) fileSelect(join string) string {
	return fmt.Sprintf(
		`SELECT f.id, f.user_id, f.user_email, f.created_at,
			b.blob_key, b.filename, b.content_type, b.size_bytes, b.etag, b.created_at
		FROM %s f
		%s JOIN %s b ON b.blob_key = f.blob_key`,
		quoteIdentifier(r.tables.Files), join, quoteIdentifier(r.tables.BlobInfos))
}

func (r *repo) ListFiles(ctx context.Context, owner *guestbook.User) ([]guestbook.File, error) {
	var query string
	var args []any

	if owner == nil {
		query = r.fileSelect("INNER") + ` WHERE f.user_id IS NULL ORDER BY f.created_at, f.id`
	} else {
		query = r.fileSelect("INNER") + ` WHERE f.user_id = ? ORDER BY f.created_at, f.id`
		args = []any{owner.ID}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	files := []guestbook.File{}
	for rows.Next() {
		f, scanErr := scanFile(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list files: %w", scanErr)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: rows: %w", err)
	}

	return files, nil
}

// scanFile reads a fileSelect row. Blob columns are NULL under a LEFT JOIN
// miss, leaving File.Blob zero.
func scanFile(row rowScanner) (guestbook.File, error) {
	var f guestbook.File
	var id, createdAt string
	var userID, userEmail sql.NullString
	var blobKey, filename, contentType, etag, blobCreated sql.NullString
	var size sql.NullInt64

	err := row.Scan(&id, &userID, &userEmail, &createdAt,
		&blobKey, &filename, &contentType, &size, &etag, &blobCreated)
	if err != nil {
		return guestbook.File{}, err
	}

	f.Key = guestbook.Key{Kind: guestbook.KindFile, Name: id}
	f.User = scannedUser(userID, userEmail)

	f.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return guestbook.File{}, fmt.Errorf("parse created_at: %w", err)
	}

	if blobKey.Valid {
		f.Blob = guestbook.BlobInfo{
			Key:         blobKey.String,
			Filename:    filename.String,
			ContentType: contentType.String,
			Size:        size.Int64,
			ETag:        etag.String,
		}
		f.Blob.CreatedAt, err = parseTime(blobCreated.String)
		if err != nil {
			return guestbook.File{}, fmt.Errorf("parse blob created_at: %w", err)
		}
	}

	return f, nil
}

func (r *repo) GetRecord(ctx context.Context, key guestbook.Key) (guestbook.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	switch key.Kind {
	case guestbook.KindGreeting:
		query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT id, guestbook_name, author_id, author_email, content, created_at
			FROM %s
			WHERE id = ? AND guestbook_name = ?`, quoteIdentifier(r.tables.Greetings))

		g, err := scanGreeting(r.db.QueryRowContext(ctx, query, canonicalID(key), key.Guestbook()))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("get record: %w", guestbook.ErrNotFound)
			}
			return nil, fmt.Errorf("get record: %w", err)
		}
		return g, nil

	case guestbook.KindFile:
		query := r.fileSelect("LEFT") + ` WHERE f.id = ?`

		f, err := scanFile(r.db.QueryRowContext(ctx, query, canonicalID(key)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("get record: %w", guestbook.ErrNotFound)
			}
			return nil, fmt.Errorf("get record: %w", err)
		}
		return f, nil
	}

	return nil, fmt.Errorf("get record %s: %w", key, guestbook.ErrNotFound)
}

// canonicalID returns the stored form of a validated Greeting or File key name.
func canonicalID(key guestbook.Key) string {
	id, err := key.ID()
	if err != nil {
		return key.Name
	}
	return id.String()
}

func (r *repo) DeleteRecord(ctx context.Context, key guestbook.Key) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	var query string
	var args []any

	switch key.Kind {
	case guestbook.KindGreeting:
		query = fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND guestbook_name = ?`, quoteIdentifier(r.tables.Greetings)) //nolint:gosec // table name is validated
		args = []any{canonicalID(key), key.Guestbook()}
	case guestbook.KindFile:
		query = fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.tables.Files)) //nolint:gosec // table name is validated
		args = []any{canonicalID(key)}
	default:
		return fmt.Errorf("delete record %s: %w", key, guestbook.ErrNotFound)
	}

	return execOne(ctx, r.db, "delete record", query, args...)
}

// execOne runs a statement that must affect a row, else ErrNotFound.
func execOne(ctx context.Context, db *sql.DB, op, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, guestbook.ErrNotFound)
	}

	return nil
}

func (r *repo) CreateBlobInfo(ctx context.Context, b guestbook.BlobInfo) error {
	if b.Key == "" {
		return fmt.Errorf("create blob info: %w: key cannot be empty", guestbook.ErrInvalidInput)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (blob_key, filename, content_type, size_bytes, etag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, quoteIdentifier(r.tables.BlobInfos))

	_, err := r.db.ExecContext(ctx, query, b.Key, b.Filename, b.ContentType, b.Size, b.ETag, formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("create blob info: %w", err)
	}

	return nil
}

const blobInfoColumns = `blob_key, filename, content_type, size_bytes, etag, created_at`

func scanBlobInfo(row rowScanner) (guestbook.BlobInfo, error) {
	var b guestbook.BlobInfo
	var createdAt string

	if err := row.Scan(&b.Key, &b.Filename, &b.ContentType, &b.Size, &b.ETag, &createdAt); err != nil {
		return guestbook.BlobInfo{}, err
	}

	var err error
	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return guestbook.BlobInfo{}, fmt.Errorf("parse created_at: %w", err)
	}

	return b, nil
}

func (r *repo) GetBlobInfo(ctx context.Context, key string) (guestbook.BlobInfo, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE blob_key = ?`, blobInfoColumns, quoteIdentifier(r.tables.BlobInfos)) //nolint:gosec // table name is validated

	b, err := scanBlobInfo(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return guestbook.BlobInfo{}, fmt.Errorf("get blob info: %w", guestbook.ErrNotFound)
		}
		return guestbook.BlobInfo{}, fmt.Errorf("get blob info: %w", err)
	}

	return b, nil
}

func (r *repo) DeleteBlobInfo(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE blob_key = ?`, quoteIdentifier(r.tables.BlobInfos)) //nolint:gosec // table name is validated
	return execOne(ctx, r.db, "delete blob info", query, key)
}

func (r *repo) ListOrphanBlobInfos(ctx context.Context, olderThan time.Time, limit int) ([]guestbook.BlobInfo, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table names are validated
		`SELECT %s
		FROM %s b
		WHERE b.created_at < ?
			AND NOT EXISTS (SELECT 1 FROM %s f WHERE f.blob_key = b.blob_key)
		ORDER BY b.created_at, b.blob_key
		LIMIT ?`, blobInfoColumns, quoteIdentifier(r.tables.BlobInfos), quoteIdentifier(r.tables.Files))

	rows, err := r.db.QueryContext(ctx, query, formatTime(olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("list orphan blob infos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := make([]guestbook.BlobInfo, 0, limit)
	for rows.Next() {
		b, scanErr := scanBlobInfo(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list orphan blob infos: %w", scanErr)
		}
		infos = append(infos, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orphan blob infos: rows: %w", err)
	}

	return infos, nil
}

func (r *repo) CreateUploadSession(ctx context.Context, s guestbook.UploadSession) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, callback_path, created_at, expires_at)
		VALUES (?, ?, ?, ?)`, quoteIdentifier(r.tables.UploadSessions))

	_, err := r.db.ExecContext(ctx, query, s.ID.String(), s.CallbackPath, formatTime(s.CreatedAt), formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create upload session: %w", err)
	}

	return nil
}

func (r *repo) ConsumeUploadSession(ctx context.Context, id uuid.UUID, now time.Time) (guestbook.UploadSession, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET used_at = ?
		WHERE id = ? AND used_at IS NULL AND expires_at > ?
		RETURNING id, callback_path, created_at, expires_at, used_at`, quoteIdentifier(r.tables.UploadSessions))

	stamp := formatTime(now)

	var s guestbook.UploadSession
	var idStr, createdAt, expiresAt, usedAt string

	err := r.db.QueryRowContext(ctx, query, stamp, id.String(), stamp).Scan(
		&idStr, &s.CallbackPath, &createdAt, &expiresAt, &usedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return guestbook.UploadSession{}, fmt.Errorf("consume upload session: %w", guestbook.ErrNotFound)
		}
		return guestbook.UploadSession{}, fmt.Errorf("consume upload session: %w", err)
	}

	if s.ID, err = uuid.Parse(idStr); err != nil {
		return guestbook.UploadSession{}, fmt.Errorf("consume upload session: parse uuid: %w", err)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return guestbook.UploadSession{}, fmt.Errorf("consume upload session: parse created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return guestbook.UploadSession{}, fmt.Errorf("consume upload session: parse expires_at: %w", err)
	}
	used, err := parseTime(usedAt)
	if err != nil {
		return guestbook.UploadSession{}, fmt.Errorf("consume upload session: parse used_at: %w", err)
	}
	s.UsedAt = &used

	return s, nil
}

func (r *repo) DeleteStaleUploadSessions(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE used_at IS NOT NULL OR expires_at <= ?`, quoteIdentifier(r.tables.UploadSessions))

	result, err := r.db.ExecContext(ctx, query, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete stale upload sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale upload sessions: rows affected: %w", err)
	}

	return n, nil
}
