package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/guestbook"
)

type repo struct {
	pool   *pgxpool.Pool
	tables guestbook.Tables
}

// NewRepo returns a guestbook.Repo over an existing pool.
func NewRepo(pool *pgxpool.Pool, tables guestbook.Tables) (guestbook.Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &repo{pool: pool, tables: tables}, nil
}

func userArgs(u *guestbook.User) (id, email *string) {
	if u == nil {
		return nil, nil
	}
	return &u.ID, &u.Email
}

func scannedUser(id, email *string) *guestbook.User {
	if id == nil {
		return nil
	}
	u := &guestbook.User{ID: *id}
	if email != nil {
		u.Email = *email
	}
	return u
}

func (r *repo) CreateGreeting(ctx context.Context, g guestbook.Greeting) error {
	id, err := g.Key.ID()
	if err != nil {
		return fmt.Errorf("create greeting: %w", err)
	}

	authorID, authorEmail := userArgs(g.Author)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, guestbook_name, author_id, author_email, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ident(r.tables.Greetings))

	if _, err := r.pool.Exec(ctx, query, id, g.Guestbook, authorID, authorEmail, g.Content, g.Date.UTC()); err != nil {
		return fmt.Errorf("create greeting: %w", err)
	}

	return nil
}

func (r *repo) ListGreetings(ctx context.Context, name string, limit int) ([]guestbook.Greeting, error) {
	query := fmt.Sprintf(`
		SELECT id, guestbook_name, author_id, author_email, content, created_at
		FROM %s
		WHERE guestbook_name = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, ident(r.tables.Greetings))

	rows, err := r.pool.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}
	defer rows.Close()

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

func scanGreeting(row pgx.Row) (guestbook.Greeting, error) {
	var g guestbook.Greeting
	var id uuid.UUID
	var authorID, authorEmail *string

	if err := row.Scan(&id, &g.Guestbook, &authorID, &authorEmail, &g.Content, &g.Date); err != nil {
		return guestbook.Greeting{}, err
	}

	parent := guestbook.GuestbookKey(g.Guestbook)
	g.Key = guestbook.Key{Kind: guestbook.KindGreeting, Name: id.String(), Parent: &parent}
	g.Author = scannedUser(authorID, authorEmail)
	g.Date = g.Date.UTC()
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
	query := fmt.Sprintf(`
		INSERT INTO %s (id, blob_key, user_id, user_email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ident(r.tables.Files))

	if _, err := r.pool.Exec(ctx, query, id, f.Blob.Key, userID, userEmail, f.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	return nil
}

func (r *repo) fileSelect(join string) string {
	return fmt.Sprintf(`
		SELECT f.id, f.user_id, f.user_email, f.created_at,
			b.blob_key, b.filename, b.content_type, b.size_bytes, b.etag, b.created_at
		FROM %s f
		%s JOIN %s b ON b.blob_key = f.blob_key
	`, ident(r.tables.Files), join, ident(r.tables.BlobInfos))
}

func (r *repo) ListFiles(ctx context.Context, owner *guestbook.User) ([]guestbook.File, error) {
	var rows pgx.Rows
	var err error

	if owner == nil {
		rows, err = r.pool.Query(ctx, r.fileSelect("INNER")+`WHERE f.user_id IS NULL ORDER BY f.created_at, f.id`)
	} else {
		rows, err = r.pool.Query(ctx, r.fileSelect("INNER")+`WHERE f.user_id = $1 ORDER BY f.created_at, f.id`, owner.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

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
func scanFile(row pgx.Row) (guestbook.File, error) {
	var f guestbook.File
	var id uuid.UUID
	var userID, userEmail *string
	var blobKey, filename, contentType, etag *string
	var size *int64
	var blobCreated *time.Time

	err := row.Scan(&id, &userID, &userEmail, &f.CreatedAt,
		&blobKey, &filename, &contentType, &size, &etag, &blobCreated)
	if err != nil {
		return guestbook.File{}, err
	}

	f.Key = guestbook.Key{Kind: guestbook.KindFile, Name: id.String()}
	f.User = scannedUser(userID, userEmail)
	f.CreatedAt = f.CreatedAt.UTC()

	if blobKey != nil {
		f.Blob = guestbook.BlobInfo{
			Key:         *blobKey,
			Filename:    deref(filename),
			ContentType: deref(contentType),
			ETag:        deref(etag),
		}
		if size != nil {
			f.Blob.Size = *size
		}
		if blobCreated != nil {
			f.Blob.CreatedAt = blobCreated.UTC()
		}
	}

	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *repo) GetRecord(ctx context.Context, key guestbook.Key) (guestbook.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	switch key.Kind {
	case guestbook.KindGreeting:
		id, _ := key.ID()
		query := fmt.Sprintf(`
			SELECT id, guestbook_name, author_id, author_email, content, created_at
			FROM %s
			WHERE id = $1 AND guestbook_name = $2
		`, ident(r.tables.Greetings))

		g, err := scanGreeting(r.pool.QueryRow(ctx, query, id, key.Guestbook()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("get record: %w", guestbook.ErrNotFound)
			}
			return nil, fmt.Errorf("get record: %w", err)
		}
		return g, nil

	case guestbook.KindFile:
		id, _ := key.ID()
		f, err := scanFile(r.pool.QueryRow(ctx, r.fileSelect("LEFT")+`WHERE f.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("get record: %w", guestbook.ErrNotFound)
			}
			return nil, fmt.Errorf("get record: %w", err)
		}
		return f, nil
	}

	return nil, fmt.Errorf("get record %s: %w", key, guestbook.ErrNotFound)
}

func (r *repo) DeleteRecord(ctx context.Context, key guestbook.Key) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	switch key.Kind {
	case guestbook.KindGreeting:
		id, _ := key.ID()
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND guestbook_name = $2`, ident(r.tables.Greetings))
		return r.execOne(ctx, "delete record", query, id, key.Guestbook())
	case guestbook.KindFile:
		id, _ := key.ID()
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ident(r.tables.Files))
		return r.execOne(ctx, "delete record", query, id)
	}

	return fmt.Errorf("delete record %s: %w", key, guestbook.ErrNotFound)
}

// execOne runs a statement that must affect a row, else ErrNotFound.
func (r *repo) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, guestbook.ErrNotFound)
	}

	return nil
}

func (r *repo) CreateBlobInfo(ctx context.Context, b guestbook.BlobInfo) error {
	if b.Key == "" {
		return fmt.Errorf("create blob info: %w: key cannot be empty", guestbook.ErrInvalidInput)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (blob_key, filename, content_type, size_bytes, etag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ident(r.tables.BlobInfos))

	if _, err := r.pool.Exec(ctx, query, b.Key, b.Filename, b.ContentType, b.Size, b.ETag, b.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("create blob info: %w", err)
	}

	return nil
}

const blobInfoColumns = `b.blob_key, b.filename, b.content_type, b.size_bytes, b.etag, b.created_at`

func scanBlobInfo(row pgx.Row) (guestbook.BlobInfo, error) {
	var b guestbook.BlobInfo
	if err := row.Scan(&b.Key, &b.Filename, &b.ContentType, &b.Size, &b.ETag, &b.CreatedAt); err != nil {
		return guestbook.BlobInfo{}, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func (r *repo) GetBlobInfo(ctx context.Context, key string) (guestbook.BlobInfo, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s b WHERE b.blob_key = $1`, blobInfoColumns, ident(r.tables.BlobInfos))

	b, err := scanBlobInfo(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return guestbook.BlobInfo{}, fmt.Errorf("get blob info: %w", guestbook.ErrNotFound)
		}
		return guestbook.BlobInfo{}, fmt.Errorf("get blob info: %w", err)
	}

	return b, nil
}

func (r *repo) DeleteBlobInfo(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE blob_key = $1`, ident(r.tables.BlobInfos))
	return r.execOne(ctx, "delete blob info", query, key)
}

func (r *repo) ListOrphanBlobInfos(ctx context.Context, olderThan time.Time, limit int) ([]guestbook.BlobInfo, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s b
		WHERE b.created_at < $1
			AND NOT EXISTS (SELECT 1 FROM %s f WHERE f.blob_key = b.blob_key)
		ORDER BY b.created_at, b.blob_key
		LIMIT $2
	`, blobInfoColumns, ident(r.tables.BlobInfos), ident(r.tables.Files))

	rows, err := r.pool.Query(ctx, query, olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list orphan blob infos: %w", err)
	}
	defer rows.Close()

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
	query := fmt.Sprintf(`
		INSERT INTO %s (id, callback_path, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, ident(r.tables.UploadSessions))

	if _, err := r.pool.Exec(ctx, query, s.ID, s.CallbackPath, s.CreatedAt.UTC(), s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("create upload session: %w", err)
	}

	return nil
}

func (r *repo) ConsumeUploadSession(ctx context.Context, id uuid.UUID, now time.Time) (guestbook.UploadSession, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET used_at = $1
		WHERE id = $2 AND used_at IS NULL AND expires_at > $1
		RETURNING id, callback_path, created_at, expires_at, used_at
	`, ident(r.tables.UploadSessions))

	var s guestbook.UploadSession
	var usedAt time.Time

	err := r.pool.QueryRow(ctx, query, now.UTC(), id).Scan(
		&s.ID, &s.CallbackPath, &s.CreatedAt, &s.ExpiresAt, &usedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return guestbook.UploadSession{}, fmt.Errorf("consume upload session: %w", guestbook.ErrNotFound)
		}
		return guestbook.UploadSession{}, fmt.Errorf("consume upload session: %w", err)
	}

	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	usedAt = usedAt.UTC()
	s.UsedAt = &usedAt

	return s, nil
}

func (r *repo) DeleteStaleUploadSessions(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE used_at IS NOT NULL OR expires_at <= $1`, ident(r.tables.UploadSessions))

	tag, err := r.pool.Exec(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete stale upload sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}
