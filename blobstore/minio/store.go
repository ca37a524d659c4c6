// Package minio stores blob bytes in a MinIO (or other S3 compatible)
// bucket with minio-go.
package minio

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: md5 is the blob checksum
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/guestbook"
)

// Client is the part of *minio.Client the store uses.
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Config holds the endpoint and credentials.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Store implements guestbook.BlobStorage on MinIO.
type Store struct {
	client Client
	bucket string
}

const bucketCheckTimeout = 5 * time.Second

// New connects to MinIO and creates the bucket when it is missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return NewWithClient(ctx, client, cfg.Bucket)
}

// NewWithClient wraps an existing client and ensures the bucket exists.
func NewWithClient(ctx context.Context, client Client, bucket string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// Get stats the object, then opens it. *minio.Object can seek.
func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, guestbook.ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// Write streams content to the bucket. A size of -1 makes minio-go use a
// multipart upload, so the etag is computed locally rather than taken from
// the server.
func (s *Store) Write(ctx context.Context, path, contentType string, content io.Reader, size int64) (guestbook.SaveResult, error) {
	h := md5.New() //nolint:gosec // G401
	info, err := s.client.PutObject(ctx, s.bucket, path, io.TeeReader(content, h), size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("put object: %w", err)
	}

	return guestbook.SaveResult{BytesWritten: info.Size, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes the object, reporting guestbook.ErrNotFound for a missing
// one.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return guestbook.ErrNotFound
		}
		return fmt.Errorf("stat object: %w", err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
