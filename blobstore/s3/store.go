// Package s3 stores blob bytes in an S3 bucket with aws-sdk-go-v2.
package s3

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: md5 is the blob checksum
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sagarc03/guestbook"
)

// Client is the part of *s3.Client the store uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the bucket and credentials. Empty keys fall back to the
// default AWS credential chain.
type Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// Store implements guestbook.BlobStorage on S3.
type Store struct {
	client Client
	bucket string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(client, cfg.Bucket), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Get streams the object body. The reader does not seek.
func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, guestbook.ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

// Write spools content to a temp file to learn its length and MD5, then
// uploads it in one PutObject call with Content-MD5 set.
func (s *Store) Write(ctx context.Context, path, contentType string, content io.Reader, size int64) (guestbook.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return guestbook.SaveResult{}, err
	}

	tmp, err := os.CreateTemp("", "guestbook-s3-*")
	if err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			slog.Warn("failed to remove spool file", "err", rmErr)
		}
	}()

	h := md5.New() //nolint:gosec // G401
	written, err := io.Copy(io.MultiWriter(h, tmp), content)
	if err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("spool content: %w", err)
	}
	if size >= 0 && written != size {
		return guestbook.SaveResult{}, fmt.Errorf("short write: expected %d bytes, got %d", size, written)
	}
	if _, err = tmp.Seek(0, io.SeekStart); err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("rewind spool file: %w", err)
	}

	sum := h.Sum(nil)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          tmp,
		ContentLength: aws.Int64(written),
		ContentType:   aws.String(contentType),
		ContentMD5:    aws.String(base64.StdEncoding.EncodeToString(sum)),
	})
	if err != nil {
		return guestbook.SaveResult{}, fmt.Errorf("put object: %w", err)
	}

	return guestbook.SaveResult{BytesWritten: written, Etag: hex.EncodeToString(sum)}, nil
}

// Delete removes the object. S3 deletes are silent for missing keys, so a
// HeadObject call first reports guestbook.ErrNotFound.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return guestbook.ErrNotFound
		}
		return fmt.Errorf("head object: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
