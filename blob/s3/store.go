// Package s3 provides a blob.Store backed by AWS S3 or any S3-compatible
// object storage (MinIO, Ceph RGW).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/poiesic/docreview/blob"
)

const (
	getTimeout = 2 * time.Minute
	putTimeout = 2 * time.Minute
	delTimeout = 30 * time.Second
)

// Config holds the S3 connection settings.
type Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint string
}

// Store implements blob.Store against an S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

var _ blob.Store = (*Store)(nil)

// NewStore creates an S3-backed blob store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3: credentials not set")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3: region not set")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: slog.Default().With("component", "s3-blob-store"),
	}, nil
}

// Get fetches the full contents stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctxGet, cancel := context.WithTimeout(ctx, getTimeout)
	defer cancel()

	resp, err := s.client.GetObject(ctxGet, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body: %w", err)
	}

	return body, nil
}

// Put stores data under key, overwriting any previous contents.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	uploader := manager.NewUploader(s.client)

	ctxPut, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	_, err := uploader.Upload(ctxPut, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}

	s.logger.Debug("uploaded blob", "key", key, "bytes", len(data))
	return nil
}

// Delete removes the contents stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctxDel, cancel := context.WithTimeout(ctx, delTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}
