// Package s3 stores unit sectors as fixed-size chunk objects in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/storage/backend"
)

// Config holds configuration for the S3 backend.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to chunk keys, e.g. "units/0/".
	KeyPrefix string

	// AccessKeyID and SecretAccessKey set static credentials. When empty the
	// SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	SectorSize  uint32
	SectorCount uint32
	ChunkSize   int
	ReadOnly    bool
}

// chunkStore implements backend.ChunkStore on S3 objects.
type chunkStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	chunkSize int
}

// New creates the backend with an existing client.
func New(client *s3.Client, cfg Config, m metrics.StorageMetrics) (*backend.Chunked, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 backend: bucket is required")
	}
	if cfg.SectorSize == 0 {
		cfg.SectorSize = backend.DefaultSectorSize
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = backend.DefaultChunkSize
	}

	store := &chunkStore{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		chunkSize: cfg.ChunkSize,
	}
	return backend.NewChunked(store, backend.ChunkedConfig{
		Name:      "s3",
		Geometry:  backend.Geometry{SectorSize: cfg.SectorSize, SectorCount: cfg.SectorCount},
		ChunkSize: cfg.ChunkSize,
		ReadOnly:  cfg.ReadOnly,
		Metrics:   m,
	})
}

// NewFromConfig creates the S3 client from cfg and then the backend.
func NewFromConfig(ctx context.Context, cfg Config, m metrics.StorageMetrics) (*backend.Chunked, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return New(client, cfg, m)
}

// key returns the object key of chunk idx. Indices are zero-padded so a
// listing returns chunks in order.
func (s *chunkStore) key(idx uint64) string {
	return fmt.Sprintf("%schunk-%012d", s.keyPrefix, idx)
}

// ReadChunk fetches the requested byte range of a chunk. Missing objects
// read as zeroes.
func (s *chunkStore) ReadChunk(ctx context.Context, idx uint64, off int, p []byte) error {
	key := s.key(idx)
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "get_object", telemetry.Bucket(s.bucket), telemetry.StorageKey(key))
	defer span.End()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+len(p)-1)),
	})
	if err != nil {
		if isNotFoundError(err) {
			clear(p)
			return nil
		}
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("s3 get object range: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.ReadFull(resp.Body, p)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read s3 object body: %w", err)
	}
	// Objects written by an older, smaller chunk size are zero-extended.
	clear(p[n:])
	return nil
}

// WriteChunk uploads a whole chunk.
func (s *chunkStore) WriteChunk(ctx context.Context, idx uint64, data []byte) error {
	key := s.key(idx)
	ctx, span := telemetry.StartStorageSpan(ctx, "s3", "put_object", telemetry.Bucket(s.bucket), telemetry.StorageKey(key))
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// HealthCheck performs a HeadBucket call to check connectivity and permissions.
func (s *chunkStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

func (s *chunkStore) Close() error { return nil }

// isNotFoundError reports whether err means the chunk object does not
// exist. A range request past the end of a shorter object is treated the
// same way.
func isNotFoundError(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "StatusCode: 404") ||
		strings.Contains(msg, "InvalidRange")
}

var _ backend.ChunkStore = (*chunkStore)(nil)
