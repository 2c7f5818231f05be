package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/pkg/config"
)

// AdapterS3 names the S3 blob adapter.
const AdapterS3 = "s3"

// s3API is the subset of the S3 client the adapter calls.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores blobs as objects in an S3 (or S3 compatible) bucket.
type S3Storage struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Client builds an S3 client from configuration. Static credentials are
// used when provided, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Storage wraps an S3 client for the given bucket and key prefix.
func NewS3Storage(client s3API, bucket, prefix string) (*S3Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &S3Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Name implements Adapter.
func (s *S3Storage) Name() string {
	return AdapterS3
}

// Write streams the reader into a new object. The uploader switches to
// multipart uploads for large or unseekable bodies.
func (s *S3Storage) Write(ctx context.Context, r io.Reader) (models.BlobRef, int64, error) {
	id := uuid.NewString()
	counter := &countingReader{r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   counter,
	})
	if err != nil {
		return models.BlobRef{}, 0, fmt.Errorf("upload blob to S3: %w", err)
	}
	return models.BlobRef{Adapter: AdapterS3, ID: id}, counter.n, nil
}

// Open streams an object.
func (s *S3Storage) Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref.ID)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("open blob %s: %w", ref.ID, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("get blob from S3: %w", err)
	}
	return out.Body, nil
}

// Delete removes an object. Deleting a missing key is not an error in S3.
func (s *S3Storage) Delete(ctx context.Context, ref models.BlobRef) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref.ID)),
	})
	if err != nil {
		return fmt.Errorf("delete blob from S3: %w", err)
	}
	return nil
}

func (s *S3Storage) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + id
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
