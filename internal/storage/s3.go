package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// StorageType defines the archive backend
type StorageType string

const (
	StorageTypeMinIO        StorageType = "minio"
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
)

// S3Storage implements ObjectStorage for S3-compatible services
type S3Storage struct {
	client    *s3.Client
	bucket    string
	prefix    string
	storeType StorageType
}

// NewS3Storage creates a new S3-compatible storage client
func NewS3Storage(cfg *Config) (*S3Storage, error) {
	region := cfg.Region
	if region == "" {
		if cfg.Type == StorageTypeR2 {
			region = "auto"
		} else {
			region = "us-east-1"
		}
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			scheme := "http"
			if cfg.UseSSL {
				scheme = "https"
			}
			o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, normalizeEndpoint(cfg.Endpoint)))
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		storeType: cfg.Type,
	}, nil
}

// normalizeEndpoint removes protocol prefix and path from endpoint
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	// R2 buckets can only be created from the dashboard
	if s.storeType == StorageTypeR2 {
		return fmt.Errorf("bucket %s does not exist, please create it in R2 dashboard", s.bucket)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload uploads an object to storage
func (s *S3Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(prefixed(s.prefix, key)),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Download downloads an object from storage
func (s *S3Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(prefixed(s.prefix, key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return result.Body, nil
}

// Delete deletes an object from storage
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(prefixed(s.prefix, key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks if an object exists in storage
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(prefixed(s.prefix, key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
