package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"prism/internal/models"
	"prism/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// multipartThreshold switches uploads to the managed multipart uploader
	multipartThreshold = 10 * 1024 * 1024
	// maxAttempts matches the read side retry budget
	maxAttempts = 5
	// derivativeCacheControl marks derivatives as immutable for one year
	derivativeCacheControl = "public, max-age=31536000, immutable"
)

// bucketClient bundles the clients built for one set of bucket credentials
type bucketClient struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// S3Store writes derivatives and reads private documents using per-bucket
// credentials. Clients are built lazily and reused.
type S3Store struct {
	mu      sync.Mutex
	clients map[models.Bucket]*bucketClient
}

// NewS3Store creates an empty client cache
func NewS3Store() *S3Store {
	return &S3Store{
		clients: make(map[models.Bucket]*bucketClient),
	}
}

// Put uploads a derivative as a public-read object
func (s *S3Store) Put(ctx context.Context, bucket models.Bucket, key string, data []byte, contentType string) error {
	size := int64(len(data))
	logger.DebugWithContext(ctx, "Uploading derivative to S3",
		zap.String("bucket", bucket.Name),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.String("content_type", contentType))

	bc, err := s.clientFor(ctx, bucket)
	if err != nil {
		return models.StorageError{Operation: "put", Backend: "s3", Reason: err.Error()}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket.Name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		CacheControl:  aws.String(derivativeCacheControl),
		ACL:           types.ObjectCannedACLPublicRead,
	}

	// Use uploader for large files (handles multipart automatically)
	if size > multipartThreshold {
		_, err = bc.uploader.Upload(ctx, input)
	} else {
		_, err = bc.client.PutObject(ctx, input)
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to upload derivative to S3",
			zap.String("bucket", bucket.Name),
			zap.String("key", key),
			zap.Int64("size", size),
			zap.Error(err))
		return models.StorageError{Operation: "put", Backend: "s3", Reason: err.Error()}
	}

	logger.InfoWithContext(ctx, "Derivative uploaded",
		zap.String("bucket", bucket.Name),
		zap.String("key", key),
		zap.Int64("size", size))
	return nil
}

// Get downloads a private object with the bucket's credentials
func (s *S3Store) Get(ctx context.Context, bucket models.Bucket, key string) ([]byte, error) {
	bc, err := s.clientFor(ctx, bucket)
	if err != nil {
		return nil, err
	}

	result, err := bc.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket.Name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFoundError{Resource: "object", ID: bucket.Name + "/" + key}
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

// clientFor returns the cached client for a bucket, building it on first use
func (s *S3Store) clientFor(ctx context.Context, bucket models.Bucket) (*bucketClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bc, ok := s.clients[bucket]; ok {
		return bc, nil
	}

	awsConfig, err := createAWSConfig(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if bucket.Endpoint != "" {
			o.BaseEndpoint = aws.String(bucket.Endpoint)
			o.UsePathStyle = true // Required for MinIO and custom endpoints
		}
		o.RetryMaxAttempts = maxAttempts
	})

	bc := &bucketClient{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = multipartThreshold
			u.Concurrency = 3
		}),
	}
	s.clients[bucket] = bc

	logger.Info("S3 client initialized",
		zap.String("bucket", bucket.Name),
		zap.String("region", bucket.Region),
		zap.String("endpoint", bucket.Endpoint))
	return bc, nil
}

// createAWSConfig uses the bucket's static keys, or the default chain when
// the bucket carries none
func createAWSConfig(ctx context.Context, bucket models.Bucket) (aws.Config, error) {
	region := bucket.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if bucket.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(bucket.AccessKeyID, bucket.SecretAccessKey, ""),
		))
	}

	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// isNotFoundError checks if the error is a "not found" error
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "StatusCode: 404")
}
