package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultBucket is the bucket used when S3Config.Bucket is empty.
const DefaultBucket = "recordings"

// Compile-time checks that S3Storage implements the storage ports.
var (
	_ Adapter       = (*S3Storage)(nil)
	_ AudioStreamer = (*S3Storage)(nil)
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible endpoint, addressed path-style
	AccessKeyID     string
	SecretAccessKey string
}

// S3Storage implements Adapter on top of an S3-compatible object store.
// Uploads go through the multipart upload manager so that long recordings
// and streamed bodies of unknown length are handled transparently.
type S3Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	region   string
}

// NewS3Storage creates a new S3Storage instance.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
	}, nil
}

// Bucket returns the destination bucket name.
func (s *S3Storage) Bucket() string {
	return s.bucket
}

// StoreAudio uploads a recording and returns its object key.
func (s *S3Storage) StoreAudio(ctx context.Context, data []byte, timestamp string) (string, error) {
	return s.upload(ctx, Key(KindAudio, timestamp), KindAudio.ContentType(), bytes.NewReader(data))
}

// StoreImage uploads a screenshot or webcam frame and returns its object key.
func (s *S3Storage) StoreImage(ctx context.Context, data []byte, kind Kind, timestamp string) (string, error) {
	if !kind.IsImage() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.upload(ctx, Key(kind, timestamp), kind.ContentType(), bytes.NewReader(data))
}

// StreamAudio uploads a recording from r until EOF and returns its object key.
func (s *S3Storage) StreamAudio(ctx context.Context, r io.Reader, timestamp string) (string, error) {
	return s.upload(ctx, Key(KindAudio, timestamp), KindAudio.ContentType(), r)
}

func (s *S3Storage) upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}
	return key, nil
}
