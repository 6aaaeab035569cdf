package substrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"feed-go/internal/feed"
)

// S3API is the subset of the S3 client used by S3Substrate. *s3.Client
// satisfies it; tests substitute a fake.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds construction parameters for NewS3Substrate.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string // default us-east-1
	Endpoint        string // optional; enables path-style addressing (MinIO)
	AccessKeyID     string // optional; falls back to the default credential chain
	SecretAccessKey string
	Timeout         time.Duration
}

// S3Substrate stores each key as one object under bucket/prefix.
type S3Substrate struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	timeout  time.Duration
}

var _ feed.Substrate = (*S3Substrate)(nil)

// NewS3Substrate builds an S3 client from cfg and the ambient AWS configuration.
func NewS3Substrate(ctx context.Context, cfg S3Config) (*S3Substrate, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 substrate requires a bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SubstrateWithClient(client, cfg.Bucket, cfg.Prefix, cfg.Timeout), nil
}

// NewS3SubstrateWithClient wraps an existing client.
func NewS3SubstrateWithClient(client S3API, bucket, prefix string, timeout time.Duration) *S3Substrate {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &S3Substrate{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		timeout:  timeout,
	}
}

func (s *S3Substrate) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return string(data), true, nil
}

func (s *S3Substrate) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		if isQuota(err) {
			return fmt.Errorf("putting %s: %w: %w", key, feed.ErrQuotaExceeded, err)
		}
		return fmt.Errorf("putting %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *S3Substrate) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *S3Substrate) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func isQuota(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "EntityTooLarge", "QuotaExceeded", "XMinioStorageFull":
			return true
		}
	}
	return false
}
