// ABOUTME: Optional backup sink pushing encoded snapshots to S3-compatible storage.
// ABOUTME: Works against AWS or MinIO-style endpoints with path-style addressing.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Config holds the connection settings of an S3Sink.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// objectPutter is the part of *s3.Client the sink uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads snapshots to a bucket.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Sink builds a sink from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3Sink(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Sink, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3: bucket is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Debug("s3 sink ready", zap.String("bucket", cfg.Bucket), zap.String("endpoint", cfg.Endpoint))
	return newS3Sink(client, cfg, logger), nil
}

func newS3Sink(client objectPutter, cfg S3Config, logger *zap.Logger) *S3Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}
}

// Key returns the full object key for name, including the configured prefix.
func (s *S3Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Upload stores data under key and returns the full object key.
func (s *S3Sink) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	full := s.Key(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		s.logger.Error("snapshot upload failed", zap.String("key", full), zap.Error(err))
		return "", fmt.Errorf("s3: put %s: %w", full, err)
	}
	s.logger.Info("snapshot uploaded", zap.String("bucket", s.bucket), zap.String("key", full), zap.Int("bytes", len(data)))
	return full, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

// DefaultKey names a snapshot object after its export time.
func DefaultKey(exportedAt time.Time, ext string) string {
	return "forma-" + exportedAt.UTC().Format("20060102T150405Z") + "." + ext
}
