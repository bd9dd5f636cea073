package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds explicit construction parameters for an S3-compatible
// backend (AWS S3 or MinIO). Credentials come from the default chain.
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	PathStyle bool
}

// S3Backend keeps the table as one object. PutObject replaces objects
// atomically, so readers never see a partial table.
type S3Backend struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Backend creates a backend from cfg using the default AWS config chain.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3BackendWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewS3BackendWithClient wraps an existing client.
func NewS3BackendWithClient(client *s3.Client, bucket, key string) *S3Backend {
	if key == "" {
		key = "hourly_foot_traffic.parquet"
	}
	return &S3Backend{client: client, bucket: bucket, key: key}
}

func (b *S3Backend) Describe() string { return "s3://" + b.bucket + "/" + b.key }

func (b *S3Backend) Read(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &b.bucket, Key: &b.key})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	defer out.Body.Close() //nolint:errcheck // read-only body
	return io.ReadAll(out.Body)
}

func (b *S3Backend) Write(ctx context.Context, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &b.bucket,
		Key:           &b.key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/vnd.apache.parquet"),
	})
	return err
}

// Lock is a no-op: S3 offers no exclusive lock primitive, so a single writer
// per object is a deployment constraint. The Store mutex still serializes
// writers within the process.
func (b *S3Backend) Lock(_ context.Context) (func() error, error) {
	return func() error { return nil }, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
