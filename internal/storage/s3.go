package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/xid"
)

// S3Config holds the settings for an S3-compatible asset store.
// Endpoint is optional; set it to target MinIO or another non-AWS endpoint.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store is an ObjectStore backed by an S3-compatible bucket.
//
// References are object keys under "uploads/". The bucket is expected to be
// readable by whatever serves the images (public bucket policy or a CDN);
// this store only writes and deletes.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds the S3 client and returns a store for cfg.Bucket.
//
// Static credentials are used when provided; otherwise the default AWS
// credential chain (env vars, instance profile) applies.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO serves buckets under the path, not a subdomain.
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads the content under a generated key and returns the key.
func (s *S3Store) Save(ctx context.Context, r io.Reader, filename string) (string, error) {
	key := refPrefix + xid.New().String() + sanitizeExt(filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("storage: putting object %s: %w", key, err)
	}

	return key, nil
}

// Remove deletes the object behind a reference. S3 DeleteObject succeeds for
// missing keys, which matches the idempotency Remove promises.
func (s *S3Store) Remove(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("storage: deleting object %s: %w", ref, err)
	}
	return nil
}
