package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the part of the S3 client the archiver uses.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archiver keeps uploaded files in one bucket.
type S3Archiver struct {
	client ObjectStore
	bucket string
}

func NewS3Archiver(client ObjectStore, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// ConnectS3Archiver builds an archiver from the default AWS configuration.
func ConnectS3Archiver(ctx context.Context, bucket string) (*S3Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewS3Archiver(s3.NewFromConfig(cfg), bucket), nil
}

// Archive stores body under key and returns its s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object %s in bucket %s: %w", key, a.bucket, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// ReadFile copies an archived object to out.
func (a *S3Archiver) ReadFile(ctx context.Context, key string, out io.Writer) error {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s from bucket %s: %w", key, a.bucket, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to copy object %s from bucket %s: %w", key, a.bucket, err)
	}
	return nil
}
