package artifacts

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/routewrap/internal/errors"
)

// PutObjectAPI is the subset of *s3.Client used by S3Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store stores artifacts in AWS S3.
//
// Example usage:
//
//	client, _ := artifacts.NewS3Client(ctx, "eu-west-1")
//	store := artifacts.NewS3Store(client, "my-bucket")
type S3Store struct {
	client PutObjectAPI
	bucket string
}

// NewS3Store creates a new S3 artifact store.
func NewS3Store(client PutObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// NewS3Client builds an S3 client from the SDK's default credential chain.
// An empty region keeps the chain's region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("E240").WithDetail("loading AWS configuration").Wrap(err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Put uploads body to key.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.New("E240").WithDetail("s3://" + s.bucket + "/" + key).Wrap(err)
	}
	return nil
}
