package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3PutAPI is the part of the S3 client the store needs.
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

/**************************************************************************************************
** S3Store writes objects to an S3 bucket. URLs use publicBaseURL when set (CDN or website
** endpoint), otherwise the virtual-hosted bucket URL.
**************************************************************************************************/
type S3Store struct {
	client        s3PutAPI
	bucket        string
	region        string
	publicBaseURL string
}

/**************************************************************************************************
** NewS3Store loads the default AWS configuration (env, shared config, instance role) and
** creates a store for the bucket.
**
** @param ctx - Context for credential loading
** @param bucket - Target bucket
** @param region - AWS region, empty to use the configured default
** @param publicBaseURL - Optional base URL for returned object URLs
** @return *S3Store - Configured store
** @return error - When the AWS configuration cannot be loaded
**************************************************************************************************/
func NewS3Store(ctx context.Context, bucket, region, publicBaseURL string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return newS3Store(s3.NewFromConfig(cfg), bucket, cfg.Region, publicBaseURL), nil
}

func newS3Store(client s3PutAPI, bucket, region, publicBaseURL string) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        newProgressReader(r, progress),
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", errPut("s3://"+s.bucket, key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Store) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	if s.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
