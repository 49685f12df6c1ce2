package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// minioPutAPI is the part of the MinIO client the store needs.
type minioPutAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

/**************************************************************************************************
** MinioStore writes objects to a MinIO (or any S3-compatible) bucket. Progress is reported
** through the client's Progress reader, which sees the bytes as they are sent.
**************************************************************************************************/
type MinioStore struct {
	client  minioPutAPI
	bucket  string
	baseURL string
}

/**************************************************************************************************
** NewMinioStore connects to the endpoint and makes sure the bucket exists.
**
** @param ctx - Context for the bucket check
** @param endpoint - host:port of the MinIO server
** @param accessKey - Access key
** @param secretKey - Secret key
** @param bucket - Target bucket, created when missing
** @param useSSL - Whether to use HTTPS
** @param logger - Logger instance for output
** @return *MinioStore - Configured store
** @return error - Connection or bucket creation failure
**************************************************************************************************/
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *logrus.Logger) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("error creating bucket %s: %w", bucket, err)
		}
		logger.Infof("🪣 Created bucket %s", bucket)
	}

	return newMinioStore(client, bucket, client.EndpointURL()), nil
}

func newMinioStore(client minioPutAPI, bucket string, endpoint *url.URL) *MinioStore {
	return &MinioStore{
		client:  client,
		bucket:  bucket,
		baseURL: endpoint.JoinPath(bucket).String(),
	}
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if progress != nil {
		opts.Progress = &progressCounter{progress: progress}
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return "", errPut("minio://"+s.bucket, key, err)
	}
	return s.baseURL + "/" + key, nil
}

// progressCounter is handed to minio as its Progress reader: minio reads from it the bytes it sent.
type progressCounter struct {
	written  int64
	progress ProgressFunc
}

func (p *progressCounter) Read(buf []byte) (int, error) {
	p.written += int64(len(buf))
	p.progress(p.written)
	return len(buf), nil
}
