// Package storage resolves stored-file references for action payloads and
// backs the upload endpoint. References have the form "bucket-object keys"
// produced by Upload; display names travel in object metadata.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const displayNameMeta = "X-Amz-Meta-Display-Name"

// FileStore resolves a stored file reference to its content and display
// name. The action pipeline depends on this interface only, so tests swap
// in an in-memory store.
type FileStore interface {
	Resolve(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

// MinioStore object storage backed file store
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object storage endpoint and ensures the
// bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// Upload stores content and returns the reference to put into a file field
// value.
func (s *MinioStore) Upload(ctx context.Context, fileName string, content io.Reader, size int64) (string, error) {
	key := fmt.Sprintf("demand-files/%s%s", uuid.New().String(), path.Ext(fileName))
	_, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		UserMetadata: map[string]string{"Display-Name": fileName},
	})
	if err != nil {
		return "", fmt.Errorf("store file %s: %w", fileName, err)
	}
	return key, nil
}

// Resolve opens a stored file for reading and recovers its display name.
func (s *MinioStore) Resolve(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("stat stored file %s: %w", ref, err)
	}
	name := stat.Metadata.Get(displayNameMeta)
	if name == "" {
		name = path.Base(ref)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("open stored file %s: %w", ref, err)
	}
	return obj, name, nil
}
