package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
)

const sseHeader = "X-Amz-Server-Side-Encryption"

// minioAPI is the subset of *minio.Client used by MinioStore.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// MinioConfig holds connection settings for a MinIO server.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore stores objects in MinIO with SSE-S3 and reads the encryption
// state back from object metadata.
type MinioStore struct {
	api    minioAPI
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, c MinioConfig) (*MinioStore, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.MakeBucket(ctx, c.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, xerr := client.BucketExists(ctx, c.Bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}

	return &MinioStore{api: client, bucket: c.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := NewStorageKey()
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:          contentType,
		ServerSideEncryption: encrypt.NewSSE(),
	})
	if err != nil {
		return "", fmt.Errorf("minio put: %w", err)
	}
	return key, nil
}

func (s *MinioStore) Get(ctx context.Context, handle string) ([]byte, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap("get", handle, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap("get", handle, err)
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, handle string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete: %w", err)
	}
	return nil
}

func (s *MinioStore) EncryptionStatus(ctx context.Context, handle string) (Status, error) {
	info, err := s.api.StatObject(ctx, s.bucket, handle, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Status{State: EncryptionFailed, Detail: "object missing"}, nil
		}
		return Status{}, fmt.Errorf("minio stat: %w", err)
	}

	if sse := info.Metadata.Get(sseHeader); sse != "" {
		return Status{State: EncryptionCompleted, Progress: 100, Detail: sse}, nil
	}
	return Status{State: EncryptionPending}, nil
}

func (s *MinioStore) wrap(op, handle string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("minio %s %s: %w", op, handle, common.ErrNotFound)
	}
	return fmt.Errorf("minio %s: %w", op, err)
}
