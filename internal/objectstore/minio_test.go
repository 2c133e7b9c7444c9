package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
)

type fakeMinio struct {
	objects map[string][]byte
	sse     map[string]bool
	statErr error
}

func newFakeMinio() *fakeMinio {
	return &fakeMinio{objects: map[string][]byte{}, sse: map[string]bool{}}
}

func (f *fakeMinio) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[name] = b
	f.sse[name] = opts.ServerSideEncryption != nil
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func (f *fakeMinio) GetObject(ctx context.Context, bucket, name string, opts minio.GetObjectOptions) (*minio.Object, error) {
	return nil, minio.ErrorResponse{Code: "NoSuchKey"}
}

func (f *fakeMinio) RemoveObject(ctx context.Context, bucket, name string, opts minio.RemoveObjectOptions) error {
	delete(f.objects, name)
	return nil
}

func (f *fakeMinio) StatObject(ctx context.Context, bucket, name string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if f.statErr != nil {
		return minio.ObjectInfo{}, f.statErr
	}
	if _, ok := f.objects[name]; !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
	}
	md := http.Header{}
	if f.sse[name] {
		md.Set(sseHeader, "AES256")
	}
	return minio.ObjectInfo{Key: name, Metadata: md}, nil
}

func TestMinioStore_PutStatDelete(t *testing.T) {
	api := newFakeMinio()
	s := &MinioStore{api: api, bucket: "docs"}
	ctx := context.Background()

	h, err := s.Put(ctx, []byte("trust"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("trust"), api.objects[h])
	assert.True(t, api.sse[h])

	st, err := s.EncryptionStatus(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, EncryptionCompleted, st.State)

	require.NoError(t, s.Delete(ctx, h))
	st, err = s.EncryptionStatus(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, EncryptionFailed, st.State)
}

func TestMinioStore_PendingWithoutSSE(t *testing.T) {
	api := newFakeMinio()
	api.objects["k"] = []byte("x")
	s := &MinioStore{api: api, bucket: "docs"}

	st, err := s.EncryptionStatus(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, EncryptionPending, st.State)
}

func TestMinioStore_GetNotFound(t *testing.T) {
	s := &MinioStore{api: newFakeMinio(), bucket: "docs"}

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMinioStore_StatError(t *testing.T) {
	api := newFakeMinio()
	api.statErr = errors.New("down")
	s := &MinioStore{api: api, bucket: "docs"}

	_, err := s.EncryptionStatus(context.Background(), "k")
	assert.ErrorContains(t, err, "minio stat")
}
