// Package storagetest provides an in-memory object bucket for tests of code
// built on storage.DocumentStore.
package storagetest

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/minio/minio-go/v7"
)

type MemBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// PutErr, when set, fails every PutObject call.
	PutErr error
}

func NewMemBucket() *MemBucket {
	return &MemBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *MemBucket) BucketExists(context.Context, string) (bool, error) {
	return true, nil
}

func (m *MemBucket) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	return nil
}

func (m *MemBucket) PutObject(_ context.Context, _, object string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.PutErr != nil {
		return minio.UploadInfo{}, m.PutErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object] = b
	m.types[object] = opts.ContentType
	return minio.UploadInfo{Key: object, ETag: "etag-" + object, Size: int64(len(b))}, nil
}

func (m *MemBucket) StatObject(_ context.Context, _, object string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[object]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	}
	return minio.ObjectInfo{Key: object, Size: int64(len(b)), ContentType: m.types[object]}, nil
}

func (m *MemBucket) RemoveObject(_ context.Context, _, object string, _ minio.RemoveObjectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, object)
	delete(m.types, object)
	return nil
}

// Keys returns the stored object names, sorted.
func (m *MemBucket) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns the content stored under key.
func (m *MemBucket) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}
