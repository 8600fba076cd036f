// internal/common/storage/minio.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
)

const (
	maxBaseNameLength = 100
	maxNameAttempts   = 100
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ObjectAPI is the part of *minio.Client the document store needs.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// StoredObject describes one document written to the bucket.
type StoredObject struct {
	Key              string
	OriginalFilename string
	StoredFilename   string
	ContentType      string
	Size             int64
	ETag             string
}

// DocumentStore keeps demande attachments in a MinIO bucket.
type DocumentStore struct {
	api      ObjectAPI
	bucket   string
	maxBytes int64
	allowed  map[string]bool
	now      func() time.Time
}

func NewDocumentStore(api ObjectAPI, bucket string, maxBytes int64, allowedExtensions []string) *DocumentStore {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &DocumentStore{
		api:      api,
		bucket:   bucket,
		maxBytes: maxBytes,
		allowed:  allowed,
		now:      time.Now,
	}
}

// NewMinio connects to the configured endpoint. The bucket is not touched
// until EnsureBucket is called.
func NewMinio(cfg config.MinioConfig, forms config.FormsConfig) (*DocumentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewDocumentStore(client, cfg.Bucket, forms.MaxUploadBytes, forms.AllowedExtensions), nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *DocumentStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Ping is used by the /ready check.
func (s *DocumentStore) Ping(ctx context.Context) error {
	_, err := s.api.BucketExists(ctx, s.bucket)
	return err
}

// Check rejects a file by extension or size before anything is uploaded.
func (s *DocumentStore) Check(filename string, size int64) error {
	if size <= 0 {
		return apperrors.NewDocumentRejectedError(filename, "file is empty")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return apperrors.NewDocumentRejectedError(filename,
			fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(baseName(filename)), "."))
	if len(s.allowed) > 0 && !s.allowed[ext] {
		return apperrors.NewDocumentRejectedError(filename,
			fmt.Sprintf("extension %q is not allowed", ext))
	}
	return nil
}

// Upload is one pending folder; all files of a single submission go in it.
type Upload struct {
	store  *DocumentStore
	prefix string
}

// NewUpload opens a folder YYYY/MM/agent_<id>/pending_<uuid8>.
func (s *DocumentStore) NewUpload(agentID int64) *Upload {
	agent := "agent_unknown"
	if agentID > 0 {
		agent = fmt.Sprintf("agent_%d", agentID)
	}
	pending := "pending_" + uuid.NewString()[:8]
	return &Upload{
		store:  s,
		prefix: path.Join(s.now().Format("2006/01"), agent, pending),
	}
}

func (u *Upload) Prefix() string {
	return u.prefix
}

// Put validates and writes content. A name already taken in the folder gets
// a _1, _2 ... suffix before the extension.
func (u *Upload) Put(ctx context.Context, filename, contentType string, content []byte) (*StoredObject, error) {
	s := u.store
	if err := s.Check(filename, int64(len(content))); err != nil {
		return nil, err
	}

	safe := SanitizeFilename(filename)
	key, stored, err := u.freeKey(ctx, safe)
	if err != nil {
		return nil, err
	}

	info, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, apperrors.NewDocumentStorageFailedError(err)
	}
	metrics.DocumentsStored.Inc()

	return &StoredObject{
		Key:              key,
		OriginalFilename: filename,
		StoredFilename:   stored,
		ContentType:      contentType,
		Size:             int64(len(content)),
		ETag:             info.ETag,
	}, nil
}

func (u *Upload) freeKey(ctx context.Context, name string) (string, string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		key := path.Join(u.prefix, candidate)
		_, err := u.store.api.StatObject(ctx, u.store.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			if isNotFound(err) {
				return key, candidate, nil
			}
			return "", "", apperrors.NewDocumentStorageFailedError(err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	return "", "", apperrors.NewDocumentStorageFailedError(
		fmt.Errorf("no free name for %s after %d attempts", name, maxNameAttempts))
}

// Remove deletes a stored object. Used to roll back uploads of a submission
// that could not be persisted.
func (s *DocumentStore) Remove(ctx context.Context, key string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.NewDocumentStorageFailedError(err)
	}
	return nil
}

// SanitizeFilename drops any directory part and replaces characters outside
// [a-zA-Z0-9._-] with underscores. The stem is capped at 100 characters.
func SanitizeFilename(name string) string {
	name = baseName(name)
	ext := ""
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		ext = strings.ToLower(name[dot:])
		name = name[:dot]
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > maxBaseNameLength {
		name = name[:maxBaseNameLength]
	}
	if name == "" {
		name = "document"
	}
	return name + unsafeChars.ReplaceAllString(ext, "_")
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
