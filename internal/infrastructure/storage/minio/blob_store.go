package minio

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// RefScheme prefixes blob references handed back to the session layer.
const RefScheme = "s3://"

var ErrInvalidRef = errors.New(errors.ErrCodeBadRequest, "invalid blob reference")

// BlobStore implements session.BlobStore on a single bucket. References have
// the form s3://<bucket>/<key>.
type BlobStore struct {
	client *MinIOClient
	logger logging.Logger
}

func NewBlobStore(client *MinIOClient, log logging.Logger) *BlobStore {
	return &BlobStore{client: client, logger: log.Named("blob")}
}

func (s *BlobStore) Upload(ctx context.Context, key string, body io.Reader, size int64, meta session.BlobMetadata) (string, error) {
	if key == "" {
		return "", errors.InvalidParam("blob key required")
	}
	bucket := s.client.Bucket()
	opts := minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		UserMetadata: userMetadata(meta),
	}
	if meta.FileName != "" {
		opts.ContentDisposition = `attachment; filename="` + strings.ReplaceAll(meta.FileName, `"`, "") + `"`
	}

	start := time.Now()
	info, err := s.client.client.PutObject(ctx, bucket, key, body, size, opts)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "upload failed")
	}
	s.logger.Debug("Object stored",
		logging.String("key", key),
		logging.Int64("size", info.Size),
		logging.Duration("latency", time.Since(start)))
	return RefScheme + bucket + "/" + key, nil
}

func (s *BlobStore) Delete(ctx context.Context, ref string) error {
	bucket, key, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if err := s.client.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "delete failed")
	}
	return nil
}

// Exists reports whether ref names a stored object.
func (s *BlobStore) Exists(ctx context.Context, ref string) (bool, error) {
	bucket, key, err := ParseRef(ref)
	if err != nil {
		return false, err
	}
	_, err = s.client.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrap(err, errors.CodeStorageError, "stat failed")
}

// DownloadURL returns a presigned GET URL for ref.
func (s *BlobStore) DownloadURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	bucket, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	if bucket != s.client.Bucket() {
		return "", ErrInvalidRef.WithDetail(ref)
	}
	return s.client.GeneratePresignedGetURL(ctx, key, expiry)
}

// ParseRef splits a blob reference into bucket and key.
func ParseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, RefScheme)
	if !ok {
		return "", "", ErrInvalidRef.WithDetail(ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", ErrInvalidRef.WithDetail(ref)
	}
	return bucket, key, nil
}

func userMetadata(meta session.BlobMetadata) map[string]string {
	md := make(map[string]string, 3)
	if meta.SessionID != "" {
		md["session-id"] = meta.SessionID
	}
	if meta.Category != "" {
		md["category"] = meta.Category
	}
	if meta.FileName != "" {
		md["file-name"] = meta.FileName
	}
	return md
}

var _ session.BlobStore = (*BlobStore)(nil)

//Personal.AI order the ending
