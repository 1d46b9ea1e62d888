// Package documents stores transfer supporting documents in an S3-compatible
// bucket and hands out presigned download links.
package documents

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"landadmin/internal/platform/config"
	id "landadmin/pkg/domain"
)

// Storage wraps MinIO/S3 interactions for transfer documents.
type Storage struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
}

// New creates a MinIO client from the object storage config.
func New(cfg config.ObjectStorage) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// EnsureBucket creates the document bucket when it does not exist yet.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	return nil
}

// PresignGet returns a signed GET URL for key.
func (s *Storage) PresignGet(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign document: %w", err)
	}
	return u.String(), nil
}

// ObjectKey builds the storage key for an uploaded file. The random segment
// keeps re-uploads of the same file name apart.
func ObjectKey(transferID id.TransferID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		name = "document"
	}
	return KeyPrefix(transferID) + uuid.NewString()[:8] + "-" + name
}

const keyRoot = "transfers/"

// KeyPrefix is the folder holding every upload of transferID.
func KeyPrefix(transferID id.TransferID) string {
	return keyRoot + transferID.String() + "/"
}

// IsStoredKey reports whether ref names an object in the document bucket.
func IsStoredKey(ref string) bool {
	return strings.HasPrefix(ref, keyRoot)
}

// BelongsTo reports whether key is an upload of transferID.
func BelongsTo(transferID id.TransferID, key string) bool {
	name, ok := strings.CutPrefix(key, KeyPrefix(transferID))
	return ok && name != "" && !strings.Contains(name, "/")
}
