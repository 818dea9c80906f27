package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// ObjectStorage is the collaborator interface for raw resume archival.
type ObjectStorage interface {
	UploadResume(ctx context.Context, userID, filename string, data []byte) (string, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO archives raw resume files and hands back presigned download URLs.
type MinIO struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewMinIO creates the client and makes sure the bucket exists.
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	m := &MinIO{
		client:    client,
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiryHours) * time.Hour,
	}
	if err := m.ensureBucket(ctx, cfg.Bucket, cfg.Location); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context, bucket, location string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	logger.Info().Str("bucket", bucket).Msg("created object-storage bucket")
	return nil
}

// UploadResume stores the raw bytes under resumes/<user>/<uuid>_<filename>
// and returns a presigned download URL.
func (m *MinIO) UploadResume(ctx context.Context, userID, filename string, data []byte) (string, error) {
	if userID == "" {
		userID = "anonymous"
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate object id: %w", err)
	}
	objectName := fmt.Sprintf("resumes/%s/%s_%s", userID, id.String(), sanitizeFilename(filename))

	_, err = m.client.PutObject(ctx, m.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeFor(filename)})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}

	presigned, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, m.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return presigned.String(), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
