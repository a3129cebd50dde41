package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tejashwikalptaru/govis/internal/ports"
)

// MinioConfig configures an S3-compatible export sink.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// MinioSink uploads exports to an S3-compatible bucket.
type MinioSink struct {
	logger *slog.Logger
	client *minio.Client
	cfg    MinioConfig

	bucketOnce sync.Once
	bucketErr  error
}

// NewMinioSink creates a client for cfg. No request is made until Publish.
func NewMinioSink(logger *slog.Logger, cfg MinioConfig) (*MinioSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio sink requires an endpoint and a bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioSink{logger: logger, client: client, cfg: cfg}, nil
}

// Name implements ports.ExportSink.
func (s *MinioSink) Name() string { return "minio" }

// Publish uploads the file and returns its s3:// location.
func (s *MinioSink) Publish(ctx context.Context, jobID string, filePath string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	key := ObjectKey(s.cfg.Prefix, jobID, filePath)
	info, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.Info("export uploaded",
		slog.String("bucket", s.cfg.Bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key), nil
}

func (s *MinioSink) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("check bucket %s: %w", s.cfg.Bucket, err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			s.bucketErr = fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
			return
		}
		s.logger.Info("created export bucket", slog.String("bucket", s.cfg.Bucket))
	})
	return s.bucketErr
}

// ObjectKey builds "<prefix>/<jobID>/<file name>".
func ObjectKey(prefix, jobID, filePath string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if jobID != "" {
		parts = append(parts, jobID)
	}
	parts = append(parts, filepath.Base(filePath))
	return path.Join(parts...)
}

func contentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}

var _ ports.ExportSink = (*MinioSink)(nil)
