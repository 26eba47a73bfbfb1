package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stagehandhq/stagehand/internal/config"
)

// MinioProvider stores profile media in a MinIO (or any S3-compatible)
// bucket and serves it through presigned GET URLs.
type MinioProvider struct {
	log       *slog.Logger
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewMinioProvider connects to the configured endpoint and ensures the
// media bucket exists.
func NewMinioProvider(ctx context.Context, log *slog.Logger, cfg config.MinioConfig) (*MinioProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}

	expiry, err := time.ParseDuration(cfg.URLExpiry)
	if err != nil {
		expiry = 24 * time.Hour
	}

	p := &MinioProvider{
		log:       log.With(slog.String("service", "storage")),
		client:    client,
		bucket:    cfg.Bucket,
		urlExpiry: expiry,
	}
	if err := p.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MinioProvider) ensureBucket(ctx context.Context, region string) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.bucket, err)
	}
	p.log.Info("created media bucket", slog.String("bucket", p.bucket))
	return nil
}

// progressReader reports the running byte count to a ProgressFunc as the
// underlying reader is consumed.
type progressReader struct {
	r        io.Reader
	read     int64
	progress ProgressFunc
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.read += int64(n)
		if pr.progress != nil {
			pr.progress(pr.read)
		}
	}
	return n, err
}

// Upload writes the object and returns a presigned URL for it.
func (p *MinioProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, progress ProgressFunc) (string, error) {
	pr := &progressReader{r: reader, progress: progress}
	_, err := p.client.PutObject(ctx, p.bucket, key, pr, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return p.ResolveURL(ctx, key)
}

// Delete removes the object. MinIO treats removal of a missing object as a
// no-op, which matches the Provider contract.
func (p *MinioProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// ResolveURL returns a presigned GET URL for the object.
func (p *MinioProvider) ResolveURL(ctx context.Context, key string) (string, error) {
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ContentTypeForExt maps common media file extensions to MIME types,
// defaulting to application/octet-stream.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
