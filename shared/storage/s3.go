package storage

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/xerrors"
)

// S3Scheme prefixes object store paths: s3://bucket/key.
const S3Scheme = "s3://"

// S3Config holds the object store connection settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// S3FileSystem reads objects through the MinIO client.
type S3FileSystem struct {
	client *minio.Client
}

// NewS3FileSystem creates a client for cfg. No request is made until Open.
func NewS3FileSystem(cfg S3Config) (*S3FileSystem, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create s3 client for %s: %w", cfg.Endpoint, err)
	}
	return &S3FileSystem{client: client}, nil
}

// SplitS3Path splits s3://bucket/key into its bucket and key.
func SplitS3Path(path string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(path, S3Scheme)
	if rest == path {
		return "", "", xerrors.Errorf("not an s3 path: %s", path)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", xerrors.Errorf("s3 path must look like s3://bucket/key: %s", path)
	}
	return bucket, key, nil
}

func (s *S3FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := SplitS3Path(path)
	if err != nil {
		return nil, err
	}

	// Stat first so a missing object is told apart from a read failure
	// before any byte is consumed.
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, xerrors.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, xerrors.Errorf("failed to stat %s: %w", path, err)
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, xerrors.Errorf("failed to get %s: %w", path, err)
	}
	return obj, nil
}
