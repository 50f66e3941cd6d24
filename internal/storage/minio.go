package storage

import (
	"context"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pkgsync/internal/config"
	"pkgsync/internal/syncerr"
)

// MinioStore keeps blobs in a MinIO (or any S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	http   *http.Client
}

func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, http: http.DefaultClient}
}

// NewMinioStoreFromConfig connects to cfg.Endpoint with static credentials.
func NewMinioStoreFromConfig(cfg config.StorageConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, syncerr.Newf(syncerr.InvalidInput, "open storage", "minio",
			"storage.endpoint and storage.bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, syncerr.New(syncerr.InvalidInput, "open storage", cfg.Endpoint, err)
	}
	return NewMinioStore(client, cfg.Bucket), nil
}

func (s *MinioStore) URL(key string) string {
	return objectURL(s.bucket, key)
}

func (s *MinioStore) Get(ctx context.Context, rawURL, destPath string) error {
	if isHTTPURL(rawURL) {
		return httpGetFile(ctx, s.http, rawURL, destPath)
	}
	bucket, key, err := parseObjectURL(rawURL)
	if err != nil {
		return err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return minioError("get", rawURL, err)
	}
	defer obj.Close()
	// GetObject is lazy; Stat surfaces a missing key before anything is written.
	if _, err := obj.Stat(); err != nil {
		return minioError("get", rawURL, err)
	}
	if err := saveStream(obj, destPath); err != nil {
		return syncerr.New(syncerr.TransferFailure, "get", rawURL, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, localPath, key string, overwrite bool) (string, error) {
	if !overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return "", syncerr.Newf(syncerr.AlreadyExists, "put", s.URL(key), "object already exists")
		}
		if !isMinioNotFound(err) {
			return "", minioError("put", s.URL(key), err)
		}
	}
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: detectContentType(localPath),
	})
	if err != nil {
		return "", minioError("put", s.URL(key), err)
	}
	return s.URL(key), nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func minioError(op, ref string, err error) error {
	if isMinioNotFound(err) {
		return syncerr.New(syncerr.NotFound, op, ref, err)
	}
	return syncerr.New(syncerr.TransferFailure, op, ref, err)
}
