package storage

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"

	"pkgsync/internal/config"
	"pkgsync/internal/syncerr"
)

// S3API is the subset of the S3 client used by S3Store, so tests can
// substitute a fake.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store keeps blobs in an S3 bucket and hands out s3://bucket/key URLs.
type S3Store struct {
	client S3API
	bucket string
	http   *http.Client
}

// NewS3Store wraps an existing client.
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket, http: http.DefaultClient}
}

// NewS3StoreFromConfig loads the default AWS configuration chain, applying
// region, static credentials and a custom endpoint when configured.
func NewS3StoreFromConfig(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, syncerr.Newf(syncerr.InvalidInput, "open storage", "s3", "storage.bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, syncerr.New(syncerr.InvalidInput, "open storage", "s3", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3Store(client, cfg.Bucket), nil
}

func (s *S3Store) URL(key string) string {
	return objectURL(s.bucket, key)
}

func (s *S3Store) Get(ctx context.Context, rawURL, destPath string) error {
	if isHTTPURL(rawURL) {
		return httpGetFile(ctx, s.http, rawURL, destPath)
	}
	bucket, key, err := parseObjectURL(rawURL)
	if err != nil {
		return err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return syncerr.New(syncerr.NotFound, "get", rawURL, err)
		}
		return syncerr.New(syncerr.TransferFailure, "get", rawURL, err)
	}
	defer out.Body.Close()
	if err := saveStream(out.Body, destPath); err != nil {
		return syncerr.New(syncerr.TransferFailure, "get", rawURL, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, localPath, key string, overwrite bool) (string, error) {
	if !overwrite {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return "", syncerr.Newf(syncerr.AlreadyExists, "put", s.URL(key), "object already exists")
		}
		if !isS3NotFound(err) {
			return "", syncerr.New(syncerr.TransferFailure, "put", s.URL(key), err)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", syncerr.New(syncerr.IOError, "put", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", syncerr.New(syncerr.IOError, "put", localPath, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(detectContentType(localPath)),
	})
	if err != nil {
		return "", syncerr.New(syncerr.TransferFailure, "put", s.URL(key), err)
	}
	return s.URL(key), nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// detectContentType sniffs the file content; archives that mimetype cannot
// classify are sent as application/octet-stream.
func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func objectURL(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimLeft(key, "/")
}

func parseObjectURL(rawURL string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(rawURL, "s3://")
	if !ok {
		return "", "", syncerr.Newf(syncerr.TransferFailure, "get", rawURL, "unsupported url")
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", syncerr.Newf(syncerr.TransferFailure, "get", rawURL, "url must be s3://bucket/key")
	}
	return bucket, key, nil
}
