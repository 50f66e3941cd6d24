// Package storage implements the remote blob store: content-addressed
// archives and package descriptors live under slash-separated keys, and
// every stored object is reachable through a URL that Get accepts.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"pkgsync/internal/config"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/rpc"
	"pkgsync/internal/syncerr"
)

// BlobStore is the remote side of a sync.
//
// Get fails with kind NotFound when the object does not exist and with
// TransferFailure for any other transport problem. Put with overwrite=false
// fails with AlreadyExists when key is taken.
type BlobStore interface {
	Get(ctx context.Context, url, destPath string) error
	Put(ctx context.Context, localPath, key string, overwrite bool) (string, error)
	URL(key string) string
}

// New builds the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Type {
	case config.StorageHTTP, "":
		if cfg.BaseURL == "" {
			return nil, syncerr.Newf(syncerr.InvalidInput, "open storage", "http", "storage.base_url is required")
		}
		var client *http.Client
		if cfg.Socket != "" {
			client = rpc.NewHTTPClient(&rpc.HTTPConfig{Network: "unix", Address: cfg.Socket})
		}
		return NewHTTPStore(cfg.BaseURL, client).WithToken(cfg.Token), nil
	case config.StorageLocal:
		if cfg.Dir == "" {
			return nil, syncerr.Newf(syncerr.InvalidInput, "open storage", "local", "storage.dir is required")
		}
		return NewDirStore(cfg.Dir)
	case config.StorageS3:
		return NewS3StoreFromConfig(ctx, cfg)
	case config.StorageMinio:
		return NewMinioStoreFromConfig(cfg)
	default:
		return nil, syncerr.Newf(syncerr.InvalidInput, "open storage", cfg.Type, "unknown storage type")
	}
}

// saveStream writes r to destPath, creating parent directories. A partial
// file is removed on failure.
func saveStream(r io.Reader, destPath string) error {
	if err := fileutil.MakeParentDir(destPath); err != nil {
		return err
	}
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	return nil
}
