package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"pkgsync/internal/fileutil"
	"pkgsync/internal/syncerr"
)

// DirStore keeps blobs in a local directory and hands out file:// URLs.
type DirStore struct {
	root   string
	client *http.Client
}

func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, syncerr.New(syncerr.InvalidInput, "open storage", root, err)
	}
	return &DirStore{root: abs, client: http.DefaultClient}, nil
}

// Root returns the absolute directory backing the store.
func (s *DirStore) Root() string {
	return s.root
}

// Path maps a key to its file below the root. Keys that would leave the root
// are rejected.
func (s *DirStore) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", syncerr.Newf(syncerr.InvalidInput, "resolve key", key, "key escapes the store root")
	}
	return filepath.Join(s.root, clean), nil
}

func (s *DirStore) URL(key string) string {
	p, err := s.Path(key)
	if err != nil {
		p = filepath.Join(s.root, key)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func (s *DirStore) Get(ctx context.Context, rawURL, destPath string) error {
	if isHTTPURL(rawURL) {
		return httpGetFile(ctx, s.client, rawURL, destPath)
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return syncerr.Newf(syncerr.TransferFailure, "get", rawURL, "unsupported url")
	}
	src := filepath.FromSlash(u.Path)
	if !fileutil.IsFile(src) {
		return syncerr.Newf(syncerr.NotFound, "get", rawURL, "object not found")
	}
	if err := fileutil.CopyFile(src, destPath); err != nil {
		return syncerr.New(syncerr.TransferFailure, "get", rawURL, err)
	}
	return nil
}

func (s *DirStore) Put(ctx context.Context, localPath, key string, overwrite bool) (string, error) {
	dest, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return "", syncerr.Newf(syncerr.AlreadyExists, "put", key, "object already exists")
		}
	}
	if err := fileutil.CopyFile(localPath, dest); err != nil {
		return "", syncerr.New(syncerr.TransferFailure, "put", key, err)
	}
	return s.URL(key), nil
}

// PutReader stores the content of r under key. The object appears
// atomically; readers never see a partial blob.
func (s *DirStore) PutReader(key string, r io.Reader, overwrite bool) error {
	dest, err := s.Path(key)
	if err != nil {
		return err
	}
	if !overwrite && fileutil.IsFile(dest) {
		return syncerr.Newf(syncerr.AlreadyExists, "put", key, "object already exists")
	}
	if err := fileutil.MakeParentDir(dest); err != nil {
		return syncerr.New(syncerr.IOError, "put", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*"+fileutil.TempSuffix)
	if err != nil {
		return syncerr.New(syncerr.IOError, "put", key, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return syncerr.New(syncerr.TransferFailure, "put", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return syncerr.New(syncerr.IOError, "put", key, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return syncerr.New(syncerr.IOError, "put", key, err)
	}
	return nil
}
