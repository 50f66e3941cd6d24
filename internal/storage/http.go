package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"pkgsync/internal/rpc"
	"pkgsync/internal/syncerr"
)

// HTTPStore talks to a blob mirror over plain HTTP: GET downloads, PUT
// uploads to {base}/{key}.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	token   string
}

// NewHTTPStore returns a store rooted at baseURL. A nil client dials the
// URL host over TCP.
func NewHTTPStore(baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = rpc.NewHTTPClient(nil)
	}
	return &HTTPStore{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// WithToken makes Put send token as a bearer credential.
func (s *HTTPStore) WithToken(token string) *HTTPStore {
	s.token = token
	return s
}

func (s *HTTPStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (s *HTTPStore) Get(ctx context.Context, urlStr, destPath string) error {
	return httpGetFile(ctx, s.client, urlStr, destPath)
}

/**
 * Upload a local file with an HTTP PUT
 * @param {context.Context} ctx - Request context
 * @param {string} localPath - File to upload
 * @param {string} key - Remote key below the base URL
 * @param {bool} overwrite - Replace an existing object
 * @returns {string} URL of the stored object
 * @returns {error} AlreadyExists on 409 Conflict, TransferFailure otherwise
 */
func (s *HTTPStore) Put(ctx context.Context, localPath, key string, overwrite bool) (string, error) {
	target := s.URL(key)
	f, err := os.Open(localPath)
	if err != nil {
		return "", syncerr.New(syncerr.IOError, "put", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", syncerr.New(syncerr.IOError, "put", localPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return "", syncerr.New(syncerr.TransferFailure, "put", target, err)
	}
	req.ContentLength = info.Size()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	vals := make(url.Values)
	vals.Set("overwrite", strconv.FormatBool(overwrite))
	req.URL.RawQuery = vals.Encode()

	rsp, err := s.client.Do(req)
	if err != nil {
		return "", syncerr.New(syncerr.TransferFailure, "put", target, err)
	}
	defer rsp.Body.Close()
	switch {
	case rsp.StatusCode == http.StatusConflict:
		return "", syncerr.Newf(syncerr.AlreadyExists, "put", target, "object already exists")
	case rsp.StatusCode < 200 || rsp.StatusCode > 299:
		return "", syncerr.Newf(syncerr.TransferFailure, "put", target, "%s", rpc.ErrorMessage(rsp))
	}
	return target, nil
}

/**
 * Download a URL into a local file
 * @param {context.Context} ctx - Request context
 * @param {*http.Client} client - HTTP client
 * @param {string} urlStr - Source URL
 * @param {string} savePath - Destination file, parent directories are created
 * @returns {error} NotFound on 404, TransferFailure on any other failure
 */
func httpGetFile(ctx context.Context, client *http.Client, urlStr, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return syncerr.New(syncerr.TransferFailure, "get", urlStr, err)
	}
	rsp, err := client.Do(req)
	if err != nil {
		return syncerr.New(syncerr.TransferFailure, "get", urlStr, err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode == http.StatusNotFound {
		return syncerr.Newf(syncerr.NotFound, "get", urlStr, "object not found")
	}
	if rsp.StatusCode != http.StatusOK {
		return syncerr.Newf(syncerr.TransferFailure, "get", urlStr, "%s", rpc.ErrorMessage(rsp))
	}
	if err := saveStream(rsp.Body, savePath); err != nil {
		return syncerr.New(syncerr.TransferFailure, "get", urlStr, fmt.Errorf("save '%s': %w", savePath, err))
	}
	return nil
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
