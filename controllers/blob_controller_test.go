package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgsync/internal/archive"
	"pkgsync/internal/config"
	"pkgsync/internal/locations"
	"pkgsync/internal/middleware"
	"pkgsync/internal/models"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/storage"
	"pkgsync/internal/syncerr"
	"pkgsync/internal/tarball"
	"pkgsync/services"
)

func newMirror(t *testing.T) (*httptest.Server, *services.MirrorServer) {
	return newMirrorWithSecret(t, "")
}

func newMirrorWithSecret(t *testing.T, secret string) (*httptest.Server, *services.MirrorServer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{}
	cfg.Server.Root = filepath.Join(t.TempDir(), "mirror")
	cfg.Server.TokenSecret = secret
	server, err := services.NewMirrorServer(cfg, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(server))
	t.Cleanup(srv.Close)
	return srv, server
}

func TestBlobPutGet(t *testing.T) {
	srv, server := newMirror(t)
	store := storage.NewHTTPStore(srv.URL+"/blobs", srv.Client())
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "obj")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))
	url, err := store.Put(ctx, src, "archives/obj/abc", false)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/blobs/archives/obj/abc", url)
	assert.FileExists(t, filepath.Join(server.Store().Root(), "archives", "obj", "abc"))

	_, err = store.Put(ctx, src, "archives/obj/abc", false)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.AlreadyExists))
	_, err = store.Put(ctx, src, "archives/obj/abc", true)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, store.Get(ctx, url, dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	err = store.Get(ctx, store.URL("archives/none"), dest)
	require.Error(t, err)
	assert.True(t, syncerr.IsNotFound(err))

	rsp, err := srv.Client().Head(url)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
}

func TestBlobPutRequiresToken(t *testing.T) {
	srv, _ := newMirrorWithSecret(t, "s3cret")
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "obj")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	anonymous := storage.NewHTTPStore(srv.URL+"/blobs", srv.Client())
	_, err := anonymous.Put(ctx, src, "archives/obj/abc", true)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.TransferFailure))
	assert.Contains(t, err.Error(), "missing bearer token")

	token, err := middleware.IssueToken("s3cret", "ci", time.Hour)
	require.NoError(t, err)
	authorized := storage.NewHTTPStore(srv.URL+"/blobs", srv.Client()).WithToken(token)
	url, err := authorized.Put(ctx, src, "archives/obj/abc", true)
	require.NoError(t, err)
	require.NoError(t, anonymous.Get(ctx, url, filepath.Join(t.TempDir(), "out")))
}

func TestBlobRejectsEscapingKeys(t *testing.T) {
	_, server := newMirror(t)
	router := NewRouter(server)
	req := httptest.NewRequest(http.MethodPut, "/blobs/x", strings.NewReader("x"))
	req.URL.Path = "/blobs/../evil"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(server.Store().Root()), "evil"))
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := newMirror(t)
	rsp, err := srv.Client().Get(srv.URL + "/blobs/missing")
	require.NoError(t, err)
	rsp.Body.Close()

	rsp, err = srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer rsp.Body.Close()
	var health models.HealthResponse
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&health))
	assert.Equal(t, "UP", health.Status)
	assert.EqualValues(t, 1, health.Metrics.TotalRequests)
	assert.EqualValues(t, 1, health.Metrics.ErrorRequests)

	rsp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pkgsync_http_requests_total{path="/blobs/*key",status="404"} 1`)
}

func TestSyncThroughMirror(t *testing.T) {
	srv, _ := newMirror(t)
	store := storage.NewHTTPStore(srv.URL+"/blobs", srv.Client())
	ctx := context.Background()
	root := t.TempDir()
	tp := locations.TargetPackage{Target: "linux_x86", Package: "gcc"}

	src := filepath.Join(root, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "gcc"), []byte("gcc"), 0755))
	tgz := filepath.Join(root, "foo.tgz")
	w, err := tarball.Default.OpenForWrite(tgz, "")
	require.NoError(t, err)
	require.NoError(t, w.AddTree(src))
	require.NoError(t, w.Close())

	builder := services.NewSyncEngine(config.Options{
		TarDir:  filepath.Join(root, "build-tars"),
		DestDir: filepath.Join(root, "build-dest"),
	}, store, nil, nil)
	_, err = builder.Archive(tp, []string{tgz}, nil)
	require.NoError(t, err)
	key, err := builder.Upload(ctx, "42", tp, false, "")
	require.NoError(t, err)
	assert.Equal(t, "packages/linux_x86/gcc/42.json", key)

	consumer := services.NewSyncEngine(config.Options{
		TarDir:  filepath.Join(root, "tars"),
		DestDir: filepath.Join(root, "dest"),
	}, store, nil, nil)
	pairs := []locations.TargetPackage{tp}
	require.NoError(t, consumer.Sync(ctx, pairs, "42", false, true))

	cached := locations.LocalArchiveFile(filepath.Join(root, "tars"), "linux_x86", "gcc", "foo.tgz")
	assert.Equal(t, archive.ComputeHash(tgz), archive.ComputeHash(cached))
	extracted, err := os.ReadFile(filepath.Join(root, "dest", "linux_x86", "gcc", "bin", "gcc"))
	require.NoError(t, err)
	assert.Equal(t, "gcc", string(extracted))

	got, err := consumer.Download(ctx, tp, mustFetch(t, consumer, "42", tp), "42", false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func mustFetch(t *testing.T, e *services.SyncEngine, label string, tp locations.TargetPackage) *pkginfo.Package {
	t.Helper()
	pkg, err := e.FetchRemotePackage(context.Background(), label, tp)
	require.NoError(t, err)
	return pkg
}
