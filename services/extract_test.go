package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgsync/internal/archive"
	"pkgsync/internal/locations"
	"pkgsync/internal/syncerr"
)

func TestExtractMaterializesAndSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.buildArchive("tools.tgz", map[string]string{
		"inner/bin/tool": "tool",
		"inner/README":   "readme",
		"outside":        "x",
	})
	_, err := f.engine.Archive(linuxGCC, []string{src + ",inner:opt"}, nil)
	require.NoError(t, err)

	require.NoError(t, f.engine.Extract(ctx, []locations.TargetPackage{linuxGCC}, false))
	dest := locations.DestPackageDir(f.opts.DestDir, "linux_x86", "gcc")
	assert.Equal(t, "tool", readFile(t, filepath.Join(dest, "opt", "bin", "tool")))
	assert.FileExists(t, filepath.Join(dest, "opt", "README"))
	assert.NoFileExists(t, filepath.Join(dest, "opt", "outside"))
	assert.NoDirExists(t, filepath.Join(dest, "opt", scratchDirName))

	marker := locations.DestPackageFile(f.opts.DestDir, "linux_x86", "gcc")
	assert.FileExists(t, marker)
	ageFile(t, marker)
	require.NoError(t, f.engine.Extract(ctx, []locations.TargetPackage{linuxGCC}, false))
	assert.True(t, untouched(t, marker))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.packagesExtracted))
}

func TestExtractRebuildsOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pairs := []locations.TargetPackage{linuxGCC}
	v1 := f.buildArchive("v1.tgz", map[string]string{"one": "1"})
	v2 := f.buildArchive("v2.tgz", map[string]string{"two": "2"})
	dest := locations.DestPackageDir(f.opts.DestDir, "linux_x86", "gcc")

	_, err := f.engine.Archive(linuxGCC, []string{v1}, nil)
	require.NoError(t, err)
	require.NoError(t, f.engine.Extract(ctx, pairs, false))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "junk"), []byte("j"), 0644))

	_, err = f.engine.Archive(linuxGCC, []string{v2}, nil)
	require.NoError(t, err)
	require.NoError(t, f.engine.Extract(ctx, pairs, false))
	assert.NoFileExists(t, filepath.Join(dest, "one"))
	assert.NoFileExists(t, filepath.Join(dest, "junk"))
	assert.Equal(t, "2", readFile(t, filepath.Join(dest, "two")))
}

func TestExtractMergesArchivesInOrder(t *testing.T) {
	f := newFixture(t)
	first := f.buildArchive("first.tgz", map[string]string{"bin/a": "first", "bin/shared": "first"})
	second := f.buildArchive("second.tgz", map[string]string{"bin/b": "second", "bin/shared": "second"})
	_, err := f.engine.Archive(linuxGCC, []string{first, second}, nil)
	require.NoError(t, err)

	require.NoError(t, f.engine.Extract(context.Background(), []locations.TargetPackage{linuxGCC}, false))
	dest := locations.DestPackageDir(f.opts.DestDir, "linux_x86", "gcc")
	assert.Equal(t, "first", readFile(t, filepath.Join(dest, "bin", "a")))
	assert.Equal(t, "second", readFile(t, filepath.Join(dest, "bin", "b")))
	assert.Equal(t, "second", readFile(t, filepath.Join(dest, "bin", "shared")))
}

func TestExtractRedownloadsBrokenArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.buildArchive("foo.tgz", map[string]string{"bin/gcc": "gcc"})
	_, err := f.engine.Archive(linuxGCC, []string{src}, nil)
	require.NoError(t, err)
	_, err = f.engine.Upload(ctx, "", linuxGCC, false, "")
	require.NoError(t, err)
	remote, err := f.engine.FetchRemotePackage(ctx, "", linuxGCC)
	require.NoError(t, err)

	clean := f.freshEngine("clean")
	_, err = clean.Download(ctx, linuxGCC, remote, "", false)
	require.NoError(t, err)
	cached := clean.archiveFile(linuxGCC, "foo.tgz")
	require.NoError(t, os.WriteFile(cached, []byte("corrupt"), 0644))

	require.NoError(t, clean.Extract(ctx, []locations.TargetPackage{linuxGCC}, false))
	assert.Equal(t, archive.SHA1.File(src), archive.SHA1.File(cached))
	dest := locations.DestPackageDir(clean.Options().DestDir, "linux_x86", "gcc")
	assert.Equal(t, "gcc", readFile(t, filepath.Join(dest, "bin", "gcc")))
}

func TestExtractMissingArchiveWithoutURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pairs := []locations.TargetPackage{linuxGCC}
	src := f.buildArchive("foo.tgz", map[string]string{"a": "a"})
	_, err := f.engine.Archive(linuxGCC, []string{src}, nil)
	require.NoError(t, err)
	cached := f.engine.archiveFile(linuxGCC, "foo.tgz")

	require.NoError(t, os.Remove(cached))
	err = f.engine.Extract(ctx, pairs, false)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.MissingSourceURL))
	assert.NoFileExists(t, locations.DestPackageFile(f.opts.DestDir, "linux_x86", "gcc"))

	require.NoError(t, os.WriteFile(cached, []byte("other"), 0644))
	err = f.engine.Extract(ctx, pairs, false)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.HashMismatch))

	require.NoError(t, f.engine.Extract(ctx, pairs, true))
	assert.FileExists(t, locations.DestPackageFile(f.opts.DestDir, "linux_x86", "gcc"))
}

func TestExtractSkipMissingIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pairs := []locations.TargetPackage{linuxGCC}
	src := f.buildArchive("tools.tgz", map[string]string{"bin/tool": "tool"})
	_, err := f.engine.Archive(linuxGCC, []string{src}, []string{filepath.Join(f.root, "build", "never-built.tgz")})
	require.NoError(t, err)

	require.NoError(t, f.engine.Extract(ctx, pairs, true))
	marker := locations.DestPackageFile(f.opts.DestDir, "linux_x86", "gcc")
	require.FileExists(t, marker)
	ageFile(t, marker)

	require.NoError(t, f.engine.Extract(ctx, pairs, true))
	assert.True(t, untouched(t, marker))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.packagesExtracted))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.cacheInvalidations.WithLabelValues("dest")))
	dest := locations.DestPackageDir(f.opts.DestDir, "linux_x86", "gcc")
	assert.Equal(t, "tool", readFile(t, filepath.Join(dest, "bin", "tool")))
}

func TestExtractCorruptMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.buildArchive("foo.tgz", map[string]string{"a": "a"})
	_, err := f.engine.Archive(linuxGCC, []string{src}, nil)
	require.NoError(t, err)
	marker := locations.DestPackageFile(f.opts.DestDir, "linux_x86", "gcc")
	require.NoError(t, os.MkdirAll(filepath.Dir(marker), 0755))
	require.NoError(t, os.WriteFile(marker, []byte("[]"), 0644))

	require.NoError(t, f.engine.Extract(ctx, []locations.TargetPackage{linuxGCC}, false))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.cacheInvalidations.WithLabelValues("dest")))
	assert.FileExists(t, filepath.Join(locations.DestPackageDir(f.opts.DestDir, "linux_x86", "gcc"), "a"))
}
