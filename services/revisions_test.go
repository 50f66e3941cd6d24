package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgsync/internal/archive"
	"pkgsync/internal/locations"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/revision"
	"pkgsync/internal/syncerr"
)

var macGCC = locations.TargetPackage{Target: "mac_x86", Package: "gcc"}

// publishRevision archives and uploads gcc for the given targets.
func (f *fixture) publishRevision(label string, content string, targets ...locations.TargetPackage) string {
	f.t.Helper()
	src := f.buildArchive("gcc-"+label+".tgz", map[string]string{"bin/gcc": content})
	for _, tp := range targets {
		_, err := f.engine.Archive(tp, []string{src}, nil)
		require.NoError(f.t, err)
		_, err = f.engine.Upload(context.Background(), label, tp, false, "")
		require.NoError(f.t, err)
	}
	return src
}

func TestSetAndGetRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publishRevision("12345", "gcc 1", linuxGCC, macGCC)

	revFile, err := f.engine.SetRevision(ctx, "gcc", 12345)
	require.NoError(t, err)
	assert.Equal(t, locations.RevisionFile(f.opts.RevisionsDir, "gcc"), revFile)

	n, err := f.engine.GetRevision("gcc")
	require.NoError(t, err)
	assert.Equal(t, 12345, n)

	rev, err := revision.Load(revFile, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"linux_x86", "mac_x86"}, rev.Targets())
	assert.Equal(t, "gcc", rev.PackageName())

	f.publishRevision("12346", "gcc 2", linuxGCC, macGCC)
	n, err = f.engine.GetRevision("linux_x86/gcc")
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
}

func TestSetRevisionRequiresEveryTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publishRevision("7", "gcc", linuxGCC)

	_, err := f.engine.SetRevision(ctx, "gcc", 7)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))
	assert.NoFileExists(t, locations.RevisionFile(f.opts.RevisionsDir, "gcc"))

	_, err = f.engine.SetRevision(ctx, "linux_x86/gcc", 7)
	require.NoError(t, err)
	n, err := f.engine.GetRevision("gcc")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = f.engine.SetRevision(ctx, "nothing", 7)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))
}

func TestGetRevisionUnset(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.GetRevision("gcc")
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))
	assert.Contains(t, err.Error(), "no revision set for package: gcc")
}

func TestSyncFromRevisionFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.publishRevision("100", "gcc 100", linuxGCC, macGCC)
	_, err := f.engine.SetRevision(ctx, "gcc", 100)
	require.NoError(t, err)

	clean := f.freshEngine("clean")
	pairs := []locations.TargetPackage{linuxGCC, macGCC}
	require.NoError(t, clean.Sync(ctx, pairs, "", false, true))

	for _, tp := range pairs {
		cached := clean.archiveFile(tp, filepath.Base(src))
		assert.Equal(t, archive.SHA1.File(src), archive.SHA1.File(cached))
		dest := locations.DestPackageDir(clean.Options().DestDir, tp.Target, tp.Package)
		assert.Equal(t, "gcc 100", readFile(t, filepath.Join(dest, "bin", "gcc")))
	}

	gets := f.store.gets
	require.NoError(t, clean.Sync(ctx, pairs, "", false, true))
	assert.Equal(t, gets, f.store.gets)
}

func TestSyncExplicitRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publishRevision("1", "one", linuxGCC)
	newer := f.publishRevision("2", "two", linuxGCC)

	clean := f.freshEngine("clean")
	require.NoError(t, clean.Sync(ctx, []locations.TargetPackage{linuxGCC}, "2", false, false))
	assert.FileExists(t, clean.archiveFile(linuxGCC, filepath.Base(newer)))
	assert.NoFileExists(t, locations.DestPackageFile(clean.Options().DestDir, "linux_x86", "gcc"))

	err := clean.Sync(ctx, []locations.TargetPackage{linuxGCC}, "3", false, false)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))

	err = clean.Sync(ctx, []locations.TargetPackage{linuxGCC}, "", false, false)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))
}

func TestSyncCleansTempFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publishRevision("5", "five", linuxGCC)
	clean := f.freshEngine("clean")
	leftover := filepath.Join(clean.Options().TarDir, "linux_x86", "gcc", "half.tgz.tmp")
	require.NoError(t, os.MkdirAll(filepath.Dir(leftover), 0755))
	require.NoError(t, os.WriteFile(leftover, []byte("x"), 0644))

	require.NoError(t, clean.Sync(ctx, []locations.TargetPackage{linuxGCC}, "5", false, false))
	assert.NoFileExists(t, leftover)
}

func TestRecalcRevisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publishRevision("3", "three", linuxGCC)
	revFile, err := f.engine.SetRevision(ctx, "linux_x86/gcc", 3)
	require.NoError(t, err)

	data, err := os.ReadFile(revFile)
	require.NoError(t, err)
	edited := bytes.Replace(data, []byte(`"revision": 3`), []byte(`"revision": 4`), 1)
	require.NotEqual(t, data, edited)
	require.NoError(t, os.WriteFile(revFile, edited, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.opts.RevisionsDir, "notes.txt"), []byte("x"), 0644))

	_, err = revision.Load(revFile, false)
	require.True(t, syncerr.Is(err, syncerr.HashMismatch))

	rewritten, err := f.engine.RecalcRevisions()
	require.NoError(t, err)
	assert.Equal(t, []string{revFile}, rewritten)
	n, err := f.engine.GetRevision("gcc")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestFillEmptyTars(t *testing.T) {
	f := newFixture(t)
	src := f.buildArchive("foo.tgz", map[string]string{"a": "a"})
	missing := []string{
		filepath.Join(f.root, "build", "empty.tar.bz2"),
		filepath.Join(f.root, "build", "empty.tar") + ",src:dst",
	}
	pkgFile, err := f.engine.Archive(linuxGCC, []string{src}, missing)
	require.NoError(t, err)

	require.NoError(t, f.engine.FillEmptyTars([]locations.TargetPackage{linuxGCC}))
	pkg, err := pkginfo.Load(pkgFile, false)
	require.NoError(t, err)
	require.Equal(t, 3, pkg.Len())
	for _, name := range []string{"empty.tar.bz2", "empty.tar"} {
		a, ok := pkg.Find(name)
		require.True(t, ok, name)
		assert.Equal(t, archive.SHA1.File(f.engine.archiveFile(linuxGCC, name)), a.Hash)
		assert.Empty(t, a.TarSrcDir)
		assert.Empty(t, a.ExtractDir)
	}

	require.NoError(t, f.engine.Extract(context.Background(), []locations.TargetPackage{linuxGCC}, false))

	_, err = f.engine.Archive(linuxGCC, []string{src}, []string{filepath.Join(f.root, "build", "bad.zip")})
	require.NoError(t, err)
	err = f.engine.FillEmptyTars([]locations.TargetPackage{linuxGCC})
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.InvalidInput))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	f.publishRevision("8", "eight", linuxGCC)
	_, err := f.engine.SetRevision(context.Background(), "linux_x86/gcc", 8)
	require.NoError(t, err)

	headers := locations.TargetPackage{Target: "linux_x86", Package: "headers"}
	rows := f.engine.Describe([]locations.TargetPackage{linuxGCC, headers})
	require.Len(t, rows, 2)
	assert.Equal(t, PackageColumns{Target: "linux_x86", Package: "gcc", Revision: "8", Cached: "1 archives"}, rows[0])
	assert.Equal(t, PackageColumns{Target: "linux_x86", Package: "headers", Shared: true, Cached: "missing"}, rows[1])

	var out bytes.Buffer
	require.NoError(t, f.engine.List(&out, []locations.TargetPackage{linuxGCC, headers}))
	assert.True(t, strings.Contains(out.String(), "headers"))
	assert.Contains(t, out.String(), "REVISION")
}
