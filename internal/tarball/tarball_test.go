package tarball

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "gcc"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("readme"), 0644))
	require.NoError(t, os.Symlink("gcc", filepath.Join(src, "bin", "cc")))
	return src
}

func TestRoundTripAllCompressions(t *testing.T) {
	src := buildTree(t)
	names := map[Compression]string{
		None:  "pkg.tar",
		Gzip:  "pkg.tgz",
		Bzip2: "pkg.tar.bz2",
		Zstd:  "pkg.tar.zst",
		LZ4:   "pkg.tar.lz4",
	}
	for mode, name := range names {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			archivePath := filepath.Join(dir, name)

			w, err := Default.OpenForWrite(archivePath, "")
			require.NoError(t, err)
			require.NoError(t, w.AddTree(src))
			require.NoError(t, w.Close())

			header := make([]byte, 4)
			f, err := os.Open(archivePath)
			require.NoError(t, err)
			_, _ = f.Read(header)
			f.Close()
			assert.Equal(t, mode, Sniff(header))

			dest := filepath.Join(dir, "out")
			require.NoError(t, ExtractFile(Default, archivePath, dest))

			data, err := os.ReadFile(filepath.Join(dest, "bin", "gcc"))
			require.NoError(t, err)
			assert.Equal(t, "#!/bin/sh\n", string(data))
			info, err := os.Stat(filepath.Join(dest, "bin", "gcc"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

			link, err := os.Readlink(filepath.Join(dest, "bin", "cc"))
			require.NoError(t, err)
			assert.Equal(t, "gcc", link)
			assert.FileExists(t, filepath.Join(dest, "README"))
		})
	}
}

func TestCompressionForName(t *testing.T) {
	tests := map[string]Compression{
		"a.tar.gz":  Gzip,
		"a.TGZ":     Gzip,
		"a.tar.bz2": Bzip2,
		"a.bz2":     Bzip2,
		"a.tar":     None,
		"a.tar.zst": Zstd,
		"a.tar.lz4": LZ4,
	}
	for name, want := range tests {
		got, err := CompressionForName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := CompressionForName("a.zip")
	assert.Error(t, err)
}

func TestCreateEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"e.tgz", "e.tar.bz2", "e.tar"} {
		p := filepath.Join(dir, name)
		require.NoError(t, CreateEmpty(Default, p))
		out := filepath.Join(dir, "x-"+name)
		require.NoError(t, ExtractFile(Default, p, out))
		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
	assert.Error(t, CreateEmpty(Default, filepath.Join(dir, "e.rar")))
}

func writeRawTar(t *testing.T, path string, hdrs ...*tar.Header) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	for _, h := range hdrs {
		require.NoError(t, tw.WriteHeader(h))
		if h.Typeflag == tar.TypeReg && h.Size > 0 {
			_, err := tw.Write(make([]byte, h.Size))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())
}

func TestRejectsEscapingEntries(t *testing.T) {
	cases := map[string]*tar.Header{
		"dotdot":        {Name: "../evil", Typeflag: tar.TypeReg, Mode: 0644},
		"absolute":      {Name: "/etc/evil", Typeflag: tar.TypeReg, Mode: 0644},
		"symlink out":   {Name: "link", Typeflag: tar.TypeSymlink, Linkname: "../../etc"},
		"symlink abs":   {Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"},
		"hardlink out":  {Name: "hl", Typeflag: tar.TypeLink, Linkname: "../x"},
		"nested dotdot": {Name: "a/../../b", Typeflag: tar.TypeReg, Mode: 0644},
	}
	for name, hdr := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			p := filepath.Join(dir, "bad.tar")
			writeRawTar(t, p, hdr)
			err := ExtractFile(Default, p, filepath.Join(dir, "out"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafePath))
		})
	}
}

func TestRejectsSymlinkChains(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	cases := map[string][]*tar.Header{
		"climbing through a dir link": {
			{Name: "x", Typeflag: tar.TypeSymlink, Linkname: "."},
			{Name: "x/y", Typeflag: tar.TypeSymlink, Linkname: ".."},
			{Name: "x/y/w", Typeflag: tar.TypeSymlink, Linkname: ".."},
			{Name: "x/y/w/escaped", Typeflag: tar.TypeReg, Mode: 0644, Size: 1},
		},
		"writing below a link that resolves out": {
			{Name: "x", Typeflag: tar.TypeSymlink, Linkname: "."},
			{Name: "l", Typeflag: tar.TypeSymlink, Linkname: "x/.."},
			{Name: "l/escaped", Typeflag: tar.TypeReg, Mode: 0644, Size: 1},
		},
		"directory below a link that resolves out": {
			{Name: "x", Typeflag: tar.TypeSymlink, Linkname: "."},
			{Name: "l", Typeflag: tar.TypeSymlink, Linkname: "x/.."},
			{Name: "l/escaped/", Typeflag: tar.TypeDir, Mode: 0755},
		},
	}
	for name, hdrs := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			p := filepath.Join(dir, "bad.tar")
			writeRawTar(t, p, hdrs...)
			out := filepath.Join(dir, "pkg", "out")
			err := ExtractFile(Default, p, out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafePath))
			assert.NoFileExists(t, filepath.Join(dir, "pkg", "escaped"))
			assert.NoFileExists(t, filepath.Join(dir, "escaped"))
			assert.NoDirExists(t, filepath.Join(dir, "pkg", "escaped"))
		})
	}
}

func TestSymlinkedDirInsideIsFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "ok.tar")
	writeRawTar(t, p,
		&tar.Header{Name: "real/", Typeflag: tar.TypeDir, Mode: 0755},
		&tar.Header{Name: "alias", Typeflag: tar.TypeSymlink, Linkname: "real"},
		&tar.Header{Name: "alias/file", Typeflag: tar.TypeReg, Mode: 0644, Size: 2},
	)
	out := filepath.Join(dir, "out")
	require.NoError(t, ExtractFile(Default, p, out))
	assert.FileExists(t, filepath.Join(out, "real", "file"))
}

func TestInnerDotDotStaysInside(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ok.tar")
	writeRawTar(t, p,
		&tar.Header{Name: "a/", Typeflag: tar.TypeDir, Mode: 0755},
		&tar.Header{Name: "a/../b", Typeflag: tar.TypeReg, Mode: 0644, Size: 3},
		&tar.Header{Name: "a/hard", Typeflag: tar.TypeLink, Linkname: "b"},
	)
	out := filepath.Join(dir, "out")
	require.NoError(t, ExtractFile(Default, p, out))
	assert.FileExists(t, filepath.Join(out, "b"))
	assert.FileExists(t, filepath.Join(out, "a", "hard"))
}
