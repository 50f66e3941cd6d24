package revision

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgsync/internal/archive"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
)

type fakeCatalog map[string][]string

func (c fakeCatalog) TargetsForPackage(name string) []string {
	return c[name]
}

func samplePackage(hash archive.Hash) *pkginfo.Package {
	return pkginfo.New(archive.Archive{Name: "gcc.tgz", Hash: hash, URL: "http://h/gcc"})
}

func TestSetAndGet(t *testing.T) {
	r := New()
	r.SetRevisionNumber(12345)
	require.NoError(t, r.SetTargetRevision("gcc", "linux_x86", samplePackage("aa")))
	require.NoError(t, r.SetTargetRevision("gcc", "mac_x86", samplePackage("bb")))

	n, ok := r.RevisionNumber()
	assert.True(t, ok)
	assert.Equal(t, 12345, n)
	assert.Equal(t, "gcc", r.PackageName())
	assert.Equal(t, []string{"linux_x86", "mac_x86"}, r.Targets())

	pkg, err := r.GetPackageInfo("mac_x86")
	require.NoError(t, err)
	assert.True(t, pkg.Equals(samplePackage("bb")))

	_, err = r.GetPackageInfo("win_x86")
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))

	err = r.SetTargetRevision("binutils", "linux_x86", samplePackage("aa"))
	assert.True(t, syncerr.Is(err, syncerr.InvalidInput))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gcc.json")
	r := New()
	r.SetRevisionNumber(7)
	require.NoError(t, r.SetTargetRevision("gcc", "linux_x86", samplePackage("aa")))
	require.NoError(t, r.Save(path))

	loaded, err := Load(path, false)
	require.NoError(t, err)
	n, _ := loaded.RevisionNumber()
	assert.Equal(t, 7, n)
	pkg, err := loaded.GetPackageInfo("linux_x86")
	require.NoError(t, err)
	assert.True(t, pkg.Identical(samplePackage("aa")))

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Save(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRevisionHashVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gcc.json")
	r := New()
	r.SetRevisionNumber(1)
	require.NoError(t, r.SetTargetRevision("gcc", "linux_x86", samplePackage("aa")))
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(data), `"revision": 1`, `"revision": 2`, 1)
	require.NotEqual(t, string(data), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	_, err = Load(path, false)
	assert.True(t, syncerr.Is(err, syncerr.HashMismatch))

	fixed, err := Load(path, true)
	require.NoError(t, err)
	require.NoError(t, fixed.Save(path))

	again, err := Load(path, false)
	require.NoError(t, err)
	n, _ := again.RevisionNumber()
	assert.Equal(t, 2, n)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "none.json"), false)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"packages":{}}`), 0644))
	_, err = Load(bad, true)
	assert.True(t, syncerr.Is(err, syncerr.MalformedDescriptor))
}

func TestValidateComplete(t *testing.T) {
	cat := fakeCatalog{"gcc": {"linux_x86", "mac_x86"}}
	r := New()
	assert.Error(t, r.ValidateComplete(cat))

	r.SetRevisionNumber(3)
	require.NoError(t, r.SetTargetRevision("gcc", "linux_x86", samplePackage("aa")))
	err := r.ValidateComplete(cat)
	assert.True(t, syncerr.Is(err, syncerr.UnknownPackage))

	require.NoError(t, r.SetTargetRevision("gcc", "mac_x86", samplePackage("bb")))
	assert.NoError(t, r.ValidateComplete(cat))
}
