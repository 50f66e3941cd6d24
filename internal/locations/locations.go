// Package locations maps package targets, package names and archive names to
// local cache paths and remote blob keys. Every other component derives its
// paths from here.
package locations

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"pkgsync/internal/archive"
)

// SharedTarget replaces the package target in remote keys of packages that
// are the same for every target.
const SharedTarget = "shared"

const (
	archivesPrefix = "archives"
	logsPrefix     = "logs"
	packagesPrefix = "packages"
	jsonExt        = ".json"
	logExt         = ".log"
)

// TargetPackage is one (package target, package name) pair.
type TargetPackage struct {
	Target  string
	Package string
}

func (tp TargetPackage) String() string {
	return tp.Target + "/" + tp.Package
}

// LocalPackageFile is {tarDir}/{target}/{name}.json.
func LocalPackageFile(tarDir, target, name string) string {
	return filepath.Join(tarDir, target, name+jsonExt)
}

// LocalArchiveDir is {tarDir}/{target}/{name}.
func LocalArchiveDir(tarDir, target, name string) string {
	return filepath.Join(tarDir, target, name)
}

// LocalArchiveFile is {tarDir}/{target}/{name}/{archiveName}.
func LocalArchiveFile(tarDir, target, name, archiveName string) string {
	return filepath.Join(LocalArchiveDir(tarDir, target, name), archiveName)
}

// LocalArchiveLogFile returns the log companion of an archive file: the
// archive path with its last extension replaced by ".log".
func LocalArchiveLogFile(archiveFile string) string {
	return strings.TrimSuffix(archiveFile, filepath.Ext(archiveFile)) + logExt
}

// DestPackageDir is where a package gets extracted: {destDir}/{target}/{name}.
func DestPackageDir(destDir, target, name string) string {
	return filepath.Join(destDir, target, name)
}

// DestPackageFile is the extraction marker {destDir}/{target}/{name}.json.
func DestPackageFile(destDir, target, name string) string {
	return filepath.Join(destDir, target, name+jsonExt)
}

// RevisionFile is {revisionsDir}/{name}.json.
func RevisionFile(revisionsDir, name string) string {
	return filepath.Join(revisionsDir, name+jsonExt)
}

// RemoteArchiveKey is the content-addressed key archives/{name}/{hash}.
func RemoteArchiveKey(name string, hash archive.Hash) string {
	return path.Join(archivesPrefix, name, string(hash))
}

// RemoteLogKey is the content-addressed key logs/{name}/{hash}.log.
func RemoteLogKey(name string, hash archive.Hash) string {
	return path.Join(logsPrefix, name, string(hash)+logExt)
}

// RemotePackageKey is packages/{target|shared}/{name}/{revision}.json, or
// packages/{target|shared}/{name}.json when revision is empty.
func RemotePackageKey(shared bool, revision, target, name string) string {
	segment := target
	if shared {
		segment = SharedTarget
	}
	if revision == "" {
		return path.Join(packagesPrefix, segment, name+jsonExt)
	}
	return path.Join(packagesPrefix, segment, name, revision+jsonExt)
}

// ValidateName rejects target and package names that cannot be used as a
// single path segment.
func ValidateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is empty", kind)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%s name '%s' must be a single path segment", kind, name)
	}
	return nil
}
