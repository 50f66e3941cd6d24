package config

import (
	"path/filepath"

	"pkgsync/internal/archive"
	"pkgsync/internal/catalog"
	"pkgsync/internal/locations"
)

// Options is the per-invocation view of the command line and configuration.
// It is built once by the CLI and handed to the sync engine by value; nothing
// below the CLI reads flags or mutates it.
type Options struct {
	TarDir       string
	DestDir      string
	RevisionsDir string
	Annotate     bool
	Quiet        bool
	Algorithm    archive.Algorithm
	Catalog      *catalog.Catalog
	Pairs        []locations.TargetPackage
}

// DefaultTarDir is the cache directory used when --tar-dir is not given.
func DefaultTarDir(destDir string) string {
	return filepath.Join(destDir, ".tars")
}

// IsShared reports whether name is shared by every target in the catalog.
func (o Options) IsShared(name string) bool {
	return o.Catalog != nil && o.Catalog.IsShared(name)
}

// TargetsForPackage lists the catalog targets of name.
func (o Options) TargetsForPackage(name string) []string {
	if o.Catalog == nil {
		return nil
	}
	return o.Catalog.TargetsForPackage(name)
}
