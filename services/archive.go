package services

import (
	"os"
	"path/filepath"

	"pkgsync/internal/archive"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
)

/**
 * Publish build outputs into the canonical local package
 * @param {locations.TargetPackage} tp - Package being archived
 * @param {[]string} specs - Required archive specs, path[,srcdir[:extractdir]][@url[,logurl]]
 * @param {[]string} extraSpecs - Archive specs built elsewhere, skipped when missing
 * @returns {string} Local package file, "" when the cached package already matched
 * @returns {error} InvalidInput for bad or missing required specs, IOError on copy failures
 * @description
 * - Leftovers from previous builds are pruned from the archive directory
 * - When the cached descriptor is identical to the candidate nothing is copied
 * - Otherwise every archive is copied in, then the descriptor is saved
 */
func (e *SyncEngine) Archive(tp locations.TargetPackage, specs, extraSpecs []string) (string, error) {
	localFile := locations.LocalPackageFile(e.opts.TarDir, tp.Target, tp.Package)

	candidate := pkginfo.New()
	valid := map[string]bool{}
	var sources []string
	addSpec := func(raw string, optional bool) error {
		spec, err := archive.ParseSpec(raw)
		if err != nil {
			return syncerr.New(syncerr.InvalidInput, "archive", raw, err)
		}
		a := archive.FromSpec(spec, e.opts.Algorithm)
		candidate.Append(a)
		if !a.Hash.Known() {
			if optional {
				logger.Infof("Skipping archival of missing file: %s", spec.Path)
				return nil
			}
			return syncerr.Newf(syncerr.InvalidInput, "archive", spec.Path, "invalid package: archive file is missing")
		}
		sources = append(sources, spec.Path)
		valid[a.Name] = true
		valid[a.Name+".json"] = true
		return nil
	}
	for _, raw := range specs {
		if err := addSpec(raw, false); err != nil {
			return "", err
		}
	}
	for _, raw := range extraSpecs {
		if err := addSpec(raw, true); err != nil {
			return "", err
		}
	}
	if err := candidate.Validate(true); err != nil {
		return "", syncerr.New(syncerr.InvalidInput, "archive", tp.String(), err)
	}

	archiveDir := locations.LocalArchiveDir(e.opts.TarDir, tp.Target, tp.Package)
	if err := pruneArchiveDir(archiveDir, valid); err != nil {
		return "", err
	}

	res := pkginfo.LoadLocal(localFile, true)
	if res.State == pkginfo.Loaded && res.Package.Identical(candidate) {
		logger.Debugf("Package %s already archived: %s", tp, localFile)
		return "", nil
	}
	if res.State == pkginfo.Corrupt {
		logger.Warnf("Replacing untrusted package file %s: %v", localFile, res.Err)
	}

	for _, src := range sources {
		dest := e.archiveFile(tp, filepath.Base(src))
		logger.Infof("Archiving file: %s", src)
		if err := fileutil.CopyFile(src, dest); err != nil {
			return "", syncerr.New(syncerr.IOError, "archive", src, err)
		}
	}
	if err := candidate.Save(localFile); err != nil {
		return "", err
	}
	logger.Infof("Package \"%s\" archived: %s", tp.Package, localFile)
	return localFile, nil
}

// pruneArchiveDir deletes every entry of dir whose name is not in keep.
func pruneArchiveDir(dir string, keep map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return syncerr.New(syncerr.IOError, "prune archives", dir, err)
	}
	for _, entry := range entries {
		if keep[entry.Name()] {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		logger.Debugf("Removing stale archive entry: %s", p)
		if err := fileutil.RemoveDir(p); err != nil {
			return syncerr.New(syncerr.IOError, "prune archives", p, err)
		}
	}
	return nil
}
