package services

import (
	"context"
	"path/filepath"

	"pkgsync/internal/archive"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
	"pkgsync/internal/tarball"
)

const scratchDirName = ".tmp"

/**
 * Materialize cached packages into the destination tree
 * @param {context.Context} ctx - Transfer context for re-downloads
 * @param {[]locations.TargetPackage} pairs - Packages to extract, in order
 * @param {bool} skipMissing - Skip archives that are absent and have no URL
 * @returns {error} MissingSourceURL, HashMismatch, TransferFailure or IOError
 * @description
 * - A destination marker equal to the cached descriptor skips the package
 * - Otherwise the destination package is removed and rebuilt from scratch
 * - Archives that fail verification are re-downloaded when they have a URL
 * - The marker is written last, after every archive was extracted
 */
func (e *SyncEngine) Extract(ctx context.Context, pairs []locations.TargetPackage, skipMissing bool) error {
	for _, tp := range pairs {
		if err := e.extractPackage(ctx, tp, skipMissing); err != nil {
			return err
		}
	}
	return nil
}

func (e *SyncEngine) extractPackage(ctx context.Context, tp locations.TargetPackage, skipMissing bool) error {
	pkgFile := locations.LocalPackageFile(e.opts.TarDir, tp.Target, tp.Package)
	pkg, err := pkginfo.Load(pkgFile, skipMissing)
	if err != nil {
		return err
	}
	destPkgDir := locations.DestPackageDir(e.opts.DestDir, tp.Target, tp.Package)
	marker := locations.DestPackageFile(e.opts.DestDir, tp.Target, tp.Package)

	// 标记文件可能记录了跳过的归档(hash为null)，由Equals比较名称和hash
	res := pkginfo.LoadLocal(marker, true)
	switch res.State {
	case pkginfo.Loaded:
		if res.Package.Equals(pkg) {
			logger.Debugf("Skipping extraction for package (%s)", tp)
			return nil
		}
	case pkginfo.Corrupt:
		logger.Warnf("Destination package file cannot be trusted, re-extracting: %v", res.Err)
		e.metrics.CacheInvalidated("dest")
	}
	if err := fileutil.RemoveFile(marker); err != nil {
		return syncerr.New(syncerr.IOError, "extract", marker, err)
	}
	if fileutil.IsDir(destPkgDir) {
		logger.Debugf("Deleting old package directory: %s", destPkgDir)
		if err := fileutil.RemoveDir(destPkgDir); err != nil {
			return syncerr.New(syncerr.IOError, "extract", destPkgDir, err)
		}
	}

	logger.Infof("Extracting package (%s) to directory: %s", tp, destPkgDir)
	archives := pkg.Archives()
	for i, a := range archives {
		localArchive := e.archiveFile(tp, a.Name)
		if !e.hashFile(localArchive).Matches(a.Hash) {
			skip, err := e.repairArchive(ctx, a, localArchive, skipMissing)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
		}
		logger.Infof("Extracting %s (%d/%d)", a.Name, i+1, len(archives))
		if err := e.extractArchive(localArchive, filepath.Join(destPkgDir, a.ExtractDir), a.TarSrcDir); err != nil {
			return err
		}
	}

	if err := pkg.Save(marker); err != nil {
		return err
	}
	e.metrics.PackageExtracted()
	return nil
}

// repairArchive re-fetches an archive that is missing or does not match its
// descriptor. skip is true when the archive should be left out.
func (e *SyncEngine) repairArchive(ctx context.Context, a archive.Archive, localArchive string, skipMissing bool) (bool, error) {
	if a.URL == "" {
		if skipMissing {
			logger.Infof("Skipping extraction of missing archive: %s", localArchive)
			return true, nil
		}
		if !fileutil.IsFile(localArchive) {
			return false, syncerr.Newf(syncerr.MissingSourceURL, "extract", localArchive, "archive is missing and has no URL")
		}
		e.metrics.HashMismatch()
		return false, syncerr.Newf(syncerr.HashMismatch, "extract", localArchive, "archive does not match its hash and has no URL")
	}
	logger.Warnf("Expected archive missing, downloading: %s", a.Name)
	if err := e.fetchVerified(ctx, a, localArchive); err != nil {
		return false, err
	}
	e.metrics.ArchiveDownloaded()
	return false, nil
}

/**
 * Extract one archive into dest through a scratch directory
 * @param {string} archiveFile - Verified local archive
 * @param {string} dest - Destination directory (package dir joined with extract_dir)
 * @param {string} srcDir - Subtree of the archive to keep, "" for all of it
 * @returns {error} IOError, wrapping tarball.ErrUnsafePath for escaping entries
 * @description
 * - The scratch dir is dest/.tmp, removed before and after use
 * - The selected subtree is merged into dest, replacing existing entries
 */
func (e *SyncEngine) extractArchive(archiveFile, dest, srcDir string) (err error) {
	scratch := filepath.Join(dest, scratchDirName)
	if err := fileutil.RemoveDir(scratch); err != nil {
		return syncerr.New(syncerr.IOError, "extract", scratch, err)
	}
	defer func() {
		if rmErr := fileutil.RemoveDir(scratch); rmErr != nil && err == nil {
			err = syncerr.New(syncerr.IOError, "extract", scratch, rmErr)
		}
	}()

	if err := tarball.ExtractFile(e.codec, archiveFile, scratch); err != nil {
		return syncerr.New(syncerr.IOError, "extract", archiveFile, err)
	}
	if err := fileutil.MoveAndMergeDirTree(filepath.Join(scratch, srcDir), dest); err != nil {
		return syncerr.New(syncerr.IOError, "extract", archiveFile, err)
	}
	return nil
}
