package services

import (
	"context"
	"sort"

	"pkgsync/internal/archive"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
)

/**
 * Bring the tar cache of one package in line with a desired descriptor
 * @param {context.Context} ctx - Transfer context
 * @param {locations.TargetPackage} tp - Package to sync
 * @param {*pkginfo.Package} desired - Descriptor fetched remotely or taken from a revision
 * @param {string} revisionLabel - Revision shown in logs, may be empty
 * @param {bool} includeLogs - Also fetch archive logs that are not present locally
 * @returns {[]string} Paths of the archives that were transferred
 * @returns {error} MissingSourceURL, TransferFailure, HashMismatch or IOError
 * @description
 * - An untrusted local descriptor wipes the cached package first
 * - Archives already present with the desired hash are never touched
 * - Cached archives absent from the desired set are deleted with their logs
 * - The descriptor is written only when something changed, so an
 *   unchanged sync performs no writes at all
 */
func (e *SyncEngine) Download(ctx context.Context, tp locations.TargetPackage, desired *pkginfo.Package, revisionLabel string, includeLogs bool) ([]string, error) {
	if err := desired.Validate(false); err != nil {
		return nil, syncerr.New(syncerr.MalformedDescriptor, "download", tp.String(), err)
	}
	localFile := locations.LocalPackageFile(e.opts.TarDir, tp.Target, tp.Package)
	oldArchives, err := e.cachedArchives(tp, localFile)
	if err != nil {
		return nil, err
	}

	var updates []archive.Archive
	for _, a := range desired.Archives() {
		if oldHash, ok := oldArchives[a.Name]; ok {
			delete(oldArchives, a.Name)
			if a.Hash.Matches(oldHash) {
				logger.Debugf("Skipping matching archive: %s", a.Name)
				e.metrics.ArchiveSkipped()
				continue
			}
		}
		updates = append(updates, a)
	}

	var downloaded []string
	if len(updates) > 0 {
		logger.Infof("--Syncing %s to revision %s--", tp, displayRevision(revisionLabel))
		for i, a := range updates {
			if a.URL == "" {
				return downloaded, syncerr.Newf(syncerr.MissingSourceURL, "download", a.Name, "no URL for archive")
			}
			localArchive := e.archiveFile(tp, a.Name)
			logger.Infof("Downloading package archive: %s (%d/%d)", a.Name, i+1, len(updates))
			if err := e.fetchVerified(ctx, a, localArchive); err != nil {
				return downloaded, err
			}
			if err := fileutil.RemoveFile(locations.LocalArchiveLogFile(localArchive)); err != nil {
				return downloaded, syncerr.New(syncerr.IOError, "download", localArchive, err)
			}
			e.metrics.ArchiveDownloaded()
			downloaded = append(downloaded, localArchive)
		}
	}

	if includeLogs {
		if err := e.downloadLogs(ctx, tp, desired); err != nil {
			return downloaded, err
		}
	}

	stale := make([]string, 0, len(oldArchives))
	for name := range oldArchives {
		stale = append(stale, name)
	}
	sort.Strings(stale)
	for _, name := range stale {
		localArchive := e.archiveFile(tp, name)
		logger.Debugf("Removing stale archive: %s", localArchive)
		if err := fileutil.RemoveFile(localArchive); err != nil {
			return downloaded, syncerr.New(syncerr.IOError, "remove stale archive", localArchive, err)
		}
		if err := fileutil.RemoveFile(locations.LocalArchiveLogFile(localArchive)); err != nil {
			return downloaded, syncerr.New(syncerr.IOError, "remove stale archive", localArchive, err)
		}
	}

	if len(updates) > 0 || len(stale) > 0 {
		if err := desired.Save(localFile); err != nil {
			return downloaded, err
		}
	}
	return downloaded, nil
}

// cachedArchives hashes the archives the local descriptor claims to have.
// Archives whose file is gone are left out. A corrupt descriptor wipes the
// cached package and yields an empty map.
func (e *SyncEngine) cachedArchives(tp locations.TargetPackage, localFile string) (map[string]archive.Hash, error) {
	old := make(map[string]archive.Hash)
	res := pkginfo.LoadLocal(localFile, false)
	switch res.State {
	case pkginfo.Loaded:
		for _, a := range res.Package.Archives() {
			if h := e.hashFile(e.archiveFile(tp, a.Name)); h.Known() {
				old[a.Name] = h
			}
		}
	case pkginfo.Corrupt:
		logger.Warnf("Local package %s cannot be trusted, rebuilding: %v", tp, res.Err)
		e.metrics.CacheInvalidated("tar")
		if err := fileutil.RemoveFile(localFile); err != nil {
			return nil, syncerr.New(syncerr.IOError, "invalidate cache", localFile, err)
		}
		archiveDir := locations.LocalArchiveDir(e.opts.TarDir, tp.Target, tp.Package)
		if err := fileutil.RemoveDir(archiveDir); err != nil {
			return nil, syncerr.New(syncerr.IOError, "invalidate cache", archiveDir, err)
		}
	}
	return old, nil
}

func (e *SyncEngine) downloadLogs(ctx context.Context, tp locations.TargetPackage, desired *pkginfo.Package) error {
	type pendingLog struct {
		name, url, path string
	}
	var pending []pendingLog
	for _, a := range desired.Archives() {
		if a.LogURL == "" {
			continue
		}
		logFile := locations.LocalArchiveLogFile(e.archiveFile(tp, a.Name))
		if !fileutil.IsFile(logFile) {
			pending = append(pending, pendingLog{a.Name, a.LogURL, logFile})
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if err := e.requireStore("download-log"); err != nil {
		return err
	}
	logger.Infof("--Syncing %s Logs--", tp)
	for i, l := range pending {
		logger.Infof("Downloading archive log: %s (%d/%d)", l.name, i+1, len(pending))
		if err := e.store.Get(ctx, l.url, l.path); err != nil {
			return syncerr.New(syncerr.TransferFailure, "download-log", l.url, err)
		}
	}
	return nil
}

func displayRevision(label string) string {
	if label == "" {
		return "(none)"
	}
	return label
}
