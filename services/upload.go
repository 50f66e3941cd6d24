package services

import (
	"context"
	"os"
	"path/filepath"

	"pkgsync/internal/fileutil"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
)

/**
 * Publish a local package to the blob store
 * @param {context.Context} ctx - Transfer context
 * @param {string} revisionLabel - Revision the descriptor is stored under, "" for the unversioned key
 * @param {locations.TargetPackage} tp - Package to upload
 * @param {bool} skipMissing - Tolerate archives without a hash
 * @param {string} customFile - Package file to upload instead of the cached one
 * @returns {string} Remote key of the uploaded package descriptor
 * @returns {error} HashMismatch, IOError or TransferFailure
 * @description
 * - Archives without a URL are verified against the descriptor and stored
 *   under their content-addressed key with overwrite allowed
 * - Local logs without a log URL are stored next to them
 * - The resolved descriptor is written to a private temp dir and uploaded
 */
func (e *SyncEngine) Upload(ctx context.Context, revisionLabel string, tp locations.TargetPackage, skipMissing bool, customFile string) (string, error) {
	if err := e.requireStore("upload"); err != nil {
		return "", err
	}
	localFile := customFile
	if localFile == "" {
		localFile = locations.LocalPackageFile(e.opts.TarDir, tp.Target, tp.Package)
	}
	pkg, err := pkginfo.Load(localFile, skipMissing)
	if err != nil {
		return "", err
	}

	uploadPkg := pkginfo.New()
	for _, a := range pkg.Archives() {
		localArchive := e.archiveFile(tp, a.Name)
		if a.Hash.Known() && a.URL == "" {
			e.annotatef("@@@BUILD_STEP Archive:%s (upload)@@@", a.Name)
			got := e.hashFile(localArchive)
			if !got.Known() {
				return "", syncerr.Newf(syncerr.IOError, "upload", localArchive, "missing archive file")
			}
			if !got.Matches(a.Hash) {
				e.metrics.HashMismatch()
				return "", syncerr.Newf(syncerr.HashMismatch, "upload", localArchive,
					"archive hash does not match package hash: archive %s, package %s", got, a.Hash)
			}
			logger.Warnf("Missing archive URL: %s", a.Name)
			logger.Warnf("Uploading archive to be publicly available...")
			key := locations.RemoteArchiveKey(a.Name, a.Hash)
			url, err := e.store.Put(ctx, localArchive, key, true)
			if err != nil {
				return "", transferError("upload", key, err)
			}
			e.annotatef("@@@STEP_LINK@download@%s@@@", url)
			e.metrics.ArchiveUploaded()
			a = a.WithURL(url)
		}
		if a.Hash.Known() && a.LogURL == "" {
			logFile := locations.LocalArchiveLogFile(localArchive)
			if fileutil.IsFile(logFile) {
				key := locations.RemoteLogKey(a.Name, a.Hash)
				logger.Infof("Uploading archive log: %s", logFile)
				url, err := e.store.Put(ctx, logFile, key, true)
				if err != nil {
					return "", transferError("upload-log", key, err)
				}
				a = a.WithLogURL(url)
			}
		}
		uploadPkg.Append(a)
	}

	workDir, err := os.MkdirTemp("", "pkgsync-upload-")
	if err != nil {
		return "", syncerr.New(syncerr.IOError, "upload", "", err)
	}
	defer os.RemoveAll(workDir)
	uploadFile := filepath.Join(workDir, tp.Package+".json")
	if err := uploadPkg.Save(uploadFile); err != nil {
		return "", err
	}

	key := locations.RemotePackageKey(e.opts.IsShared(tp.Package), revisionLabel, tp.Target, tp.Package)
	logger.Infof("Uploading package information: %s", tp.Package)
	url, err := e.store.Put(ctx, uploadFile, key, true)
	if err != nil {
		return "", transferError("upload", key, err)
	}
	e.annotatef("@@@STEP_LINK@download@%s@@@", url)
	return key, nil
}
