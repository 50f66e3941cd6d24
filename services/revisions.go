package services

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"pkgsync/internal/catalog"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/revision"
	"pkgsync/internal/syncerr"
)

/**
 * Fetch the remote package descriptor of one pair at a revision
 * @param {context.Context} ctx - Transfer context
 * @param {string} revisionLabel - Revision, "" for the unversioned descriptor
 * @param {locations.TargetPackage} tp - Package to fetch
 * @returns {*pkginfo.Package} The parsed descriptor
 * @returns {error} UnknownPackage when the store has no such descriptor
 */
func (e *SyncEngine) FetchRemotePackage(ctx context.Context, revisionLabel string, tp locations.TargetPackage) (*pkginfo.Package, error) {
	if err := e.requireStore("fetch package"); err != nil {
		return nil, err
	}
	key := locations.RemotePackageKey(e.opts.IsShared(tp.Package), revisionLabel, tp.Target, tp.Package)
	workDir, err := os.MkdirTemp("", "pkgsync-fetch-")
	if err != nil {
		return nil, syncerr.New(syncerr.IOError, "fetch package", key, err)
	}
	defer os.RemoveAll(workDir)

	tmp := filepath.Join(workDir, path.Base(key)+fileutil.TempSuffix)
	if err := e.store.Get(ctx, e.store.URL(key), tmp); err != nil {
		if syncerr.IsNotFound(err) {
			return nil, syncerr.New(syncerr.UnknownPackage, "fetch package", key, err)
		}
		return nil, transferError("fetch package", key, err)
	}
	return pkginfo.Load(tmp, false)
}

/**
 * Sync the tar cache of every pair, then optionally extract
 * @param {context.Context} ctx - Transfer context
 * @param {[]locations.TargetPackage} pairs - Packages to sync
 * @param {string} revisionLabel - Remote revision, "" to use the revision files
 * @param {bool} includeLogs - Also fetch archive logs
 * @param {bool} extract - Extract into the destination tree afterwards
 * @returns {error} Returns the first failure, earlier pairs stay synced
 */
func (e *SyncEngine) Sync(ctx context.Context, pairs []locations.TargetPackage, revisionLabel string, includeLogs, extract bool) error {
	for _, tp := range pairs {
		var desired *pkginfo.Package
		label := revisionLabel
		if revisionLabel == "" {
			rev, err := revision.Load(locations.RevisionFile(e.opts.RevisionsDir, tp.Package), false)
			if err != nil {
				return err
			}
			if desired, err = rev.GetPackageInfo(tp.Target); err != nil {
				return err
			}
			if n, ok := rev.RevisionNumber(); ok {
				label = strconv.Itoa(n)
			}
		} else {
			var err error
			if desired, err = e.FetchRemotePackage(ctx, revisionLabel, tp); err != nil {
				return err
			}
		}
		if _, err := e.Download(ctx, tp, desired, label, includeLogs); err != nil {
			return err
		}
	}

	if err := fileutil.CleanTempFiles(e.opts.TarDir); err != nil {
		return syncerr.New(syncerr.IOError, "clean temp files", e.opts.TarDir, err)
	}
	if extract {
		return e.Extract(ctx, pairs, false)
	}
	return nil
}

/**
 * Pin a package to a revision number
 * @param {context.Context} ctx - Transfer context
 * @param {string} name - Package name, or TARGET/PACKAGE to pin one target
 * @param {int} number - Revision number to snapshot
 * @returns {string} Path of the saved revision file
 * @returns {error} UnknownPackage when the package or a remote descriptor is unknown
 * @description
 * - Snapshots the remote descriptor of every target of the package
 * - A plain package name must cover every catalog target before saving
 */
func (e *SyncEngine) SetRevision(ctx context.Context, name string, number int) (string, error) {
	pkgName := name
	var targets []string
	custom, isCustom := catalog.SplitCustomPackage(name)
	if isCustom {
		pkgName = custom.Package
		targets = []string{custom.Target}
	} else {
		targets = e.opts.TargetsForPackage(name)
	}
	if len(targets) == 0 {
		return "", syncerr.Newf(syncerr.UnknownPackage, "setrevision", name, "no package targets for package")
	}

	rev := revision.New()
	rev.SetRevisionNumber(number)
	label := strconv.Itoa(number)
	for _, target := range targets {
		tp := locations.TargetPackage{Target: target, Package: pkgName}
		pkg, err := e.FetchRemotePackage(ctx, label, tp)
		if err != nil {
			return "", err
		}
		logger.Infof("Setting %s:%s to revision %s", target, pkgName, label)
		if err := rev.SetTargetRevision(pkgName, target, pkg); err != nil {
			return "", err
		}
	}
	if !isCustom {
		if err := rev.ValidateComplete(e.opts); err != nil {
			return "", err
		}
	}

	revFile := locations.RevisionFile(e.opts.RevisionsDir, pkgName)
	if err := rev.Save(revFile); err != nil {
		return "", err
	}
	if err := fileutil.CleanTempFiles(e.opts.RevisionsDir); err != nil {
		return "", syncerr.New(syncerr.IOError, "clean temp files", e.opts.RevisionsDir, err)
	}
	return revFile, nil
}

// GetRevision reads the pinned revision number of a package. A
// TARGET/PACKAGE name is reduced to its package.
func (e *SyncEngine) GetRevision(name string) (int, error) {
	pkgName := name
	if custom, ok := catalog.SplitCustomPackage(name); ok {
		pkgName = custom.Package
	}
	revFile := locations.RevisionFile(e.opts.RevisionsDir, pkgName)
	if !fileutil.IsFile(revFile) {
		return 0, syncerr.Newf(syncerr.UnknownPackage, "getrevision", revFile, "no revision set for package: %s", pkgName)
	}
	rev, err := revision.Load(revFile, false)
	if err != nil {
		return 0, err
	}
	n, ok := rev.RevisionNumber()
	if !ok {
		return 0, syncerr.Newf(syncerr.MalformedDescriptor, "getrevision", revFile, "revision number missing")
	}
	return n, nil
}

// RecalcRevisions rewrites every revision file with a freshly computed
// revision hash and returns the files it touched.
func (e *SyncEngine) RecalcRevisions() ([]string, error) {
	entries, err := os.ReadDir(e.opts.RevisionsDir)
	if err != nil {
		return nil, syncerr.New(syncerr.IOError, "recalcrevisions", e.opts.RevisionsDir, err)
	}
	var rewritten []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		revFile := filepath.Join(e.opts.RevisionsDir, entry.Name())
		rev, err := revision.Load(revFile, true)
		if err != nil {
			return rewritten, err
		}
		if err := rev.Save(revFile); err != nil {
			return rewritten, err
		}
		logger.Debugf("Recalculated revision file: %s", revFile)
		rewritten = append(rewritten, revFile)
	}
	return rewritten, nil
}
