package services

import (
	"context"
	"fmt"
	"io"
	"os"

	"pkgsync/internal/archive"
	"pkgsync/internal/config"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/storage"
	"pkgsync/internal/syncerr"
	"pkgsync/internal/tarball"
)

/**
 * Sync engine keeps the tar cache, the blob store, the destination tree
 * and the revision files consistent
 * @description
 * - Every operation works on (target, package) pairs strictly one after
 *   another; a pair is fully finished, descriptor write included, before
 *   the next one starts
 * - Options are fixed at construction, nothing is read from flags or globals
 */
type SyncEngine struct {
	opts    config.Options
	store   storage.BlobStore
	codec   tarball.Codec
	metrics *SyncMetrics

	// Stdout receives build-bot annotations.
	Stdout io.Writer
}

/**
 * Create a sync engine
 * @param {config.Options} opts - Directories, flags and catalog of this run
 * @param {storage.BlobStore} store - Remote side, may be nil for purely local commands
 * @param {tarball.Codec} codec - Archive codec, nil selects tarball.Default
 * @param {*SyncMetrics} metrics - Optional counters
 * @returns {*SyncEngine} Returns the engine
 */
func NewSyncEngine(opts config.Options, store storage.BlobStore, codec tarball.Codec, metrics *SyncMetrics) *SyncEngine {
	if codec == nil {
		codec = tarball.Default
	}
	if opts.Algorithm == "" {
		opts.Algorithm = archive.DefaultAlgorithm
	}
	return &SyncEngine{
		opts:    opts,
		store:   store,
		codec:   codec,
		metrics: metrics,
		Stdout:  os.Stdout,
	}
}

// Options returns the configuration the engine was built with.
func (e *SyncEngine) Options() config.Options {
	return e.opts
}

func (e *SyncEngine) hashFile(path string) archive.Hash {
	return e.opts.Algorithm.File(path)
}

func (e *SyncEngine) requireStore(op string) error {
	if e.store == nil {
		return syncerr.Newf(syncerr.InvalidInput, op, "", "no blob store configured")
	}
	return nil
}

func (e *SyncEngine) annotatef(format string, args ...any) {
	if !e.opts.Annotate || e.Stdout == nil {
		return
	}
	fmt.Fprintf(e.Stdout, format+"\n", args...)
}

func (e *SyncEngine) archiveFile(tp locations.TargetPackage, name string) string {
	return locations.LocalArchiveFile(e.opts.TarDir, tp.Target, tp.Package, name)
}

// transferError keeps store errors that already carry a kind and files
// everything else under TransferFailure.
func transferError(op, ref string, err error) error {
	if syncerr.KindOf(err) != "" {
		return err
	}
	return syncerr.New(syncerr.TransferFailure, op, ref, err)
}

/**
 * Fetch one archive and move it into place only once its digest matches
 * @param {context.Context} ctx - Transfer context
 * @param {archive.Archive} a - Archive with URL and expected hash
 * @param {string} dest - Canonical local archive path
 * @returns {error} TransferFailure, HashMismatch or IOError
 * @description
 * - The bytes land in dest + ".tmp" first, a failed or corrupt transfer
 *   never replaces the file already at dest
 */
func (e *SyncEngine) fetchVerified(ctx context.Context, a archive.Archive, dest string) error {
	if err := e.requireStore("download"); err != nil {
		return err
	}
	if err := fileutil.MakeParentDir(dest); err != nil {
		return syncerr.New(syncerr.IOError, "download", dest, err)
	}
	tmp := dest + fileutil.TempSuffix
	if err := e.store.Get(ctx, a.URL, tmp); err != nil {
		_ = fileutil.RemoveFile(tmp)
		return transferError("download", a.URL, err)
	}
	got := e.hashFile(tmp)
	if !got.Matches(a.Hash) {
		_ = fileutil.RemoveFile(tmp)
		e.metrics.HashMismatch()
		return syncerr.Newf(syncerr.HashMismatch, "download", dest,
			"package hash check failed: %s != %s", got, a.Hash)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = fileutil.RemoveFile(tmp)
		return syncerr.New(syncerr.IOError, "download", dest, err)
	}
	logger.Debugf("Verified %s (%s)", dest, got)
	return nil
}
