package services

import (
	"pkgsync/internal/archive"
	"pkgsync/internal/locations"
	"pkgsync/internal/logger"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
	"pkgsync/internal/tarball"
)

// FillEmptyTars replaces every archive without a hash by an empty archive of
// the same name and rewrites the package files. Filled archives keep only
// their name and the hash of the empty file.
func (e *SyncEngine) FillEmptyTars(pairs []locations.TargetPackage) error {
	for _, tp := range pairs {
		pkgFile := locations.LocalPackageFile(e.opts.TarDir, tp.Target, tp.Package)
		pkg, err := pkginfo.Load(pkgFile, true)
		if err != nil {
			return err
		}
		out := pkginfo.New()
		for _, a := range pkg.Archives() {
			if a.Hash.Known() {
				out.Append(a)
				continue
			}
			logger.Infof("Filling missing archive: %s.", a.Name)
			localArchive := e.archiveFile(tp, a.Name)
			if err := tarball.CreateEmpty(e.codec, localArchive); err != nil {
				return syncerr.New(syncerr.InvalidInput, "fillemptytars", localArchive, err)
			}
			out.Append(archive.Archive{Name: a.Name, Hash: e.hashFile(localArchive)})
		}
		if err := out.Save(pkgFile); err != nil {
			return err
		}
	}
	return nil
}
