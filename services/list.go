package services

import (
	"io"
	"strconv"

	"pkgsync/internal/locations"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/revision"
	"pkgsync/internal/utils"

	"github.com/iancoleman/orderedmap"
)

/**
 *	Fields displayed by the list command
 */
type PackageColumns struct {
	Target   string `json:"target"`
	Package  string `json:"package"`
	Shared   bool   `json:"shared"`
	Revision string `json:"revision"`
	Cached   string `json:"cached"`
}

/**
 * Describe every selected pair: revision pin and tar cache state
 * @param {[]locations.TargetPackage} pairs - Pairs to describe
 * @returns {[]PackageColumns} One row per pair, in pair order
 */
func (e *SyncEngine) Describe(pairs []locations.TargetPackage) []PackageColumns {
	rows := make([]PackageColumns, 0, len(pairs))
	for _, tp := range pairs {
		row := PackageColumns{
			Target:  tp.Target,
			Package: tp.Package,
			Shared:  e.opts.IsShared(tp.Package),
		}
		if rev, err := revision.Load(locations.RevisionFile(e.opts.RevisionsDir, tp.Package), false); err == nil {
			if n, ok := rev.RevisionNumber(); ok {
				row.Revision = strconv.Itoa(n)
			}
		}
		res := pkginfo.LoadLocal(locations.LocalPackageFile(e.opts.TarDir, tp.Target, tp.Package), true)
		switch res.State {
		case pkginfo.Loaded:
			row.Cached = strconv.Itoa(res.Package.Len()) + " archives"
		default:
			row.Cached = res.State.String()
		}
		rows = append(rows, row)
	}
	return rows
}

// List prints the Describe rows as a table.
func (e *SyncEngine) List(w io.Writer, pairs []locations.TargetPackage) error {
	var dataList []*orderedmap.OrderedMap
	for _, row := range e.Describe(pairs) {
		recordMap, err := utils.StructToOrderedMap(row)
		if err != nil {
			return err
		}
		dataList = append(dataList, recordMap)
	}
	utils.FprintFormat(w, dataList)
	return nil
}
