// Package revision manages revision files: the pinned snapshot of one package
// across all of its package targets at a chosen revision number.
package revision

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"pkgsync/internal/fileutil"
	"pkgsync/internal/pkginfo"
	"pkgsync/internal/syncerr"
)

// TargetLister reports the package targets a package is built for.
type TargetLister interface {
	TargetsForPackage(name string) []string
}

// Revision pins one package name to a revision number and records the
// package snapshot of every target at that revision.
type Revision struct {
	packageName string
	number      int
	hasNumber   bool
	targets     map[string]*pkginfo.Package
}

// revisionBody holds the fields covered by revision_hash. encoding/json
// emits map keys sorted, which keeps the digest stable.
type revisionBody struct {
	PackageName string                      `json:"package_name"`
	Revision    int                         `json:"revision"`
	Packages    map[string]*pkginfo.Package `json:"packages"`
}

type revisionJSON struct {
	PackageName  string                      `json:"package_name"`
	Revision     *int                        `json:"revision"`
	Packages     map[string]*pkginfo.Package `json:"packages"`
	RevisionHash string                      `json:"revision_hash"`
}

// New returns an empty revision.
func New() *Revision {
	return &Revision{targets: map[string]*pkginfo.Package{}}
}

// PackageName returns the package this revision pins, or "" when no target
// has been set yet.
func (r *Revision) PackageName() string {
	return r.packageName
}

// SetRevisionNumber sets the revision all targets are pinned at.
func (r *Revision) SetRevisionNumber(n int) {
	r.number = n
	r.hasNumber = true
}

// RevisionNumber returns the pinned revision and whether one was set.
func (r *Revision) RevisionNumber() (int, bool) {
	return r.number, r.hasNumber
}

// SetTargetRevision records the snapshot of packageName for target. A
// revision covers a single package name, so a different name is rejected.
func (r *Revision) SetTargetRevision(packageName, target string, pkg *pkginfo.Package) error {
	if r.packageName == "" {
		r.packageName = packageName
	} else if r.packageName != packageName {
		return syncerr.Newf(syncerr.InvalidInput, "set target revision", target,
			"revision is for package '%s', not '%s'", r.packageName, packageName)
	}
	r.targets[target] = pkg
	return nil
}

// GetPackageInfo returns the snapshot recorded for target.
func (r *Revision) GetPackageInfo(target string) (*pkginfo.Package, error) {
	pkg, ok := r.targets[target]
	if !ok {
		return nil, syncerr.Newf(syncerr.UnknownPackage, "get package info", target,
			"no snapshot of package '%s' for target", r.packageName)
	}
	return pkg, nil
}

// Targets lists the recorded targets, sorted.
func (r *Revision) Targets() []string {
	out := make([]string, 0, len(r.targets))
	for t := range r.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ValidateComplete checks that every target the catalog lists for the
// package has a snapshot.
func (r *Revision) ValidateComplete(catalog TargetLister) error {
	if !r.hasNumber {
		return syncerr.Newf(syncerr.InvalidInput, "validate revision", r.packageName, "revision number is not set")
	}
	if r.packageName == "" {
		return syncerr.Newf(syncerr.InvalidInput, "validate revision", "", "no package targets set")
	}
	var missing []string
	for _, target := range catalog.TargetsForPackage(r.packageName) {
		if _, ok := r.targets[target]; !ok {
			missing = append(missing, target)
		}
	}
	if len(missing) > 0 {
		return syncerr.Newf(syncerr.UnknownPackage, "validate revision", r.packageName,
			"missing package targets: %v", missing)
	}
	return nil
}

func (r *Revision) body() revisionBody {
	return revisionBody{PackageName: r.packageName, Revision: r.number, Packages: r.targets}
}

// Hash returns the revision_hash of the current content.
func (r *Revision) Hash() (string, error) {
	data, err := json.Marshal(r.body())
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Marshal renders the revision file, recomputing revision_hash.
func (r *Revision) Marshal() ([]byte, error) {
	h, err := r.Hash()
	if err != nil {
		return nil, err
	}
	n := r.number
	data, err := json.MarshalIndent(revisionJSON{
		PackageName:  r.packageName,
		Revision:     &n,
		Packages:     r.targets,
		RevisionHash: h,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a revision file. Unless recompute is set, the stored
// revision_hash must match the content. Recompute mode is meant for bulk
// maintenance of revision files after hand edits, never for sync.
func Unmarshal(data []byte, recompute bool) (*Revision, error) {
	var doc revisionJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, syncerr.New(syncerr.MalformedDescriptor, "parse revision", "", err)
	}
	if doc.Revision == nil {
		return nil, syncerr.Newf(syncerr.MalformedDescriptor, "parse revision", "", "missing 'revision'")
	}
	r := New()
	r.packageName = doc.PackageName
	r.SetRevisionNumber(*doc.Revision)
	for target, pkg := range doc.Packages {
		if pkg == nil {
			return nil, syncerr.Newf(syncerr.MalformedDescriptor, "parse revision", target, "package is null")
		}
		r.targets[target] = pkg
	}
	if recompute {
		return r, nil
	}
	h, err := r.Hash()
	if err != nil {
		return nil, syncerr.New(syncerr.MalformedDescriptor, "parse revision", "", err)
	}
	if h != doc.RevisionHash {
		return nil, syncerr.Newf(syncerr.HashMismatch, "parse revision", "",
			"revision_hash %s does not match content hash %s", doc.RevisionHash, h)
	}
	return r, nil
}

// Load reads the revision file at path.
func Load(path string, recompute bool) (*Revision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.New(syncerr.UnknownPackage, "load revision", path, fmt.Errorf("no revision set"))
		}
		return nil, syncerr.New(syncerr.IOError, "load revision", path, err)
	}
	r, err := Unmarshal(data, recompute)
	if err != nil {
		if e, ok := err.(*syncerr.Error); ok && e.Ref == "" {
			e.Ref = path
		}
		return nil, err
	}
	return r, nil
}

// Save writes the revision file atomically with a fresh revision_hash.
func (r *Revision) Save(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return syncerr.New(syncerr.IOError, "save revision", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return syncerr.New(syncerr.IOError, "save revision", path, err)
	}
	return nil
}
