// Package pkginfo loads, saves and compares package descriptors: the ordered
// list of archives that make up one package for one package target.
package pkginfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"pkgsync/internal/archive"
	"pkgsync/internal/fileutil"
	"pkgsync/internal/syncerr"
)

// Package is an ordered list of archives. Order is preserved through
// Save/Load and takes part in equality.
type Package struct {
	archives []archive.Archive
}

type packageJSON struct {
	Archives []archive.Archive `json:"archives"`
}

// New builds a package from archives in the given order.
func New(archives ...archive.Archive) *Package {
	p := &Package{}
	for _, a := range archives {
		p.Append(a)
	}
	return p
}

// Append adds an archive at the end.
func (p *Package) Append(a archive.Archive) {
	p.archives = append(p.archives, a)
}

// Archives returns a copy of the archive list.
func (p *Package) Archives() []archive.Archive {
	out := make([]archive.Archive, len(p.archives))
	copy(out, p.archives)
	return out
}

// Len returns the number of archives.
func (p *Package) Len() int {
	return len(p.archives)
}

// Find returns the archive with the given name.
func (p *Package) Find(name string) (archive.Archive, bool) {
	for _, a := range p.archives {
		if a.Name == name {
			return a, true
		}
	}
	return archive.Archive{}, false
}

// Unverified lists archives whose hash is unknown.
func (p *Package) Unverified() []archive.Archive {
	var out []archive.Archive
	for _, a := range p.archives {
		if !a.Hash.Known() {
			out = append(out, a)
		}
	}
	return out
}

// Equals compares archive sequences position by position on (name, hash).
// Two packages holding the same archives in a different order are not
// equal.
func (p *Package) Equals(other *Package) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.archives) != len(other.archives) {
		return false
	}
	for i := range p.archives {
		if !p.archives[i].SameContent(other.archives[i]) {
			return false
		}
	}
	return true
}

// Identical is Equals extended to every archive field, so a changed URL or
// extraction parameter makes two packages differ.
func (p *Package) Identical(other *Package) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.archives) != len(other.archives) {
		return false
	}
	for i := range p.archives {
		if p.archives[i] != other.archives[i] {
			return false
		}
	}
	return true
}

// Validate checks every archive and rejects duplicate names. When
// skipMissing is false every archive must carry a known hash.
func (p *Package) Validate(skipMissing bool) error {
	seen := make(map[string]bool, len(p.archives))
	for _, a := range p.archives {
		if err := a.Validate(); err != nil {
			return err
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate archive '%s'", a.Name)
		}
		seen[a.Name] = true
		if !skipMissing && !a.Hash.Known() {
			return fmt.Errorf("archive '%s' has no hash", a.Name)
		}
	}
	return nil
}

// Marshal renders the canonical form: two-space indentation, fixed field
// order, archives in sequence order, trailing newline.
func (p *Package) Marshal() ([]byte, error) {
	doc := packageJSON{Archives: p.archives}
	if doc.Archives == nil {
		doc.Archives = []archive.Archive{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (p *Package) MarshalJSON() ([]byte, error) {
	doc := packageJSON{Archives: p.archives}
	if doc.Archives == nil {
		doc.Archives = []archive.Archive{}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes an embedded package (for example one target of a
// revision file). Embedded packages must carry a hash for every archive.
func (p *Package) UnmarshalJSON(data []byte) error {
	parsed, err := Unmarshal(data, false)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// Unmarshal parses a package document. Any structural problem is reported
// as MalformedDescriptor.
func Unmarshal(data []byte, skipMissing bool) (*Package, error) {
	var doc packageJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, syncerr.New(syncerr.MalformedDescriptor, "parse package", "", err)
	}
	if dec.More() {
		return nil, syncerr.Newf(syncerr.MalformedDescriptor, "parse package", "", "trailing data after package document")
	}
	if doc.Archives == nil {
		return nil, syncerr.Newf(syncerr.MalformedDescriptor, "parse package", "", "missing 'archives' list")
	}
	p := &Package{archives: doc.Archives}
	if err := p.Validate(skipMissing); err != nil {
		return nil, syncerr.New(syncerr.MalformedDescriptor, "parse package", "", err)
	}
	return p, nil
}

// Load reads the package file at path.
func Load(path string, skipMissing bool) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syncerr.New(syncerr.UnknownPackage, "load package", path, err)
		}
		return nil, syncerr.New(syncerr.IOError, "load package", path, err)
	}
	p, err := Unmarshal(data, skipMissing)
	if err != nil {
		if e, ok := err.(*syncerr.Error); ok {
			e.Ref = path
		}
		return nil, err
	}
	return p, nil
}

// Save writes the canonical form to path atomically.
func (p *Package) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return syncerr.New(syncerr.IOError, "save package", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return syncerr.New(syncerr.IOError, "save package", path, err)
	}
	return nil
}

// LoadState classifies what LoadLocal found on disk.
type LoadState int

const (
	// Missing: no package file exists.
	Missing LoadState = iota
	// Loaded: the file parsed and validated.
	Loaded
	// Corrupt: the file exists but cannot be trusted. Callers invalidate
	// the cached package and rebuild it.
	Corrupt
)

func (s LoadState) String() string {
	switch s {
	case Missing:
		return "missing"
	case Loaded:
		return "loaded"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// LoadResult is the outcome of LoadLocal. Err explains a Corrupt state.
type LoadResult struct {
	State   LoadState
	Package *Package
	Err     error
}

// LoadLocal reads a cache-owned package file without failing: any error
// other than absence turns into the Corrupt state.
func LoadLocal(path string, skipMissing bool) LoadResult {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return LoadResult{State: Missing}
	}
	p, err := Load(path, skipMissing)
	if err != nil {
		return LoadResult{State: Corrupt, Err: err}
	}
	return LoadResult{State: Loaded, Package: p}
}
