// Package catalog loads the packages description file, which lists the
// package targets of each host platform, the packages built for each target
// and the packages shared by every target.
package catalog

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pkgsync/internal/locations"
	"pkgsync/internal/syncerr"
)

// Catalog is the parsed packages description. JSON is a subset of YAML, so
// the same decoder reads either format.
type Catalog struct {
	PackageTargetsByHost map[string]map[string][]string `yaml:"package_targets"`
	PackagesByTarget     map[string][]string            `yaml:"packages"`
	Shared               []string                       `yaml:"shared"`
}

// Load reads a packages description file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, syncerr.New(syncerr.IOError, "load catalog", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, syncerr.New(syncerr.MalformedDescriptor, "load catalog", path, err)
	}
	return c, nil
}

// Parse decodes a packages description and validates its names.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, err
	}
	for target, packages := range c.PackagesByTarget {
		if err := locations.ValidateName("package target", target); err != nil {
			return nil, err
		}
		for _, p := range packages {
			if err := locations.ValidateName("package", p); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// PackageTargets returns the targets built on the given host. Platform and
// arch are normalized first.
func (c *Catalog) PackageTargets(hostOS, hostArch string) ([]string, error) {
	osName, err := NormalizeOS(hostOS)
	if err != nil {
		return nil, syncerr.New(syncerr.InvalidInput, "package targets", hostOS, err)
	}
	arch, err := NormalizeArch(hostArch)
	if err != nil {
		return nil, syncerr.New(syncerr.InvalidInput, "package targets", hostArch, err)
	}
	targets, ok := c.PackageTargetsByHost[osName][arch]
	if !ok {
		return nil, syncerr.Newf(syncerr.UnknownPackage, "package targets", osName+"/"+arch,
			"no package targets defined for host")
	}
	return append([]string(nil), targets...), nil
}

// Packages returns the packages of target, and false when the target is not
// in the catalog.
func (c *Catalog) Packages(target string) ([]string, bool) {
	packages, ok := c.PackagesByTarget[target]
	if !ok {
		return nil, false
	}
	return append([]string(nil), packages...), true
}

// IsShared reports whether name is the same package for every target.
func (c *Catalog) IsShared(name string) bool {
	for _, s := range c.Shared {
		if s == name {
			return true
		}
	}
	return false
}

// TargetsForPackage lists, sorted, the targets whose package list contains
// name.
func (c *Catalog) TargetsForPackage(name string) []string {
	var out []string
	for target, packages := range c.PackagesByTarget {
		for _, p := range packages {
			if p == name {
				out = append(out, target)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// SplitCustomPackage parses a TARGET/PACKAGE name. Either separator is
// accepted; ok is false when name carries no target.
func SplitCustomPackage(name string) (locations.TargetPackage, bool) {
	normalized := strings.ReplaceAll(name, `\`, "/")
	target, pkg, found := strings.Cut(normalized, "/")
	if !found || locations.ValidateName("package target", target) != nil ||
		locations.ValidateName("package", pkg) != nil {
		return locations.TargetPackage{}, false
	}
	return locations.TargetPackage{Target: target, Package: pkg}, true
}

// Selection is the set of packages a command operates on, as given on the
// command line.
type Selection struct {
	HostOS   string
	HostArch string
	// Targets overrides the host's targets when non-empty.
	Targets []string
	// Packages overrides the packages of the selected targets when non-empty.
	Packages []string
	Append   []string
	Exclude  []string
}

// Resolve expands a selection into (target, package) pairs, ordered by
// package name and then by target order. Every name is checked before any
// pair is returned.
func (c *Catalog) Resolve(sel Selection) ([]locations.TargetPackage, error) {
	targets := sel.Targets
	if len(targets) == 0 {
		var err error
		targets, err = c.PackageTargets(sel.HostOS, sel.HostArch)
		if err != nil {
			return nil, err
		}
	}

	names := map[string]bool{}
	if len(sel.Packages) == 0 {
		for _, target := range targets {
			packages, ok := c.Packages(target)
			if !ok {
				return nil, syncerr.Newf(syncerr.UnknownPackage, "resolve packages", target,
					"no packages defined for package target")
			}
			for _, p := range packages {
				names[p] = true
			}
		}
	} else {
		for _, p := range sel.Packages {
			names[p] = true
		}
	}
	for _, p := range sel.Append {
		names[p] = true
	}
	for _, p := range sel.Exclude {
		delete(names, p)
	}

	targetsOf := map[string][]string{}
	for _, target := range targets {
		packages, _ := c.Packages(target)
		for _, p := range packages {
			targetsOf[p] = append(targetsOf[p], target)
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var pairs []locations.TargetPackage
	for _, name := range sorted {
		if ts, ok := targetsOf[name]; ok {
			for _, t := range ts {
				pairs = append(pairs, locations.TargetPackage{Target: t, Package: name})
			}
			continue
		}
		custom, ok := SplitCustomPackage(name)
		if !ok {
			return nil, syncerr.Newf(syncerr.UnknownPackage, "resolve packages", name,
				"invalid custom package, expected TARGET/PACKAGE")
		}
		pairs = append(pairs, custom)
	}
	return pairs, nil
}

// Match narrows pairs to the given package name. A TARGET/PACKAGE name is
// returned as its single pair without consulting pairs.
func Match(name string, pairs []locations.TargetPackage) ([]locations.TargetPackage, error) {
	if custom, ok := SplitCustomPackage(name); ok {
		return []locations.TargetPackage{custom}, nil
	}
	var out []locations.TargetPackage
	for _, tp := range pairs {
		if tp.Package == name {
			out = append(out, tp)
		}
	}
	if len(out) == 0 {
		return nil, syncerr.Newf(syncerr.UnknownPackage, "match package", name,
			`did you forget to add "$PACKAGE_TARGET/"?`)
	}
	return out, nil
}
