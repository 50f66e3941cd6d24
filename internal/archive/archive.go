// Package archive describes a single downloadable archive file: its name,
// content digest, source URLs and extraction parameters.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Archive is the identity record for one archive file of a package.
type Archive struct {
	Name       string
	Hash       Hash
	URL        string
	LogURL     string
	TarSrcDir  string
	ExtractDir string
}

// archiveJSON fixes the field order of the serialized form.
type archiveJSON struct {
	Name       string  `json:"name"`
	Hash       Hash    `json:"hash"`
	URL        *string `json:"url"`
	LogURL     *string `json:"log_url"`
	TarSrcDir  string  `json:"tar_src_dir"`
	ExtractDir string  `json:"extract_dir"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (a Archive) MarshalJSON() ([]byte, error) {
	return json.Marshal(archiveJSON{
		Name:       a.Name,
		Hash:       a.Hash,
		URL:        optional(a.URL),
		LogURL:     optional(a.LogURL),
		TarSrcDir:  a.TarSrcDir,
		ExtractDir: a.ExtractDir,
	})
}

func (a *Archive) UnmarshalJSON(data []byte) error {
	var raw archiveJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*a = Archive{
		Name:       raw.Name,
		Hash:       raw.Hash,
		URL:        deref(raw.URL),
		LogURL:     deref(raw.LogURL),
		TarSrcDir:  raw.TarSrcDir,
		ExtractDir: raw.ExtractDir,
	}
	return nil
}

// SameContent is the identity used for diffing: same name and same hash.
// Two unknown hashes compare equal.
func (a Archive) SameContent(other Archive) bool {
	return a.Name == other.Name && a.Hash == other.Hash
}

// WithURL returns a copy of a pointing at url.
func (a Archive) WithURL(url string) Archive {
	a.URL = url
	return a
}

// WithLogURL returns a copy of a whose log lives at url.
func (a Archive) WithLogURL(url string) Archive {
	a.LogURL = url
	return a
}

// Validate rejects records that would resolve outside the cache or
// destination directories.
func (a Archive) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("archive name is empty")
	}
	if a.Name == "." || a.Name == ".." || strings.ContainsAny(a.Name, `/\`) {
		return fmt.Errorf("archive name '%s' must be a plain file name", a.Name)
	}
	if err := a.Hash.Validate(); err != nil {
		return fmt.Errorf("archive '%s': %w", a.Name, err)
	}
	if err := validateRelDir(a.TarSrcDir); err != nil {
		return fmt.Errorf("archive '%s' tar_src_dir: %w", a.Name, err)
	}
	if err := validateRelDir(a.ExtractDir); err != nil {
		return fmt.Errorf("archive '%s' extract_dir: %w", a.Name, err)
	}
	return nil
}

func validateRelDir(dir string) error {
	if dir == "" {
		return nil
	}
	slashed := filepath.ToSlash(dir)
	if path.IsAbs(slashed) || filepath.IsAbs(dir) {
		return fmt.Errorf("'%s' must be relative", dir)
	}
	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("'%s' escapes its root", dir)
	}
	return nil
}
