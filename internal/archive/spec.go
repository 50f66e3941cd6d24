package archive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Spec is a build-time archive reference as written on the command line:
//
//	path[,srcdir[:extractdir]][@url[,logurl]]
type Spec struct {
	Path       string
	TarSrcDir  string
	ExtractDir string
	URL        string
	LogURL     string
}

// ParseSpec splits a build-time archive reference into its parts.
func ParseSpec(s string) (Spec, error) {
	var spec Spec
	rest := s
	if before, after, found := strings.Cut(rest, "@"); found {
		rest = before
		spec.URL, spec.LogURL, _ = strings.Cut(after, ",")
		if spec.URL == "" {
			return Spec{}, fmt.Errorf("archive spec '%s': empty url after '@'", s)
		}
	}
	if before, param, found := strings.Cut(rest, ","); found {
		rest = before
		spec.TarSrcDir, spec.ExtractDir, _ = strings.Cut(param, ":")
	}
	spec.Path = rest
	if spec.Path == "" {
		return Spec{}, fmt.Errorf("archive spec '%s': empty path", s)
	}
	return spec, nil
}

func (s Spec) String() string {
	out := s.Path
	if s.TarSrcDir != "" || s.ExtractDir != "" {
		out += "," + s.TarSrcDir
		if s.ExtractDir != "" {
			out += ":" + s.ExtractDir
		}
	}
	if s.URL != "" {
		out += "@" + s.URL
		if s.LogURL != "" {
			out += "," + s.LogURL
		}
	}
	return out
}

// FromSpec builds the Archive record for spec, hashing the file it names.
// The hash is NoHash when the file does not exist.
func FromSpec(spec Spec, algo Algorithm) Archive {
	return Archive{
		Name:       filepath.Base(spec.Path),
		Hash:       algo.File(spec.Path),
		URL:        spec.URL,
		LogURL:     spec.LogURL,
		TarSrcDir:  spec.TarSrcDir,
		ExtractDir: spec.ExtractDir,
	}
}
