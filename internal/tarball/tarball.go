// Package tarball reads and writes package archives: tar streams, optionally
// compressed with gzip, bzip2, zstd or lz4.
package tarball

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Codec opens archives for extraction and creation.
type Codec interface {
	OpenForRead(path string) (Reader, error)
	OpenForWrite(path string, mode Compression) (Writer, error)
}

// Reader extracts an opened archive.
type Reader interface {
	ExtractAll(destDir string) error
	Close() error
}

// Writer appends entries to a new archive. The archive is complete only
// after Close returns nil.
type Writer interface {
	AddFile(srcPath, name string) error
	AddTree(srcDir string) error
	Close() error
}

// ErrUnsafePath is returned for entries that would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes the destination")

// TarCodec is the Codec backed by archive/tar.
type TarCodec struct{}

// Default is the codec used by the sync engine.
var Default Codec = TarCodec{}

type tarReader struct {
	path   string
	file   *os.File
	stream io.ReadCloser
	tr     *tar.Reader
}

// OpenForRead opens path and detects its compression from the content.
func (TarCodec) OpenForRead(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	header, _ := br.Peek(4)
	stream, err := newDecompressor(br, Sniff(header))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open '%s': %w", path, err)
	}
	return &tarReader{path: path, file: f, stream: stream, tr: tar.NewReader(stream)}, nil
}

func (r *tarReader) Close() error {
	err := r.stream.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

/**
 * Extract every entry of the archive below destDir
 * @param {string} destDir - Extraction root, created if missing
 * @returns {error} ErrUnsafePath for entries or link targets outside destDir
 * @description
 * - Regular files, directories, symlinks and hard links are restored
 * - Other entry types (devices, fifos) are skipped
 */
func (r *tarReader) ExtractAll(destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	for {
		hdr, err := r.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read '%s': %w", r.path, err)
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		if target == destDir {
			continue
		}
		if err := r.extractEntry(destDir, target, hdr); err != nil {
			return fmt.Errorf("extract '%s' from '%s': %w", hdr.Name, r.path, err)
		}
	}
}

func (r *tarReader) extractEntry(destDir, target string, hdr *tar.Header) error {
	mode := fs.FileMode(hdr.Mode).Perm()
	if hdr.Typeflag == tar.TypeDir {
		dir, err := resolveInside(destDir, target)
		if err != nil {
			return err
		}
		return os.MkdirAll(dir, mode|0700)
	}
	parent, err := resolveInside(destDir, filepath.Dir(target))
	if err != nil {
		return err
	}
	target = filepath.Join(parent, filepath.Base(target))
	switch hdr.Typeflag {
	case tar.TypeReg:
		if err := os.MkdirAll(parent, 0755); err != nil {
			return err
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r.tr); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%w: symlink to %s", ErrUnsafePath, hdr.Linkname)
		}
		// 链接目标相对于真实父目录计算
		if _, err := resolveInside(destDir, filepath.Join(parent, hdr.Linkname)); err != nil {
			return fmt.Errorf("%w: symlink to %s", ErrUnsafePath, hdr.Linkname)
		}
		if err := os.MkdirAll(parent, 0755); err != nil {
			return err
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeLink:
		src, err := safeJoin(destDir, hdr.Linkname)
		if err != nil {
			return err
		}
		srcParent, err := resolveInside(destDir, filepath.Dir(src))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(parent, 0755); err != nil {
			return err
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		return os.Link(filepath.Join(srcParent, filepath.Base(src)), target)
	default:
		return nil
	}
}

// resolveInside returns the on-disk location of p after following the
// symlinks already extracted below root. The part of p that does not exist
// yet is appended unchanged. A location outside root is ErrUnsafePath.
func resolveInside(root, p string) (string, error) {
	root = filepath.Clean(root)
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	existing, rest := filepath.Clean(p), ""
	for existing != root {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, relTo(root, p))
	}
	if !within(realRoot, resolved) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, relTo(root, p))
	}
	return filepath.Join(resolved, rest), nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// safeJoin resolves an entry name below root, rejecting absolute names and
// names that climb out with "..".
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || strings.HasPrefix(filepath.ToSlash(name), "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(root, clean), nil
}

func relTo(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return rel
}

type tarWriter struct {
	path   string
	file   *os.File
	stream io.WriteCloser
	tw     *tar.Writer
}

// OpenForWrite creates path and wraps it with mode. An empty mode is derived
// from the file name.
func (TarCodec) OpenForWrite(path string, mode Compression) (Writer, error) {
	if mode == "" {
		var err error
		if mode, err = CompressionForName(path); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	stream, err := newCompressor(f, mode)
	if err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &tarWriter{path: path, file: f, stream: stream, tw: tar.NewWriter(stream)}, nil
}

func (w *tarWriter) AddFile(srcPath, name string) error {
	info, err := os.Lstat(srcPath)
	if err != nil {
		return err
	}
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(srcPath); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(name)
	if info.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
		hdr.Name += "/"
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w.tw, f)
	return err
}

// AddTree adds everything below srcDir with names relative to srcDir.
func (w *tarWriter) AddTree(srcDir string) error {
	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return w.AddFile(p, rel)
	})
}

func (w *tarWriter) Close() error {
	errs := []error{w.tw.Close(), w.stream.Close(), w.file.Close()}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close '%s': %w", w.path, err)
	}
	return nil
}

// CreateEmpty writes an archive with no entries, compressed according to
// its file name.
func CreateEmpty(codec Codec, path string) error {
	w, err := codec.OpenForWrite(path, "")
	if err != nil {
		return err
	}
	return w.Close()
}

// ExtractFile extracts the archive at path into destDir.
func ExtractFile(codec Codec, path, destDir string) error {
	r, err := codec.OpenForRead(path)
	if err != nil {
		return err
	}
	if err := r.ExtractAll(destDir); err != nil {
		r.Close()
		return err
	}
	return r.Close()
}
