// Package fileutil holds the filesystem primitives the sync engine relies on:
// atomic writes, whole-file copies, tree removal and directory merges.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks scratch files that a later run may delete unconditionally.
const TempSuffix = ".tmp"

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// MakeParentDir creates the parent directory of path if it is missing.
func MakeParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// RemoveFile deletes a file; a missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveDir deletes a directory tree; a missing tree is not an error.
func RemoveDir(path string) error {
	return os.RemoveAll(path)
}

/**
 * Write data to path atomically
 * @param {string} path - Final file path
 * @param {[]byte} data - File content
 * @param {os.FileMode} perm - Permission bits of the final file
 * @returns {error} Returns error if any step fails, nil on success
 * @description
 * - Writes into a sibling temp file in the same directory
 * - Renames the temp file over path only after a successful close
 * - Readers observe either the previous content or the new one, never a prefix
 */
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := MakeParentDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// CopyFile copies src to dst through a temp file so dst is replaced whole.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := MakeParentDir(dst); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*"+TempSuffix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copy '%s' to '%s': %w", src, dst, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

/**
 * Move the contents of src into dst, merging directories
 * @param {string} src - Source directory, consumed by the move
 * @param {string} dst - Destination directory, created if missing
 * @returns {error} Returns error if any entry cannot be moved
 * @description
 * - Directories present on both sides are merged recursively
 * - Any other existing destination entry is replaced by the source entry
 * - New entries are renamed into place
 */
func MoveAndMergeDirTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		srcInfo, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}
		dstInfo, err := os.Lstat(dstPath)
		switch {
		case err == nil && srcInfo.IsDir() && dstInfo.IsDir():
			if err := MoveAndMergeDirTree(srcPath, dstPath); err != nil {
				return err
			}
			continue
		case err == nil:
			if err := os.RemoveAll(dstPath); err != nil {
				return err
			}
		case !os.IsNotExist(err):
			return err
		}
		if err := os.Rename(srcPath, dstPath); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}

// CleanTempFiles removes every regular file under dir ending in TempSuffix.
func CleanTempFiles(dir string) error {
	if !IsDir(dir) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), TempSuffix) {
			return RemoveFile(path)
		}
		return nil
	})
}
