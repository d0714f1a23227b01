package safeio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrTraversal is returned when a user path escapes its base directory.
	ErrTraversal = errors.New("path traversal detected")
	// ErrAbsolute is returned when a path that must be relative is absolute.
	ErrAbsolute = errors.New("absolute path not allowed")
	// ErrEscapesRoot is returned when a path leaves its root through a symlink.
	ErrEscapesRoot = errors.New("path resolves outside its root")
)

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	for _, part := range strings.Split(filepath.ToSlash(c), "/") {
		if part == ".." {
			return "", ErrTraversal
		}
	}
	return filepath.ToSlash(c), nil
}

// CleanRelativePath is CleanUserPath for paths that must stay relative to a root.
func CleanRelativePath(p string) (string, error) {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return "", ErrAbsolute
	}
	return CleanUserPath(p)
}

// IsContained reports whether target resolves inside baseDir (or is baseDir itself).
func IsContained(baseDir, target string) bool {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// EvalExisting resolves symlinks in the deepest existing ancestor of p and
// appends the components that do not exist yet. A dangling symlink on the way
// is an error.
func EvalExisting(p string) (string, error) {
	p = filepath.Clean(p)
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(p); lerr == nil {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		missing = append([]string{filepath.Base(p)}, missing...)
		p = parent
	}
}

// CheckResolved fails with ErrEscapesRoot when target, once its existing part
// is resolved, lies outside resolvedRoot. resolvedRoot must already be free of
// symlinks (see filepath.EvalSymlinks).
func CheckResolved(resolvedRoot, target string) error {
	resolved, err := EvalExisting(target)
	if err != nil {
		return err
	}
	if !IsContained(resolvedRoot, resolved) {
		return &fs.PathError{Op: "resolve", Path: target, Err: ErrEscapesRoot}
	}
	return nil
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// CopyFile copies the bytes of src to dst, then applies src's permission bits and
// modification time to dst. An existing dst is truncated and overwritten; an
// existing symlink at dst is replaced, never written through.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("copy %s: is a directory", src)
	}

	in, err := os.Open(src) // #nosec G304 -- caller-resolved path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := RemoveSymlink(dst); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return CopyMetadata(info, dst)
}

// RemoveSymlink removes path if it is a symlink and leaves anything else alone.
func RemoveSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(path)
}

// CopyMetadata applies the permission bits and modification time from info to path.
func CopyMetadata(info os.FileInfo, path string) error {
	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(path, info.ModTime(), info.ModTime())
}
