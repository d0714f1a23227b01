package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanUserPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		hasError bool
	}{
		{name: "simple path", input: "file.txt", expected: "file.txt"},
		{name: "relative path", input: "./subdir/file.txt", expected: "subdir/file.txt"},
		{name: "absolute path", input: "/tmp/file.txt", expected: "/tmp/file.txt"},
		{name: "path with traversal", input: "../../../etc/passwd", hasError: true},
		{name: "path with traversal in middle", input: "valid/../../../etc/passwd", hasError: true},
		{name: "path with dots but no traversal", input: "file.with.dots.txt", expected: "file.with.dots.txt"},
		{name: "double dot inside a name", input: "a..b/c", expected: "a..b/c"},
		{name: "inner traversal that stays inside", input: "a/b/../c", expected: "a/c"},
		{name: "empty path", input: "", expected: "."},
		{name: "current directory", input: ".", expected: "."},
		{name: "parent directory", input: "..", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CleanUserPath(tt.input)

			if tt.hasError {
				if err == nil {
					t.Errorf("CleanUserPath(%q) expected error but got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("CleanUserPath(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("CleanUserPath(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCleanRelativePath(t *testing.T) {
	if _, err := CleanRelativePath("/etc/passwd"); err != ErrAbsolute {
		t.Errorf("CleanRelativePath(absolute) error = %v, expected ErrAbsolute", err)
	}
	if _, err := CleanRelativePath("../x"); err != ErrTraversal {
		t.Errorf("CleanRelativePath(traversal) error = %v, expected ErrTraversal", err)
	}
	got, err := CleanRelativePath("docs//guide/")
	if err != nil {
		t.Fatalf("CleanRelativePath() unexpected error: %v", err)
	}
	if got != "docs/guide" {
		t.Errorf("CleanRelativePath() = %q, expected %q", got, "docs/guide")
	}
}

func TestIsContained(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"base itself", base, true},
		{"child", filepath.Join(base, "a", "b.txt"), true},
		{"sibling", filepath.Join(filepath.Dir(base), "other"), false},
		{"escape through parent", filepath.Join(base, "a", "..", "..", "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsContained(base, tt.target); got != tt.want {
				t.Errorf("IsContained(%q, %q) = %v, expected %v", base, tt.target, got, tt.want)
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "db.json")

	if err := WriteFileAtomic(target, []byte("first"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() failed: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite failed: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "second" {
		t.Errorf("File content = %q, expected %q", content, "second")
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temp files, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicError(t *testing.T) {
	err := WriteFileAtomic("/non/existent/directory/file.txt", []byte("x"), 0o644)
	if err == nil {
		t.Error("WriteFileAtomic() should fail for non-existent directory")
	}
}

func TestCopyFile(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src.sh")
	dst := filepath.Join(tempDir, "dst.sh")

	if err := os.WriteFile(src, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	mtime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatalf("Failed to set mtime: %v", err)
	}
	if err := os.WriteFile(dst, []byte("old content that is longer than the new one"), 0o644); err != nil {
		t.Fatalf("Failed to create destination: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() failed: %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read destination: %v", err)
	}
	if string(content) != "#!/bin/sh\necho hi\n" {
		t.Errorf("Destination content = %q", content)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Failed to stat destination: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("Destination mode = %s, expected %s", info.Mode().Perm(), os.FileMode(0o755))
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("Destination mtime = %s, expected %s", info.ModTime(), mtime)
	}
}

func TestCopyFileErrors(t *testing.T) {
	tempDir := t.TempDir()

	if err := CopyFile(filepath.Join(tempDir, "missing"), filepath.Join(tempDir, "out")); err == nil {
		t.Error("CopyFile() should fail for a missing source")
	}
	if err := CopyFile(tempDir, filepath.Join(tempDir, "out")); err == nil {
		t.Error("CopyFile() should refuse a directory source")
	}
}

func TestCopyFileReplacesSymlink(t *testing.T) {
	tempDir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "victim.txt")
	if err := os.WriteFile(outside, []byte("untouched"), 0o644); err != nil {
		t.Fatalf("Failed to create outside file: %v", err)
	}
	src := filepath.Join(tempDir, "src.txt")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	dst := filepath.Join(tempDir, "link.txt")
	if err := os.Symlink(outside, dst); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() failed: %v", err)
	}

	info, err := os.Lstat(dst)
	if err != nil {
		t.Fatalf("Failed to stat destination: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("CopyFile() left the destination symlink in place")
	}
	content, _ := os.ReadFile(outside)
	if string(content) != "untouched" {
		t.Errorf("symlink target was written: %q", content)
	}
}

func TestCheckResolved(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	for _, dir := range []string{filepath.Join(root, "real"), outside} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(root, "out")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	if err := os.Symlink("real", filepath.Join(root, "alias")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(base, "gone"), filepath.Join(root, "dangling")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("EvalSymlinks() failed: %v", err)
	}

	tests := []struct {
		name    string
		target  string
		escapes bool
		wantErr bool
	}{
		{"root itself", root, false, false},
		{"existing dir", filepath.Join(root, "real"), false, false},
		{"missing below existing dir", filepath.Join(root, "real", "a", "b.txt"), false, false},
		{"link inside root", filepath.Join(root, "alias", "x.txt"), false, false},
		{"link leaving root", filepath.Join(root, "out", "x.txt"), true, true},
		{"dangling link", filepath.Join(root, "dangling", "x.txt"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckResolved(resolvedRoot, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckResolved(%s) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if errors.Is(err, ErrEscapesRoot) != tt.escapes {
				t.Errorf("CheckResolved(%s) = %v, escapes %v", tt.target, err, tt.escapes)
			}
		})
	}
}
