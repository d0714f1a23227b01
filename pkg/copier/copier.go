// Package copier performs resolved copy operations between two checkouts.
package copier

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fulmenhq/repodeploy/pkg/ignore"
	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/fulmenhq/repodeploy/pkg/pattern"
	"github.com/fulmenhq/repodeploy/pkg/safeio"
)

// Stats counts what a Copier has written so far.
type Stats struct {
	Operations int
	Files      int
	Dirs       int
	Links      int
}

// Copier applies operations in order, overwriting existing destinations.
// It stops at the first failure and never rolls back.
type Copier struct {
	log   *logger.Logger
	stats Stats
}

// New creates a copier. log may be nil.
func New(log *logger.Logger) *Copier {
	return &Copier{log: log}
}

// Stats returns the running totals.
func (c *Copier) Stats() Stats { return c.stats }

// CopyAll copies every operation. File operations copy bytes, mode and
// modification time; directory operations merge the source tree into the
// destination, skipping .git. Symlinks are recreated as links, and a symlink
// already at a destination path is replaced rather than written through.
func (c *Copier) CopyAll(ops []pattern.Operation) error {
	for i, op := range ops {
		if err := c.Copy(op); err != nil {
			return fmt.Errorf("operation %d of %d: %w", i+1, len(ops), err)
		}
	}
	c.log.Debug("Copy finished",
		logger.Int("operations", c.stats.Operations),
		logger.Int("files", c.stats.Files),
		logger.Int("dirs", c.stats.Dirs))
	return nil
}

// Copy performs a single operation.
func (c *Copier) Copy(op pattern.Operation) error {
	info, err := os.Lstat(op.Source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(op.Destination), 0o755); err != nil {
		return err
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		err = c.copyLink(op.Source, op.Destination)
	case info.IsDir():
		err = c.copyTree(op.Source, op.Destination)
	default:
		err = c.copyFile(op.Source, op.Destination)
	}
	if err != nil {
		return err
	}

	c.stats.Operations++
	c.log.Trace("Copied",
		logger.String("source", op.Source),
		logger.String("destination", op.Destination))
	return nil
}

func (c *Copier) copyFile(src, dst string) error {
	if err := safeio.CopyFile(src, dst); err != nil {
		return err
	}
	c.stats.Files++
	return nil
}

type dirMeta struct {
	path string
	info fs.FileInfo
}

func (c *Copier) copyTree(srcRoot, dstRoot string) error {
	excl := ignore.NewMatcher(srcRoot, ignore.Options{})
	var dirs []dirMeta

	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel != "." && excl.IsIgnored(filepath.ToSlash(rel), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		dst := filepath.Join(dstRoot, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			if err := safeio.RemoveSymlink(dst); err != nil {
				return err
			}
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
			dirs = append(dirs, dirMeta{path: dst, info: info})
			c.stats.Dirs++
		case d.Type()&fs.ModeSymlink != 0:
			return c.copyLink(path, dst)
		default:
			return c.copyFile(path, dst)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Children bump a directory's mtime, so metadata goes on deepest first.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := safeio.CopyMetadata(dirs[i].info, dirs[i].path); err != nil {
			return err
		}
	}
	return nil
}

func (c *Copier) copyLink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(target, dst); err != nil {
		return err
	}
	c.stats.Links++
	return nil
}

// CopyAll copies ops without logging.
func CopyAll(ops []pattern.Operation) error {
	return New(nil).CopyAll(ops)
}
