package pattern

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/repodeploy/pkg/ignore"
)

// Matcher applies source globs below one repository root.
type Matcher struct {
	root   string
	fsys   fs.FS
	ignore *ignore.Matcher
}

// NewMatcher returns a matcher rooted at root. Paths excluded by ign are never
// yielded and ignored directories are not descended into; a nil ign applies
// ignore.DefaultPatterns.
func NewMatcher(root string, ign *ignore.Matcher) *Matcher {
	if ign == nil {
		ign = ignore.NewMatcher(root, ignore.Options{})
	}
	return &Matcher{root: root, fsys: os.DirFS(root), ignore: ign}
}

// Match yields every entry under root whose relative path matches pattern, in
// lexical walk order. The root itself is never yielded and symlinked
// directories are not descended into. The sequence is lazy and single-use. A
// pattern that matches nothing yields nothing; a walk failure is yielded once
// as an error.
func (m *Matcher) Match(pattern string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		cleaned, err := CleanSource(pattern)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		if cleaned == "." {
			return
		}

		if !HasMeta(cleaned) && !strings.Contains(cleaned, `\`) {
			entry, ok, err := m.literal(cleaned)
			if err != nil {
				yield(Entry{}, fmt.Errorf("matching %q under %s: %w", pattern, m.root, err))
			} else if ok {
				yield(entry, nil)
			}
			return
		}

		if err := m.walk(cleaned, yield); err != nil {
			yield(Entry{}, fmt.Errorf("matching %q under %s: %w", pattern, m.root, err))
		}
	}
}

func (m *Matcher) literal(p string) (Entry, bool, error) {
	if _, err := fs.Stat(m.fsys, p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	isDir, err := m.classify(p, nil)
	if err != nil {
		return Entry{}, false, err
	}
	if m.ignored(p, isDir) {
		return Entry{}, false, nil
	}
	return Entry{Path: p, IsDir: isDir}, true, nil
}

// walk visits the static base of pattern. Without "**" nothing deeper than the
// pattern's own depth can match, so those directories are skipped.
func (m *Matcher) walk(pattern string, yield func(Entry, error) bool) error {
	base, _ := doublestar.SplitPattern(pattern)
	depth := -1
	if !strings.Contains(pattern, "**") {
		depth = strings.Count(pattern, "/") + 1
	}

	stopped := false
	err := fs.WalkDir(m.fsys, base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == base && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == "." {
			return nil
		}
		isDir, err := m.classify(p, d)
		if err != nil {
			return err
		}
		if m.ignored(p, isDir) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if doublestar.MatchUnvalidated(pattern, p) {
			if !yield(Entry{Path: p, IsDir: isDir}, nil) {
				stopped = true
				return fs.SkipAll
			}
		}
		if d.IsDir() && depth > 0 && strings.Count(p, "/")+1 >= depth {
			return fs.SkipDir
		}
		return nil
	})
	if stopped {
		return nil
	}
	return err
}

func (m *Matcher) ignored(p string, isDir bool) bool {
	return m.ignore.IsIgnored(p, isDir)
}

// classify follows symlinks so a link to a directory is treated as a directory.
// A dangling link is a file.
func (m *Matcher) classify(p string, d fs.DirEntry) (bool, error) {
	if d != nil && d.Type()&fs.ModeSymlink == 0 {
		return d.IsDir(), nil
	}
	info, err := fs.Stat(m.fsys, p)
	if errors.Is(err, fs.ErrNotExist) && d != nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Match is the convenience form of NewMatcher(root, nil).Match(pattern).
func Match(root, pattern string) iter.Seq2[Entry, error] {
	return NewMatcher(root, nil).Match(pattern)
}
