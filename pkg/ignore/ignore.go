// Package ignore provides gitignore-based exclusion of repository paths using go-git
package ignore

import (
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultPatterns are always excluded, whatever the repository declares.
var DefaultPatterns = []string{".git", ".git/**"}

// Matcher decides whether a root-relative path is excluded from matching.
type Matcher struct {
	matcher gitignore.Matcher
}

// Options controls which pattern layers a Matcher loads.
type Options struct {
	// Gitignore also loads the repository's .gitignore files and .git/info/exclude.
	Gitignore bool
	// Extra patterns in gitignore syntax, applied last.
	Extra []string
}

// NewMatcher creates a matcher for the repository rooted at repoRoot:
// 1. DefaultPatterns (foundation)
// 2. repository gitignore files, when opts.Gitignore is set
// 3. opts.Extra
func NewMatcher(repoRoot string, opts Options) *Matcher {
	var patterns []gitignore.Pattern
	for _, p := range DefaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	if opts.Gitignore {
		fs := osfs.New(repoRoot)
		if repoPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
			patterns = append(patterns, repoPatterns...)
		}
	}

	for _, p := range opts.Extra {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &Matcher{matcher: gitignore.NewMatcher(patterns)}
}

// IsIgnored reports whether the slash-separated, root-relative path is excluded.
func (m *Matcher) IsIgnored(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	parts := splitPath(relPath)
	if len(parts) == 0 {
		return false
	}
	// A path below an excluded directory is excluded too.
	for i := 1; i < len(parts); i++ {
		if m.matcher.Match(parts[:i], true) {
			return true
		}
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
