/*
Copyright © 2026 3 Leaps <info@3leaps.net>
*/

// Package pattern expands (source glob, destination) pairs into concrete copy
// operations between two repository checkouts.
//
// Globs follow the doublestar dialect: '*' within one path segment, '**' across
// segments, '?' for one character, '[...]' classes, '{a,b}' alternation and '\'
// escapes. Destinations are literal paths: a destination with a file extension
// names a file, anything else names a directory.
package pattern

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/repodeploy/pkg/safeio"
)

var (
	// ErrPatternConflict marks a pattern whose multiplicity contradicts the
	// concreteness of its destination. Always fatal to the expansion.
	ErrPatternConflict = errors.New("pattern conflict")
	// ErrInvalidPattern marks a pattern that cannot be interpreted at all.
	ErrInvalidPattern = errors.New("invalid pattern")
)

const (
	ReasonGlobOntoFile      = "glob source mapped onto an existing file"
	ReasonDirectoryOntoFile = "directory source mapped onto an existing file"
	ReasonDirectoryExists   = "directory source mapped onto an existing directory"
	ReasonDuplicateTarget   = "two sources resolve to the same destination"
)

// ConflictError describes a Pattern Conflict. It matches ErrPatternConflict with errors.Is.
type ConflictError struct {
	Source      string // source pattern of the offending pair
	Destination string // destination pattern, empty when absent
	Path        string // absolute destination path involved
	Reason      string
}

func (e *ConflictError) Error() string {
	dest := e.Destination
	if dest == "" {
		dest = "<mirror>"
	}
	return fmt.Sprintf("pattern conflict: %s (%q -> %q at %s)", e.Reason, e.Source, dest, e.Path)
}

func (e *ConflictError) Unwrap() error { return ErrPatternConflict }

// Pair is one (source glob, optional destination) rule of an event.
type Pair struct {
	Source      string  `json:"source" yaml:"source"`
	Destination *string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Mirror returns a pair that copies matches to the same relative path.
func Mirror(source string) Pair {
	return Pair{Source: source}
}

// Map returns a pair that copies matches to destination.
func Map(source, destination string) Pair {
	return Pair{Source: source, Destination: &destination}
}

// String renders the pair the way event files declare it.
func (p Pair) String() string {
	if p.Destination == nil {
		return fmt.Sprintf("(%s, none)", p.Source)
	}
	return fmt.Sprintf("(%s, %s)", p.Source, *p.Destination)
}

// Entry is one filesystem path matched by a source glob, relative to its root
// and slash-separated.
type Entry struct {
	Path  string
	IsDir bool
}

// Operation is a resolved copy instruction between two absolute paths.
type Operation struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// HasMeta reports whether p contains unescaped glob metacharacters.
func HasMeta(p string) bool {
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// CleanSource validates a source pattern and returns it in the form used for matching.
func CleanSource(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("%w: empty source pattern", ErrInvalidPattern)
	}
	cleaned, err := safeio.CleanRelativePath(source)
	if err != nil {
		return "", fmt.Errorf("%w: source %q: %v", ErrInvalidPattern, source, err)
	}
	if !doublestar.ValidatePattern(cleaned) {
		return "", fmt.Errorf("%w: source %q is not a valid glob", ErrInvalidPattern, source)
	}
	return cleaned, nil
}

// CleanDestination validates a destination pattern. dirOnly is true when the
// pattern was written with a trailing slash.
func CleanDestination(destination string) (cleaned string, dirOnly bool, err error) {
	if HasMeta(destination) {
		return "", false, fmt.Errorf("%w: destination %q contains glob metacharacters", ErrInvalidPattern, destination)
	}
	cleaned, err = safeio.CleanRelativePath(destination)
	if err != nil {
		return "", false, fmt.Errorf("%w: destination %q: %v", ErrInvalidPattern, destination, err)
	}
	dirOnly = strings.HasSuffix(destination, "/")
	return cleaned, dirOnly, nil
}

// Suffix returns the extension of the last element of p, including the dot.
// Names like ".bashrc" or "name." have no suffix.
func Suffix(p string) string {
	name := path.Base(p)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}
