package pattern

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/repodeploy/pkg/ignore"
	"github.com/fulmenhq/repodeploy/pkg/logger"
	"github.com/fulmenhq/repodeploy/pkg/safeio"
)

// DuplicatePolicy decides what happens when two sources of one expansion
// resolve to the same destination path.
type DuplicatePolicy string

const (
	// DuplicateOverwrite keeps both operations; the later one wins at copy time.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	// DuplicateReject raises a Pattern Conflict.
	DuplicateReject DuplicatePolicy = "error"
)

// ParseDuplicatePolicy accepts "overwrite" or "error"; empty means overwrite.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateOverwrite:
		return DuplicateOverwrite, nil
	case DuplicateReject:
		return DuplicateReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate-destination policy %q (want overwrite|error)", s)
	}
}

// Options tunes an Expander. The zero value merges into existing directories,
// lets the last writer win on duplicate destinations and only excludes .git.
type Options struct {
	ExistingDirectory    DirectoryPolicy
	DuplicateDestination DuplicatePolicy
	// Gitignore excludes paths ignored by the source repository's gitignore files.
	Gitignore bool
	// Exclude adds gitignore-syntax patterns that are never matched.
	Exclude []string
}

// Expander turns pattern pairs into copy operations.
type Expander struct {
	opts Options
	log  *logger.Logger
}

// NewExpander creates an expander. log may be nil.
func NewExpander(opts Options, log *logger.Logger) *Expander {
	return &Expander{opts: opts, log: log}
}

// Expand resolves pairs, in declaration order, into operations from sourceRoot
// to destinationRoot. Within one pair operations follow match order. Any error
// aborts the whole expansion and no operations are returned.
//
// Symlinks are resolved when checking containment: a source whose parent, or a
// destination whose existing ancestors, resolve outside their root fail with
// safeio.ErrEscapesRoot.
func (e *Expander) Expand(sourceRoot, destinationRoot string, pairs []Pair) ([]Operation, error) {
	srcRoot, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	dstRoot, err := filepath.Abs(destinationRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving destination root: %w", err)
	}

	matcher := NewMatcher(srcRoot, ignore.NewMatcher(srcRoot, ignore.Options{
		Gitignore: e.opts.Gitignore,
		Extra:     e.opts.Exclude,
	}))
	roots, err := resolveRoots(srcRoot, dstRoot)
	if err != nil {
		return nil, err
	}
	composer := Composer{
		SourceRoot:        srcRoot,
		DestinationRoot:   dstRoot,
		ExistingDirectory: e.opts.ExistingDirectory,
	}

	var ops []Operation
	claimed := make(map[string]string)
	for _, pair := range pairs {
		if err := e.precheck(pair, dstRoot); err != nil {
			return nil, err
		}

		count := 0
		for entry, err := range matcher.Match(pair.Source) {
			if err != nil {
				return nil, err
			}
			dst, err := composer.Compose(entry, pair.Source, pair.Destination)
			if err != nil {
				return nil, err
			}
			op := Operation{
				Source:      filepath.Join(srcRoot, filepath.FromSlash(entry.Path)),
				Destination: dst,
			}
			if err := roots.check(op); err != nil {
				return nil, err
			}
			if err := e.claim(claimed, pair, op); err != nil {
				return nil, err
			}
			ops = append(ops, op)
			count++
		}

		e.log.Debug("Expanded pattern",
			logger.String("pattern", pair.String()),
			logger.Int("matches", count))
	}

	return ops, nil
}

// resolvedRoots holds both roots with symlinks evaluated.
type resolvedRoots struct {
	source, destination string
}

func resolveRoots(srcRoot, dstRoot string) (resolvedRoots, error) {
	src, err := filepath.EvalSymlinks(srcRoot)
	if err != nil {
		return resolvedRoots{}, fmt.Errorf("resolving source root: %w", err)
	}
	dst, err := safeio.EvalExisting(dstRoot)
	if err != nil {
		return resolvedRoots{}, fmt.Errorf("resolving destination root: %w", err)
	}
	return resolvedRoots{source: src, destination: dst}, nil
}

// check resolves the parent of each side. A symlinked entry itself is copied
// as a link, and a symlink at the destination is replaced, so neither is
// followed.
func (r resolvedRoots) check(op Operation) error {
	if err := safeio.CheckResolved(r.source, filepath.Dir(op.Source)); err != nil {
		return fmt.Errorf("source %s: %w", op.Source, err)
	}
	if err := safeio.CheckResolved(r.destination, filepath.Dir(op.Destination)); err != nil {
		return fmt.Errorf("destination %s: %w", op.Destination, err)
	}
	return nil
}

// precheck validates the pair and rejects a glob source whose destination is an
// existing file, before anything is matched.
func (e *Expander) precheck(pair Pair, dstRoot string) error {
	source, err := CleanSource(pair.Source)
	if err != nil {
		return err
	}
	if pair.Destination == nil {
		return nil
	}
	dest, _, err := CleanDestination(*pair.Destination)
	if err != nil {
		return err
	}
	if !HasMeta(source) {
		return nil
	}

	target := filepath.Join(dstRoot, filepath.FromSlash(dest))
	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		return &ConflictError{
			Source:      pair.Source,
			Destination: *pair.Destination,
			Path:        target,
			Reason:      ReasonGlobOntoFile,
		}
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (e *Expander) claim(claimed map[string]string, pair Pair, op Operation) error {
	prev, taken := claimed[op.Destination]
	claimed[op.Destination] = op.Source
	if !taken || prev == op.Source {
		return nil
	}
	if e.opts.DuplicateDestination == DuplicateReject {
		conflict := &ConflictError{Source: pair.Source, Path: op.Destination, Reason: ReasonDuplicateTarget}
		if pair.Destination != nil {
			conflict.Destination = *pair.Destination
		}
		return conflict
	}
	e.log.Warn("Destination written by more than one source; last one wins",
		logger.String("destination", op.Destination),
		logger.String("previous", prev),
		logger.String("source", op.Source))
	return nil
}

// Expand resolves pairs with default options.
func Expand(sourceRoot, destinationRoot string, pairs []Pair) ([]Operation, error) {
	return NewExpander(Options{}, nil).Expand(sourceRoot, destinationRoot, pairs)
}
