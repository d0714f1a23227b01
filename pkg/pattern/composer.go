package pattern

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/fulmenhq/repodeploy/pkg/safeio"
)

// DirectoryPolicy decides what happens when a directory source resolves to a
// directory that already exists in the destination repository.
type DirectoryPolicy string

const (
	// DirectoryMerge copies the source tree into the existing directory.
	DirectoryMerge DirectoryPolicy = "merge"
	// DirectoryReject raises a Pattern Conflict.
	DirectoryReject DirectoryPolicy = "error"
)

// ParseDirectoryPolicy accepts "merge" or "error"; empty means merge.
func ParseDirectoryPolicy(s string) (DirectoryPolicy, error) {
	switch DirectoryPolicy(s) {
	case "", DirectoryMerge:
		return DirectoryMerge, nil
	case DirectoryReject:
		return DirectoryReject, nil
	default:
		return "", fmt.Errorf("unknown existing-directory policy %q (want merge|error)", s)
	}
}

// Composer resolves the destination path of one matched entry.
type Composer struct {
	SourceRoot        string
	DestinationRoot   string
	ExistingDirectory DirectoryPolicy
}

// Compose applies the composition rules to entry:
//   - no destination: mirror the entry's relative path under the destination root
//   - file entry, destination with an extension: the destination is the file
//   - file entry, destination without an extension: destination/<entry name>
//   - directory entry: the destination is the directory, whatever it looks like
//
// source is the pair's source pattern and only appears in conflict errors.
func (c Composer) Compose(entry Entry, source string, destination *string) (string, error) {
	rel, err := safeio.CleanRelativePath(entry.Path)
	if err != nil {
		return "", fmt.Errorf("%w: matched entry %q: %v", ErrInvalidPattern, entry.Path, err)
	}

	var target string
	if destination == nil {
		target = filepath.Join(c.DestinationRoot, filepath.FromSlash(rel))
	} else {
		dest, dirOnly, err := CleanDestination(*destination)
		if err != nil {
			return "", err
		}
		target = filepath.Join(c.DestinationRoot, filepath.FromSlash(dest))
		if !entry.IsDir && (dirOnly || Suffix(dest) == "") {
			target = filepath.Join(target, path.Base(rel))
		}
	}

	if entry.IsDir {
		if err := c.checkDirectoryTarget(target, source, destination); err != nil {
			return "", err
		}
	}
	return target, nil
}

func (c Composer) checkDirectoryTarget(target, source string, destination *string) error {
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	reason := ""
	switch {
	case !info.IsDir():
		reason = ReasonDirectoryOntoFile
	case c.ExistingDirectory == DirectoryReject:
		reason = ReasonDirectoryExists
	default:
		return nil
	}

	conflict := &ConflictError{Source: source, Path: target, Reason: reason}
	if destination != nil {
		conflict.Destination = *destination
	}
	return conflict
}

// Compose resolves one entry with the default (merge) directory policy.
func Compose(entry Entry, sourceRoot string, destination *string, destinationRoot string) (string, error) {
	c := Composer{SourceRoot: sourceRoot, DestinationRoot: destinationRoot, ExistingDirectory: DirectoryMerge}
	return c.Compose(entry, entry.Path, destination)
}
