// Package exitcode provides standardized exit codes for repodeploy
package exitcode

import (
	"errors"
	"io/fs"

	"github.com/fulmenhq/repodeploy/internal/gitctx"
	"github.com/fulmenhq/repodeploy/pkg/config"
	"github.com/fulmenhq/repodeploy/pkg/event"
	"github.com/fulmenhq/repodeploy/pkg/pattern"
	"github.com/fulmenhq/repodeploy/pkg/registry"
	"github.com/fulmenhq/repodeploy/pkg/scheduler"
)

// Exit codes for the repodeploy CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	PatternConflict = 10
	VCSError        = 11
	NotFound        = 12
	SchedulerError  = 13
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case PatternConflict:
		return "Pattern conflict"
	case VCSError:
		return "Version control error"
	case NotFound:
		return "Not found"
	case SchedulerError:
		return "Scheduler error"
	default:
		return "Unknown error"
	}
}

// FromError maps an error returned by a command to its exit code. Sentinels
// are checked before the generic file-system case, since a VCS or copy failure
// usually wraps a *fs.PathError as well.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, pattern.ErrPatternConflict):
		return PatternConflict
	case errors.Is(err, pattern.ErrInvalidPattern):
		return ValidationError
	case errors.Is(err, event.ErrInvalidEvent), errors.Is(err, config.ErrInvalidConfig):
		return ConfigError
	case errors.Is(err, gitctx.ErrVCS):
		return VCSError
	case errors.Is(err, registry.ErrNotFound):
		return NotFound
	case errors.Is(err, scheduler.ErrScheduler):
		return SchedulerError
	case errors.As(err, &pathErr):
		return FileSystemError
	default:
		return GeneralError
	}
}
