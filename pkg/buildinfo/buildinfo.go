package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time via -ldflags "-X github.com/fulmenhq/repodeploy/pkg/buildinfo.BinaryVersion=...".
var (
	BinaryVersion = "dev"
	Commit        = ""
	BuildDate     = ""
)

// ModuleVersion returns the module version embedded by the Go toolchain (when available).
func ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return ""
}

// VCSRevision falls back to the vcs.revision build setting when Commit was not injected.
func VCSRevision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

// Summary is the one-line string printed by `repodeploy version`.
func Summary() string {
	s := "repodeploy " + BinaryVersion
	if rev := VCSRevision(); rev != "" {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		s += " (" + rev + ")"
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return fmt.Sprintf("%s %s/%s %s", s, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
