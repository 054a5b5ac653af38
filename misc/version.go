// Package misc keeps build information set by the linker.
package misc

import (
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X cssimp/misc.version=... -X cssimp/misc.gitHash=...".
var (
	version = "dev"
	gitHash = ""
	appName = ""
)

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns commit program was built from, falls back to VCS
// information embedded by the go tool.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

// GetAppName returns short program name used for log and report files.
func GetAppName() string {
	if appName != "" {
		return appName
	}
	return "cssimp"
}

// ExecName returns name program was started with, without extension.
func ExecName(arg0 string) string {
	name := filepath.Base(arg0)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
