// Package version exposes build metadata for the stagehand binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via ldflags on release builds; dev builds fall back to the module's
// embedded VCS info.
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// GetInfo returns the human-readable version line printed by the version
// command and the serve startup log, e.g. "stagehand dev (1a2b3c4)".
func GetInfo() string {
	commit, when := CommitHash, BuildTime
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					commit = s.Value
				case "vcs.time":
					when = s.Value
				}
			}
		}
	}
	CommitHash, BuildTime = commit, when

	if commit == "" {
		return fmt.Sprintf("stagehand %s", Version)
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("stagehand %s (%s)", Version, commit)
}
