// Package version reports the billparse build.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/MeKo-Tech/billparse/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Current returns the build information. When the binary was built without
// ldflags, the commit falls back to the VCS revision embedded by the toolchain.
func Current() Build {
	b := Build{Version: Version, Commit: GitCommit, BuildDate: BuildDate}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	b.GoVersion = info.GoVersion
	if b.Commit == "unknown" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				b.Commit = s.Value
			}
		}
	}
	return b
}

// UserAgent is the User-Agent sent when downloading documents.
func UserAgent() string {
	return "billparse/" + Version
}

// String formats the build for `billparse --version`.
func String() string {
	b := Current()
	return fmt.Sprintf("%s (commit %s, built %s)", b.Version, b.Commit, b.BuildDate)
}
