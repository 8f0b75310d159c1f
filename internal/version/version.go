// Package version holds build metadata for DevicePulse, injected at link time:
//
//	go build -ldflags "-X github.com/HerbHall/devicepulse/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the one-line string printed by `devicepulse version`.
func Info() string {
	return fmt.Sprintf("DevicePulse %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns the bare version, e.g. "1.2.0" or "dev".
func Short() string {
	return Version
}

// Map returns build metadata keyed for JSON output.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}
