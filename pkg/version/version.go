// Package version carries build identification stamped in by the
// linker.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at build time
var (
	// Version is the release version, "dev" for unstamped builds
	Version = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// GetVersionInfo returns the full human-readable version line
func GetVersionInfo() string {
	return fmt.Sprintf("MemStep v%s (built: %s, %s/%s)",
		Version, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// GetVersion returns just the version number
func GetVersion() string {
	return Version
}
