// Package version holds the build version, overridable at link time with
// -ldflags "-X github.com/fieldnode/fndh-power/internal/version.Version=...".
package version

var (
	// Version is the release version of this build.
	Version = "0.9.1"

	// BuildDate is set at link time for release builds.
	BuildDate = "unknown"
)
