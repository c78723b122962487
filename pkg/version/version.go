// Package version exposes the build version of alignblocks.
package version

// version is set at build time via -ldflags "-X github.com/rshade/alignblocks/pkg/version.version=...".
var version = "dev" //nolint:gochecknoglobals // Overridden by the linker

// GetVersion returns the build version, or "dev" for local builds.
func GetVersion() string {
	return version
}
