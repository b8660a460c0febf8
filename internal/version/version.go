// Package version exposes the build-time version string, the way the
// teacher's pkg/client/version.go exposes Version()/Semver() to the rest of
// the client.
package version

import (
	"fmt"

	"github.com/blang/semver"
)

// Version is set at build time via -ldflags; it defaults to a development
// marker so an unflagged build remains identifiable in logs.
var Version = "v0.0.0-dev"

// APIVersion is the wire-protocol version this client expects the server to
// speak. It is reported by Display; the session's server-version check
// compares against Semver() and only logs a warning.
const APIVersion = 1

// Display returns a printable "<version> (api v<n>)" string.
func Display() string {
	return fmt.Sprintf("%s (api v%d)", Version, APIVersion)
}

// Semver parses Version, falling back to 0.0.0 if it isn't well-formed
// (e.g. a "-dev" build tag without the numeric prefix stripped).
func Semver() semver.Version {
	v, err := semver.ParseTolerant(Version)
	if err != nil {
		return semver.Version{}
	}
	return v
}
