package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wsvpn/client/internal/version"
)

func TestDisplayIncludesAPIVersion(t *testing.T) {
	assert.Contains(t, version.Display(), "api v1")
	assert.Contains(t, version.Display(), version.Version)
}

func TestSemverFallsBackOnUnparsableVersion(t *testing.T) {
	old := version.Version
	defer func() { version.Version = old }()

	version.Version = "not-a-version"
	assert.Equal(t, uint64(0), version.Semver().Major)
}

func TestSemverParsesDevTag(t *testing.T) {
	old := version.Version
	defer func() { version.Version = old }()

	version.Version = "v1.2.3-dev"
	sv := version.Semver()
	assert.Equal(t, uint64(1), sv.Major)
	assert.Equal(t, uint64(2), sv.Minor)
}
