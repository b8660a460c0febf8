package statedir_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/statedir"
)

func TestResolveHonorsOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	got, err := statedir.Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveFallsBackToUserCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	got, err := statedir.Resolve("")
	require.NoError(t, err)
	assert.DirExists(t, got)
	assert.Contains(t, got, "wsvpn")
}
