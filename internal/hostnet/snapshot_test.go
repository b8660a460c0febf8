package hostnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := &Snapshot{
		Routes: []routeRecord{{LinkIndex: 2, Gw: "192.0.2.1", Priority: 0}},
		Resolv: []byte("nameserver 192.0.2.53\n"),
	}
	require.NoError(t, s.Persist(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.Routes, loaded.Routes)
	assert.Equal(t, s.Resolv, loaded.Resolv)
}

func TestLoadWithNoSnapshotReturnsNil(t *testing.T) {
	loaded, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestClearRemovesSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	s := &Snapshot{Resolv: []byte("x")}
	require.NoError(t, s.Persist(dir))

	require.NoError(t, Clear(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
