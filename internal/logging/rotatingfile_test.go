package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFileWritesAndAppends(t *testing.T) {
	dir := t.TempDir()
	rf, err := OpenRotatingFile(dir, "client", 3)
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("line one\n"))
	require.NoError(t, err)
	_, err = rf.Write([]byte("line two\n"))
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "client.log"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(b))
}

func TestPruneKeepsOnlyMaxFiles(t *testing.T) {
	dir := t.TempDir()
	rf, err := OpenRotatingFile(dir, "client", 2)
	require.NoError(t, err)
	defer rf.Close()

	for _, name := range []string{"client-20260101T000000.log", "client-20260102T000000.log", "client-20260103T000000.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	require.NoError(t, rf.prune())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var rolled int
	for _, e := range entries {
		if e.Name() != "client.log" {
			rolled++
		}
	}
	assert.Equal(t, 2, rolled)
}
