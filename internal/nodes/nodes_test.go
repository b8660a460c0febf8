package nodes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/frame"
	"github.com/wsvpn/client/internal/nodes"
)

func TestUpdateThenListReturnsSortedEntries(t *testing.T) {
	d := nodes.Open(t.TempDir())
	require.NoError(t, d.Update(map[string]frame.Node{
		"us-west": {Label: "US West", Endpoint: "us-west.example.test", Healthy: true},
		"ap-south": {Label: "AP South", Endpoint: "ap-south.example.test", Healthy: false},
	}))

	entries, err := d.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ap-south", entries[0].ID)
	assert.Equal(t, "us-west", entries[1].ID)
	assert.True(t, entries[1].Node.Healthy)
}

func TestListWithNoCacheReturnsEmpty(t *testing.T) {
	d := nodes.Open(t.TempDir())
	entries, err := d.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
