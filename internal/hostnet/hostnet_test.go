package hostnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildResolvConfListsEachServer(t *testing.T) {
	got := buildResolvConf([]string{"10.0.0.1", "10.0.0.2"})
	assert.Contains(t, got, "nameserver 10.0.0.1\n")
	assert.Contains(t, got, "nameserver 10.0.0.2\n")
}

func TestRestoreIsNoopWhenNothingApplied(t *testing.T) {
	c := &Config{StateDir: t.TempDir()}
	assert.NoError(t, c.Restore(nil))
}
