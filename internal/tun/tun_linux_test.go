package tun

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/wsvpn/client/internal/errcat"
)

func TestHandleCloseIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	h := &Handle{file: r, name: "wsvpntest0", mtu: 1500}
	require.NoError(t, h.Close())
	assert.NoError(t, h.Close())
}

func TestWriteRejectsPacketLargerThanMTU(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	h := &Handle{file: w, name: "wsvpntest0", mtu: 4}
	assert.Error(t, h.Write([]byte{1, 2, 3, 4, 5}))
}

func TestOpenFailsGracefullyWithoutTunAccess(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: the permission/device-availability path this test exercises isn't reachable")
	}
	_, err := Open("wsvpntest0", "10.255.255.2", 30, 1500)
	require.Error(t, err)
	// Depending on the sandbox, /dev/net/tun may be entirely absent
	// (Unknown) or present but unopenable without privilege (Permission);
	// either way Open must fail categorized, never panic or hang.
	cat := errcat.GetCategory(err)
	assert.True(t, cat == errcat.Permission || cat == errcat.Unknown, "unexpected category %v", cat)
}

func TestIoctlTunSetInterfaceFlagsRejectsOverlongName(t *testing.T) {
	name := strings.Repeat("x", unix.IFNAMSIZ+1)
	_, err := ioctlTunSetInterfaceFlags(-1, name, unix.IFF_TUN|unix.IFF_NO_PI)
	assert.Equal(t, unix.EINVAL, err)
}
