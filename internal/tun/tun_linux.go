// Package tun implements the client-side virtual network interface: create,
// configure, and perform non-blocking packet I/O on a kernel TUN device.
// Grounded on the teacher's pkg/client/daemon/tun package, which opens
// /dev/net/tun with the same ioctls; this repurposes that device-creation
// step for opaque IP-packet forwarding instead of the teacher's DNS-request
// interception use of it.
package tun

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/wsvpn/client/internal/errcat"
)

// MaxPacketSize bounds a single read/write; packets larger than an
// interface's MTU are never produced by the kernel, but callers size their
// buffers against this constant for safety margin.
const MaxPacketSize = 65536

// Handle owns a TUN device's file descriptor and kernel-assigned identity.
// The Supervisor is its exclusive owner; it lends Read/Write access to the
// packet pump.
type Handle struct {
	file *os.File
	name string
	mtu  int
}

// Name returns the kernel-assigned interface name (e.g. "tun0").
func (h *Handle) Name() string { return h.name }

// Open creates a TUN interface named name (a literal name, not a template),
// assigns address/prefix to it, sets its MTU, and brings the link up. Any
// failed sub-step rolls back everything opened so far.
func Open(name, address string, prefix, mtu int) (h *Handle, err error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		if err == unix.EACCES || err == unix.EPERM {
			return nil, errcat.Permission.Newf("open /dev/net/tun: %w", err)
		}
		if err == unix.ENOENT || err == unix.ENODEV {
			return nil, errcat.Unknown.Newf("TUN/TAP driver unavailable: %w", err)
		}
		return nil, errcat.Unknown.Newf("open /dev/net/tun: %w", err)
	}

	kernelName, err := ioctlTunSetInterfaceFlags(fd, name, unix.IFF_TUN|unix.IFF_NO_PI)
	if err != nil {
		_ = unix.Close(fd)
		if err == unix.EBUSY || err == unix.EEXIST {
			return nil, errcat.Unknown.Newf("interface %s already in use: %w", name, err)
		}
		return nil, errcat.Permission.Newf("TUNSETIFF %s: %w", name, err)
	}

	// Non-blocking so Read never hangs past Close; see golang/go#30426.
	_ = unix.SetNonblock(fd, true)
	file := os.NewFile(uintptr(fd), kernelName)

	defer func() {
		if err != nil {
			_ = file.Close()
		}
	}()

	link, err := netlink.LinkByName(kernelName)
	if err != nil {
		return nil, errcat.Unknown.Newf("lookup link %s: %w", kernelName, err)
	}
	if err = netlink.LinkSetMTU(link, mtu); err != nil {
		return nil, errcat.Permission.Newf("set mtu on %s: %w", kernelName, err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: net.ParseIP(address), Mask: net.CIDRMask(prefix, 32)}}
	if err = netlink.AddrAdd(link, addr); err != nil {
		return nil, errcat.Permission.Newf("assign address %s/%d to %s: %w", address, prefix, kernelName, err)
	}
	if err = netlink.LinkSetUp(link); err != nil {
		return nil, errcat.Permission.Newf("bring up %s: %w", kernelName, err)
	}

	return &Handle{file: file, name: kernelName, mtu: mtu}, nil
}

// Read returns one packet, or (0, err) with err wrapping unix.EAGAIN when
// no packet is currently available (WouldBlock), or io.EOF-equivalent when
// the handle has been closed.
func (h *Handle) Read(buf []byte) (int, error) {
	n, err := h.file.Read(buf)
	if err != nil {
		return 0, classifyIOErr(err)
	}
	return n, nil
}

// Write sends one packet. A packet larger than mtu is rejected without
// being attempted.
func (h *Handle) Write(packet []byte) error {
	if len(packet) > h.mtu {
		return fmt.Errorf("packet of %d bytes exceeds mtu %d", len(packet), h.mtu)
	}
	_, err := h.file.Write(packet)
	if err != nil {
		return classifyIOErr(err)
	}
	return nil
}

// Fd exposes the underlying descriptor for readiness polling.
func (h *Handle) Fd() uintptr {
	return h.file.Fd()
}

// Close is idempotent; closing an already-closed handle returns nil.
func (h *Handle) Close() error {
	err := h.file.Close()
	if err != nil && errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// classifyIOErr exists so the WouldBlock case reads clearly at call sites;
// os.PathError already unwraps to the syscall.Errno, so errors.Is(err,
// unix.EAGAIN) works on the value returned here unchanged.
func classifyIOErr(err error) error {
	return err
}
