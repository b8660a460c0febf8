package tun

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctlTunSetInterfaceFlags wraps the TUNSETIFF ioctl, creating or attaching
// to the named interface with the given flags and returning the kernel's
// chosen name (relevant when name contains a "%d" pattern).
func ioctlTunSetInterfaceFlags(fd int, name string, flags int16) (string, error) {
	var ifreq struct {
		name  [unix.IFNAMSIZ]byte
		flags int16
	}
	if len(name) > unix.IFNAMSIZ {
		return "", unix.EINVAL
	}
	copy(ifreq.name[:], name)
	ifreq.flags = flags

	// <linux/if_tun.h> declares TUNSETIFF as taking an 'int', not a pointer.
	err := unix.IoctlSetInt(fd, unix.TUNSETIFF, int(uintptr(unsafe.Pointer(&ifreq))))
	return string(bytes.SplitN(ifreq.name[:], []byte{0}, 2)[0]), err
}
