//go:build linux

package listener

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setListenerOptions configures SO_REUSEADDR and disables IPV6_V6ONLY so a
// single "::" socket also accepts IPv4 clients via mapped addresses.
func setListenerOptions(network, address string, c syscall.RawConn) error {
	var sysErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
			sysErr = e
			return
		}
		if network == "tcp6" || network == "tcp" {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); e != nil {
				// Some platforms reject this on a plain IPv4 socket; ignore.
				_ = e
			}
		}
	})
	if err != nil {
		return err
	}
	return sysErr
}
