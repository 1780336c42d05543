//go:build !linux

package listener

import "syscall"

// setListenerOptions is a no-op on non-Linux platforms; see sockopt_linux.go.
func setListenerOptions(network, address string, c syscall.RawConn) error {
	return nil
}
