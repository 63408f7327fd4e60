//go:build !linux

package netutil

import "syscall"

// bindToDevice is a best-effort no-op outside Linux: SO_BINDTODEVICE has no
// portable equivalent, so on other platforms the broadcast/beacon sockets
// rely solely on binding to the interface's own IP address.
func bindToDevice(ifaceName string) func(network, address string, c syscall.RawConn) error {
	return func(string, string, syscall.RawConn) error { return nil }
}

func setBroadcast(c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
