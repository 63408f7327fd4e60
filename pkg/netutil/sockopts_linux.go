//go:build linux

package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// bindToDevice returns a net.ListenConfig Control hook that restricts the
// socket to ifaceName via SO_BINDTODEVICE, mirroring the original C
// implementation's comm_init()/wait_slaves() use of setsockopt(...,
// SO_BINDTODEVICE, ifname). No-op when ifaceName is empty.
func bindToDevice(ifaceName string) func(network, address string, c syscall.RawConn) error {
	if ifaceName == "" {
		return func(string, string, syscall.RawConn) error { return nil }
	}
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		if err := c.Control(func(fd uintptr) {
			sockErr = unix.BindToDevice(int(fd), ifaceName)
		}); err != nil {
			return err
		}
		return sockErr
	}
}

func setBroadcast(c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
