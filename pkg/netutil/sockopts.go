package netutil

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
)

// ListenUDP opens a UDP socket bound to laddr and, when ifaceName is
// non-empty, restricted to that interface (Linux: SO_BINDTODEVICE). It is
// used for sockets that only need to receive on a specific interface, such
// as the slave's beacon listener.
func ListenUDP(ifaceName string, laddr *net.UDPAddr) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: bindToDevice(ifaceName)}
	conn, err := lc.ListenPacket(context.Background(), "udp4", laddr.String())
	if err != nil {
		return nil, err
	}
	return conn.(*net.UDPConn), nil
}

// ListenBroadcastUDP is like ListenUDP but additionally enables SO_BROADCAST,
// for sockets that send datagrams to a broadcast address (the master's
// announcer).
func ListenBroadcastUDP(ifaceName string, laddr *net.UDPAddr) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: func(network, address string, c syscall.RawConn) error {
		if err := bindToDevice(ifaceName)(network, address, c); err != nil {
			return err
		}
		return setBroadcast(c)
	}}
	conn, err := lc.ListenPacket(context.Background(), "udp4", laddr.String())
	if err != nil {
		return nil, err
	}
	return conn.(*net.UDPConn), nil
}

// PacketConn wraps conn with golang.org/x/net/ipv4's control-message
// support so callers can learn which interface a datagram arrived on
// (IncomingIf), useful for diagnosing multi-homed hosts.
func PacketConn(conn *net.UDPConn) (*ipv4.PacketConn, error) {
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		// Control messages are a diagnostic nicety; not every platform
		// supports them, so degrade silently rather than failing setup.
		return pc, nil
	}
	return pc, nil
}

// IncomingIf returns the human-readable name of the interface a control
// message reports, or "" if unknown.
func IncomingIf(cm *ipv4.ControlMessage) string {
	if cm == nil || cm.IfIndex == 0 {
		return ""
	}
	if iface, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
		return iface.Name
	}
	return ""
}
