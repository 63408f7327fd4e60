// Package netutil resolves the local and broadcast IPv4 addresses of a
// network interface, and carries the platform-specific socket options the
// protocol packages need (SO_BINDTODEVICE, SO_BROADCAST).
package netutil

import (
	"fmt"
	"net"
)

// ResolveInterface returns the local IPv4 address and broadcast address of
// the named interface. If name is empty, the interface carrying the
// system's default route is used (detected by dialing a UDP "connection"
// that sends no packets, the same trick used by other local-discovery
// tools in this corpus).
func ResolveInterface(name string) (localIP, broadcastIP net.IP, err error) {
	var iface *net.Interface
	if name == "" {
		iface, err = defaultInterface()
	} else {
		iface, err = net.InterfaceByName(name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve interface %q: %w", name, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("list addrs for interface %q: %w", iface.Name, err)
	}

	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil {
			continue
		}
		return ipnet.IP.To4(), broadcastAddr(ipnet.IP.To4(), ipnet.Mask), nil
	}
	return nil, nil, fmt.Errorf("interface %q has no IPv4 address", iface.Name)
}

// broadcastAddr computes the IPv4 broadcast address for ip under mask:
// bitwise-OR of ip with the mask's complement.
func broadcastAddr(ip net.IP, mask net.IPMask) net.IP {
	bcast := make(net.IP, net.IPv4len)
	for i := range bcast {
		bcast[i] = ip[i] | ^mask[i]
	}
	return bcast
}

func defaultInterface() (*net.Interface, error) {
	conn, err := net.Dial("udp4", "255.255.255.255:1")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.UDPAddr).IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if ok && ipnet.IP.Equal(local) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface owns address %s", local)
}
