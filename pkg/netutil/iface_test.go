package netutil

import (
	"net"
	"testing"
)

func TestBroadcastAddr(t *testing.T) {
	for _, tc := range []struct {
		ip   string
		mask string
		want string
	}{
		{"192.168.1.42", "255.255.255.0", "192.168.1.255"},
		{"10.0.0.1", "255.0.0.0", "10.255.255.255"},
		{"172.16.5.200", "255.255.240.0", "172.16.15.255"},
	} {
		ip := net.ParseIP(tc.ip).To4()
		mask := net.IPMask(net.ParseIP(tc.mask).To4())
		got := broadcastAddr(ip, mask)
		if got.String() != tc.want {
			t.Errorf("broadcastAddr(%s, %s) = %s, want %s", tc.ip, tc.mask, got, tc.want)
		}
	}
}

func TestResolveInterfaceLoopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	if err != nil {
		t.Skipf("cannot list interfaces: %v", err)
	}
	var lo string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			lo = iface.Name
			break
		}
	}
	if lo == "" {
		t.Skip("no loopback interface found")
	}

	local, bcast, err := ResolveInterface(lo)
	if err != nil {
		t.Fatalf("ResolveInterface(%q): %v", lo, err)
	}
	if local == nil || bcast == nil {
		t.Fatalf("got nil address: local=%v bcast=%v", local, bcast)
	}
}
