package master

import (
	"net"
	"testing"
	"time"

	"github.com/synexec/synexec/pkg/wire"
)

func TestAnnouncerProbeSendsMessage(t *testing.T) {
	rx, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer rx.Close()

	ann, err := NewAnnouncer("", net.ParseIP("127.0.0.1"), uint16(rx.LocalAddr().(*net.UDPAddr).Port), 99)
	if err != nil {
		t.Fatalf("NewAnnouncer: %v", err)
	}
	defer ann.Close()

	if err := ann.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	rx.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, wire.HeaderSize)
	n, _, err := rx.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	msg, err := wire.Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Command != wire.Probe || msg.Session != 99 {
		t.Fatalf("got %+v, want PROBE session=99", msg)
	}
}
