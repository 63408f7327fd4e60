package master

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/synexec/synexec/pkg/transport"
	"github.com/synexec/synexec/pkg/wire"
)

func newTestAcceptor(t *testing.T, set *Slaveset) *Acceptor {
	t.Helper()
	a, err := NewAcceptor(net.ParseIP("127.0.0.1"), 0, set, 7, time.Second, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewAcceptor: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAcceptorAdmitsOnReply(t *testing.T) {
	set := NewSlaveset(1)
	a := newTestAcceptor(t, set)

	dial := func() {
		conn, err := net.Dial("tcp4", a.ln.Addr().String())
		if err != nil {
			t.Errorf("dial: %v", err)
			return
		}
		defer conn.Close()
		transport.Send(conn, 7, wire.Reply, nil, time.Second)
		time.Sleep(50 * time.Millisecond)
	}
	go dial()

	sl, err := a.AcceptOne(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("AcceptOne: %v", err)
	}
	if sl == nil {
		t.Fatal("AcceptOne returned nil slave, want admitted slave")
	}
	if set.Len() != 1 {
		t.Fatalf("slaveset len = %d, want 1", set.Len())
	}
}

func TestAcceptorRejectsBadHandshake(t *testing.T) {
	set := NewSlaveset(1)
	a := newTestAcceptor(t, set)

	go func() {
		conn, err := net.Dial("tcp4", a.ln.Addr().String())
		if err != nil {
			return
		}
		defer conn.Close()
		transport.Send(conn, 7, wire.Probe, nil, time.Second)
		time.Sleep(50 * time.Millisecond)
	}()

	sl, err := a.AcceptOne(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("AcceptOne: %v", err)
	}
	if sl != nil {
		t.Fatal("AcceptOne admitted a slave on a non-REPLY handshake")
	}
	if set.Len() != 0 {
		t.Fatalf("slaveset len = %d, want 0", set.Len())
	}
}

func TestAcceptorTimesOutWithNothingPending(t *testing.T) {
	set := NewSlaveset(1)
	a := newTestAcceptor(t, set)

	sl, err := a.AcceptOne(time.Now().Add(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("AcceptOne: %v", err)
	}
	if sl != nil {
		t.Fatal("AcceptOne returned a slave with no connection attempted")
	}
}
