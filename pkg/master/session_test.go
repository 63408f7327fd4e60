package master

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/synexec/synexec/pkg/transport"
	"github.com/synexec/synexec/pkg/wire"
)

// fakeSlave is a minimal slave-side driver over a net.Pipe connection, used
// to exercise the master's config/execute/join phases without a real
// acceptor or subprocess.
type fakeSlave struct {
	conn    net.Conn
	session uint32
}

func newFakeSlavePair(session uint32) (*Slave, *fakeSlave) {
	return newFakeSlavePairAddr(session, "10.0.0.5")
}

func newFakeSlavePairAddr(session uint32, ip string) (*Slave, *fakeSlave) {
	client, server := net.Pipe()
	return &Slave{Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: 4242}, Conn: server},
		&fakeSlave{conn: client, session: session}
}

func (f *fakeSlave) recv(t *testing.T) wire.Message {
	t.Helper()
	msg, _, err := transport.Recv(f.conn, f.session, time.Second)
	if err != nil {
		t.Fatalf("fakeSlave recv: %v", err)
	}
	return msg
}

func (f *fakeSlave) send(t *testing.T, cmd wire.Command, payload []byte) {
	t.Helper()
	if err := transport.Send(f.conn, f.session, cmd, payload, time.Second); err != nil {
		t.Fatalf("fakeSlave send: %v", err)
	}
}

func testSession(set *Slaveset) *Session {
	return &Session{cfg: Config{
		Session:        1,
		MessageTimeout: time.Second,
		Logger:         zerolog.Nop(),
	}, set: set}
}

func TestSessionConfigSendsPayloadAndRequiresOK(t *testing.T) {
	set := NewSlaveset(1)
	sl, fs := newFakeSlavePair(1)
	set.slaves = append(set.slaves, sl)
	s := testSession(set)
	s.cfg.Conf = []byte("run --flag")

	done := make(chan error, 1)
	go func() { done <- s.config() }()

	msg, data, err := transport.Recv(fs.conn, fs.session, time.Second)
	if err != nil {
		t.Fatalf("fakeSlave recv: %v", err)
	}
	if msg.Command != wire.Conf {
		t.Fatalf("command = %v, want CONF", msg.Command)
	}
	if string(data) != "run --flag" {
		t.Fatalf("payload = %q, want %q", data, "run --flag")
	}
	fs.send(t, wire.ConfOK, nil)

	if err := <-done; err != nil {
		t.Fatalf("config() = %v", err)
	}
}

func TestSessionConfigFailsOnRefusal(t *testing.T) {
	set := NewSlaveset(1)
	sl, fs := newFakeSlavePair(1)
	set.slaves = append(set.slaves, sl)
	s := testSession(set)

	done := make(chan error, 1)
	go func() { done <- s.config() }()

	fs.recv(t)
	fs.send(t, wire.ConfNo, nil)

	if err := <-done; err == nil {
		t.Fatal("config() = nil, want error on CONF_NO")
	}
}

func TestSessionExecuteSendsToAll(t *testing.T) {
	set := NewSlaveset(2)
	sl1, fs1 := newFakeSlavePair(1)
	sl2, fs2 := newFakeSlavePair(1)
	set.slaves = append(set.slaves, sl1, sl2)
	s := testSession(set)

	done := make(chan error, 1)
	go func() { done <- s.execute() }()

	if fs1.recv(t).Command != wire.Exec {
		t.Fatal("slave 1 did not receive EXEC")
	}
	if fs2.recv(t).Command != wire.Exec {
		t.Fatal("slave 2 did not receive EXEC")
	}
	if err := <-done; err != nil {
		t.Fatalf("execute() = %v", err)
	}
}

func TestSessionJoinCollectsTiming(t *testing.T) {
	set := NewSlaveset(1)
	sl, fs := newFakeSlavePair(1)
	set.slaves = append(set.slaves, sl)
	s := testSession(set)

	done := make(chan error, 1)
	go func() { done <- s.join() }()

	timing := wire.Timing{
		{Sec: 1000, Usec: 0},
		{Sec: 1005, Usec: 500},
		{},
	}
	fs.send(t, wire.Finished, timing.Encode())

	if err := <-done; err != nil {
		t.Fatalf("join() = %v", err)
	}
	if sl.Timing[0].Sec != 1000 || sl.Timing[1].Sec != 1005 {
		t.Fatalf("slave timing = %+v, want started=1000 finished=1005", sl.Timing)
	}
	if !sl.Reported() {
		t.Fatal("slave should be Reported() after FINISHED")
	}
}

// TestSessionJoinDrainsStrayExecAck reproduces the gap where EXECUTE does
// not wait for EXEC_OK/EXEC_NO: that reply is still unread when join()
// starts, and join() must keep reading past it rather than mistaking it
// for the slave's FINISHED report.
func TestSessionJoinDrainsStrayExecAck(t *testing.T) {
	set := NewSlaveset(1)
	sl, fs := newFakeSlavePair(1)
	set.slaves = append(set.slaves, sl)
	s := testSession(set)

	done := make(chan error, 1)
	go func() { done <- s.join() }()

	fs.send(t, wire.ExecOK, nil)

	timing := wire.Timing{
		{Sec: 2000, Usec: 0},
		{Sec: 2010, Usec: 0},
		{},
	}
	fs.send(t, wire.Finished, timing.Encode())

	if err := <-done; err != nil {
		t.Fatalf("join() = %v", err)
	}
	if sl.Timing[0].Sec != 2000 || sl.Timing[1].Sec != 2010 {
		t.Fatalf("slave timing = %+v, want started=2000 finished=2010", sl.Timing)
	}
}

// TestSessionProbeLivenessDropsMidListSlave checks that a liveness-probe
// failure partway through the slave list doesn't skip or double-probe its
// neighbors: Remove mutates the set's backing slice in place, so
// probeLiveness must iterate over a snapshot taken before any removal.
func TestSessionProbeLivenessDropsMidListSlave(t *testing.T) {
	set := NewSlaveset(3)
	slA, fsA := newFakeSlavePairAddr(1, "10.0.0.5")
	slB, fsB := newFakeSlavePairAddr(1, "10.0.0.6")
	slC, fsC := newFakeSlavePairAddr(1, "10.0.0.7")
	set.slaves = append(set.slaves, slA, slB, slC)
	s := testSession(set)

	bProbes := make(chan struct{}, 2)
	cProbes := make(chan struct{}, 2)
	go func() {
		for {
			msg, _, err := transport.Recv(fsB.conn, 1, time.Second)
			if err != nil {
				return
			}
			if msg.Command == wire.Probe {
				bProbes <- struct{}{}
				fsB.send(t, wire.Reply, nil)
			}
		}
	}()
	go func() {
		for {
			msg, _, err := transport.Recv(fsC.conn, 1, time.Second)
			if err != nil {
				return
			}
			if msg.Command == wire.Probe {
				cProbes <- struct{}{}
				fsC.send(t, wire.Reply, nil)
			}
		}
	}()

	// slA never replies to its PROBE; sending that PROBE fails once fsA's
	// pipe is closed below, dropping it from the set mid-iteration.
	fsA.conn.Close()

	s.probeLiveness()

	if set.Len() != 2 {
		t.Fatalf("set.Len() = %d, want 2 after dropping slave A", set.Len())
	}
	if !set.Has(slB.Addr) || !set.Has(slC.Addr) {
		t.Fatal("slaves B and C should both remain admitted")
	}
	select {
	case <-bProbes:
	default:
		t.Fatal("slave B was never probed")
	}
	select {
	case <-cProbes:
	default:
		t.Fatal("slave C was never probed")
	}
	if len(cProbes) != 0 {
		t.Fatalf("slave C was probed %d extra time(s)", len(cProbes))
	}
}
