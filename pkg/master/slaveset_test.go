package master

import (
	"net"
	"testing"

	"github.com/synexec/synexec/pkg/wire"
)

func addr(ip string, port int) *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestSlavesetDedupByIP(t *testing.T) {
	s := NewSlaveset(2)

	if _, ok := s.Add(addr("10.0.0.1", 1001), nil); !ok {
		t.Fatal("first Add should succeed")
	}
	if _, ok := s.Add(addr("10.0.0.1", 2002), nil); ok {
		t.Fatal("Add with duplicate IP (different port) should be refused")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestSlavesetCompleteRequiresExactCount(t *testing.T) {
	s := NewSlaveset(2)
	if s.Complete() {
		t.Fatal("empty set should not be complete")
	}
	s.Add(addr("10.0.0.1", 1), nil)
	if s.Complete() {
		t.Fatal("set with 1/2 should not be complete")
	}
	s.Add(addr("10.0.0.2", 1), nil)
	if !s.Complete() {
		t.Fatal("set with 2/2 should be complete")
	}
}

func TestSlavesetInsertionOrderPreservedAfterRemove(t *testing.T) {
	s := NewSlaveset(3)
	a, _ := s.Add(addr("10.0.0.1", 1), nil)
	b, _ := s.Add(addr("10.0.0.2", 1), nil)
	c, _ := s.Add(addr("10.0.0.3", 1), nil)

	s.Remove(b)

	got := s.Slaves()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("Slaves() = %v, want [a, c]", got)
	}
}

func TestSlaveReportedAndAllReported(t *testing.T) {
	s := NewSlaveset(2)
	a, _ := s.Add(addr("10.0.0.1", 1), nil)
	b, _ := s.Add(addr("10.0.0.2", 1), nil)

	if s.AllReported() {
		t.Fatal("fresh slaveset should not be all-reported")
	}
	a.Timing[1] = wire.Timeval{Sec: 100}
	if s.AllReported() {
		t.Fatal("only one of two reported")
	}
	b.Timing[1] = wire.Timeval{Sec: 101}
	if !s.AllReported() {
		t.Fatal("both reported, want AllReported() == true")
	}
	if got := s.Unreported(); len(got) != 0 {
		t.Fatalf("Unreported() = %v, want empty", got)
	}
}
