// Package master implements the master side of the synexec protocol: the
// broadcast announcer, TCP acceptor, slaveset bookkeeping, and the
// DISCOVER -> CONFIG -> EXECUTE -> JOIN -> DONE session driver.
package master

import (
	"net"

	"github.com/synexec/synexec/pkg/wire"
)

// Slave is one admitted peer: its address, its live TCP connection, and its
// timing triple as reported (or not yet reported) by FINISHED.
type Slave struct {
	Addr   *net.TCPAddr
	Conn   net.Conn
	Timing wire.Timing
}

// Reported reports whether this slave's FINISHED message has been received
// (Timing[1], the "finished" slot, differs from the zero sentinel).
func (s *Slave) Reported() bool {
	return !s.Timing[1].IsZero()
}

// Slaveset is the master's ordered collection of admitted peers for one
// session. Insertion order is preserved and is the iteration order used by
// CONFIG and EXECUTE. At most one record exists per source IP address.
type Slaveset struct {
	required int
	slaves   []*Slave
}

// NewSlaveset creates an empty set targeting required members.
func NewSlaveset(required int) *Slaveset {
	return &Slaveset{required: required}
}

// Required returns the target member count.
func (s *Slaveset) Required() int { return s.required }

// Len returns the current member count.
func (s *Slaveset) Len() int { return len(s.slaves) }

// Complete reports whether the set has exactly Required() members.
func (s *Slaveset) Complete() bool { return len(s.slaves) == s.required }

// Slaves returns the members in insertion order. The returned slice must
// not be mutated by the caller.
func (s *Slaveset) Slaves() []*Slave { return s.slaves }

// Has reports whether addr's IP is already present, ignoring port.
func (s *Slaveset) Has(addr *net.TCPAddr) bool {
	for _, sl := range s.slaves {
		if sl.Addr.IP.Equal(addr.IP) {
			return true
		}
	}
	return false
}

// Add inserts a new member for addr/conn. It reports false without
// modifying the set if addr's IP is already present (the caller should
// close the redundant connection itself; Add never closes a connection it
// refuses, keeping ownership unambiguous).
func (s *Slaveset) Add(addr *net.TCPAddr, conn net.Conn) (*Slave, bool) {
	if s.Has(addr) {
		return nil, false
	}
	sl := &Slave{Addr: addr, Conn: conn}
	s.slaves = append(s.slaves, sl)
	return sl, true
}

// Remove drops sl from the set. It does not close sl.Conn; the caller owns
// that decision (the liveness-probe failure path closes before calling
// Remove).
func (s *Slaveset) Remove(sl *Slave) {
	for i, x := range s.slaves {
		if x == sl {
			s.slaves = append(s.slaves[:i], s.slaves[i+1:]...)
			return
		}
	}
}

// AllReported reports whether every member has a non-sentinel Timing[1].
func (s *Slaveset) AllReported() bool {
	for _, sl := range s.slaves {
		if !sl.Reported() {
			return false
		}
	}
	return true
}

// Unreported returns the members that have not yet sent FINISHED.
func (s *Slaveset) Unreported() []*Slave {
	var out []*Slave
	for _, sl := range s.slaves {
		if !sl.Reported() {
			out = append(out, sl)
		}
	}
	return out
}
