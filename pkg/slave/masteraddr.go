package slave

import "net"

// MasterSlot hands one discovered master address from the beacon goroutine
// to the worker goroutine. It is the channel-based substitute for the
// original implementation's mutex/condvar pair: Set is a non-blocking send
// that only succeeds while the slot is empty (mirroring the "only update
// master_addr if unset" guard before signalling), and Take blocks until a
// value arrives or stop is closed.
type MasterSlot struct {
	ch chan *net.TCPAddr
}

// NewMasterSlot creates an empty slot.
func NewMasterSlot() *MasterSlot {
	return &MasterSlot{ch: make(chan *net.TCPAddr, 1)}
}

// Set stores addr if the slot is empty. It reports whether the value was
// accepted; a false return means a master was already pending and addr is
// dropped, just as the beacon ignores further probes once master_addr is
// set.
func (s *MasterSlot) Set(addr *net.TCPAddr) bool {
	select {
	case s.ch <- addr:
		return true
	default:
		return false
	}
}

// Take blocks until a master address is available or stop is closed, in
// which case it returns nil. Each call consumes the slot, so the next
// beacon sighting can fill it again.
func (s *MasterSlot) Take(stop <-chan struct{}) *net.TCPAddr {
	select {
	case addr := <-s.ch:
		return addr
	case <-stop:
		return nil
	}
}
