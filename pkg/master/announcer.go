package master

import (
	"net"
	"time"

	"github.com/synexec/synexec/pkg/netutil"
	"github.com/synexec/synexec/pkg/wire"
)

// Announcer periodically broadcasts a PROBE datagram so slaves waiting on
// the LAN segment can discover this session.
type Announcer struct {
	conn    *net.UDPConn
	bcast   *net.UDPAddr
	session uint32
}

// NewAnnouncer opens (but does not yet use) the UDP broadcast socket for
// sending PROBE datagrams to bcastIP:port.
func NewAnnouncer(ifaceName string, bcastIP net.IP, port uint16, session uint32) (*Announcer, error) {
	conn, err := netutil.ListenBroadcastUDP(ifaceName, &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, err
	}
	return &Announcer{
		conn:    conn,
		bcast:   &net.UDPAddr{IP: bcastIP, Port: int(port)},
		session: session,
	}, nil
}

// Probe sends a single PROBE broadcast.
func (a *Announcer) Probe() error {
	msg := wire.New(a.session, wire.Probe, 0)
	_, err := a.conn.WriteToUDP(msg.Encode(), a.bcast)
	return err
}

// Run sends a PROBE broadcast immediately and then every interval, until
// stop is closed.
func (a *Announcer) Run(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		a.Probe()
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

// Close releases the broadcast socket.
func (a *Announcer) Close() error { return a.conn.Close() }
