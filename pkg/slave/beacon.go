package slave

import (
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/synexec/synexec/pkg/netutil"
	"github.com/synexec/synexec/pkg/wire"
	"golang.org/x/net/ipv4"
)

// Beacon listens on the interface's broadcast address for a PROBE from a
// master in the same session and hands its address to slot.
type Beacon struct {
	conn    *net.UDPConn
	pconn   *ipv4.PacketConn
	slot    *MasterSlot
	port    uint16
	session uint32
	log     zerolog.Logger
	metrics *Metrics
}

// NewBeacon binds a UDP socket to bcastIP:port, matching the original
// implementation's choice to bind the listening socket directly to the
// broadcast address rather than the interface's unicast address. The
// socket is additionally wrapped for IPv4 control messages so Run can log
// which local interface a probe arrived on, useful on multi-homed slaves.
func NewBeacon(ifaceName string, bcastIP net.IP, port uint16, session uint32, slot *MasterSlot, log zerolog.Logger, m *Metrics) (*Beacon, error) {
	conn, err := netutil.ListenUDP(ifaceName, &net.UDPAddr{IP: bcastIP, Port: int(port)})
	if err != nil {
		return nil, err
	}
	pconn, err := netutil.PacketConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Beacon{conn: conn, pconn: pconn, slot: slot, port: port, session: session, log: log, metrics: m}, nil
}

// Close releases the beacon socket.
func (b *Beacon) Close() error { return b.conn.Close() }

// Run reads datagrams until stop is closed, accepting only well-formed
// PROBE messages for this session and depositing the sender's address
// (with its port corrected to the protocol port, since the sender's UDP
// source port is ephemeral) into the slot.
func (b *Beacon) Run(loopTimeout time.Duration, stop <-chan struct{}) error {
	buf := make([]byte, wire.HeaderSize)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		b.conn.SetReadDeadline(time.Now().Add(loopTimeout))
		n, cm, addr, err := b.pconn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		if n != wire.HeaderSize {
			continue
		}
		msg, err := wire.Decode(buf[:n])
		if err != nil || msg.Command != wire.Probe || msg.Session != b.session {
			continue
		}

		if b.metrics != nil {
			b.metrics.probes_received_total.Inc()
		}
		udpAddr := addr.(*net.UDPAddr)
		master := &net.TCPAddr{IP: udpAddr.IP, Port: int(b.port)}
		if b.slot.Set(master) {
			b.log.Info().Stringer("addr", master).Str("via_iface", netutil.IncomingIf(cm)).Msg("discovered master")
		}
	}
}
