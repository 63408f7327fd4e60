package master

import (
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/synexec/synexec/pkg/transport"
	"github.com/synexec/synexec/pkg/wire"
)

// Acceptor listens for incoming slave connections and admits the ones that
// complete the REPLY handshake, inserting them into set.
type Acceptor struct {
	ln      net.Listener
	set     *Slaveset
	session uint32
	timeout time.Duration
	log     zerolog.Logger
	metrics *Metrics
}

// NewAcceptor binds a TCP listener on ifaceIP:port.
func NewAcceptor(ifaceIP net.IP, port uint16, set *Slaveset, session uint32, timeout time.Duration, log zerolog.Logger, m *Metrics) (*Acceptor, error) {
	ln, err := net.Listen("tcp4", (&net.TCPAddr{IP: ifaceIP, Port: int(port)}).String())
	if err != nil {
		return nil, err
	}
	return &Acceptor{ln: ln, set: set, session: session, timeout: timeout, log: log, metrics: m}, nil
}

// Close releases the listening socket.
func (a *Acceptor) Close() error { return a.ln.Close() }

// AcceptOne waits up to deadline for one connection, performs the REPLY
// handshake, and admits it into the slaveset. It returns (nil, nil) on a
// timeout with nothing to accept, so the caller can loop until the set is
// Complete().
func (a *Acceptor) AcceptOne(deadline time.Time) (*Slave, error) {
	if tl, ok := a.ln.(*net.TCPListener); ok {
		tl.SetDeadline(deadline)
	}
	conn, err := a.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	tcpAddr, _ := conn.RemoteAddr().(*net.TCPAddr)
	a.log.Debug().Stringer("addr", conn.RemoteAddr()).Msg("accepted connection")

	msg, _, err := transport.Recv(conn, a.session, a.timeout)
	if err != nil || msg.Command != wire.Reply {
		conn.Close()
		if a.metrics != nil {
			a.metrics.slaves_rejected_total.bad_handshake.Inc()
		}
		return nil, nil
	}

	sl, ok := a.set.Add(tcpAddr, conn)
	if !ok {
		conn.Close()
		if a.metrics != nil {
			a.metrics.slaves_rejected_total.duplicate_ip.Inc()
		}
		return nil, nil
	}
	if a.metrics != nil {
		a.metrics.slaves_admitted_total.Inc()
	}
	a.log.Info().Stringer("addr", tcpAddr).Msg("slave admitted")
	return sl, nil
}
