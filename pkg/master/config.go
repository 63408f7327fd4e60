package master

import (
	"time"

	"github.com/rs/zerolog"
)

// Config carries everything the session driver needs to run one session.
// Callers build it from CLI flags/environment and pass it to Run.
type Config struct {
	// Iface is the network interface to bind to ("" selects the default
	// route's interface).
	Iface string
	// Port is the UDP/TCP port used for both the broadcast probe and the
	// slave admission socket.
	Port uint16
	// Session discriminates this run's messages from any other session
	// sharing the broadcast domain.
	Session uint32
	// Required is the number of slaves to wait for before the session can
	// proceed past DISCOVER.
	Required int
	// Conf is the configuration payload sent to every admitted slave
	// during CONFIG.
	Conf []byte

	// AcceptTimeout bounds each wait for an incoming TCP connection
	// during DISCOVER; it also doubles as the PROBE re-broadcast
	// cadence and the liveness-probe cadence, matching the original's
	// single SYNEXEC_MASTER_COMM_PROBE_WAIT constant serving all three
	// roles in wait_slaves' one select-timeout loop.
	AcceptTimeout time.Duration
	// MessageTimeout bounds every individual send/receive against an
	// admitted slave (REPLY, CONF_OK, FINISHED, ...).
	MessageTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *Metrics
}
