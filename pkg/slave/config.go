// Package slave implements the slave side of the synexec protocol: the
// beacon that listens for a master's broadcast PROBE, and the worker that
// connects to the discovered master and drives the CONF/EXEC/FINISHED
// command loop, spawning and timing the configured child process.
package slave

import (
	"time"

	"github.com/rs/zerolog"
)

// Config carries everything the beacon and worker need for one run.
type Config struct {
	// Iface is the network interface to bind to ("" selects the default
	// route's interface).
	Iface string
	// Port is the UDP/TCP port the master uses for both PROBE and the
	// admission socket.
	Port uint16
	// Session discriminates this run's messages from any other session
	// sharing the broadcast domain; a PROBE for any other session is
	// ignored.
	Session uint32

	// ConfDir holds the per-process scratch configuration file written
	// on CONF (synexec_slave_conf.<pid>).
	ConfDir string
	// OutputFile is where a spawned child's stdout and stderr are
	// redirected, truncated before each EXEC.
	OutputFile string

	// BeaconLoopTimeout bounds each wait for an incoming PROBE, so the
	// beacon loop can observe a closed stop channel promptly.
	BeaconLoopTimeout time.Duration
	// MessageTimeout bounds the worker's wait for the next command from
	// the master; a timeout is not an error, it is the cue to check
	// whether a FINISHED report is due.
	MessageTimeout time.Duration
	// ReconnectDelay is the initial backoff delay after a failed connection
	// attempt, before the worker goes back to waiting for the next PROBE;
	// it doubles on each consecutive failure, up to 30s. A connection that
	// was established and then ended is followed by no delay.
	ReconnectDelay time.Duration

	Logger  zerolog.Logger
	Metrics *Metrics
}
