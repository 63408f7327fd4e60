package master

import (
	"fmt"
	"time"

	"github.com/synexec/synexec/pkg/netutil"
	"github.com/synexec/synexec/pkg/transport"
	"github.com/synexec/synexec/pkg/wire"
)

// Session runs one master-side synexec session end to end: DISCOVER,
// CONFIG, EXECUTE, JOIN, DONE. Each phase is driven from this single
// goroutine, except JOIN, which fans reads from every live slave into one
// channel (Go has no select() over arbitrary file descriptors, so this
// goroutine-per-connection fan-in is the idiomatic substitute; the driver
// itself still consumes results one at a time).
type Session struct {
	cfg  Config
	set  *Slaveset
	ann  *Announcer
	acc  *Acceptor
}

// Run resolves the configured interface, opens the announcer and acceptor,
// and drives the session to completion.
func Run(cfg Config) error {
	start := time.Now()
	localIP, bcastIP, err := netutil.ResolveInterface(cfg.Iface)
	if err != nil {
		return fmt.Errorf("resolve interface: %w", err)
	}

	set := NewSlaveset(cfg.Required)

	ann, err := NewAnnouncer(cfg.Iface, bcastIP, cfg.Port, cfg.Session)
	if err != nil {
		return fmt.Errorf("open announcer: %w", err)
	}
	defer ann.Close()

	acc, err := NewAcceptor(localIP, cfg.Port, set, cfg.Session, cfg.MessageTimeout, cfg.Logger, cfg.Metrics)
	if err != nil {
		return fmt.Errorf("open acceptor: %w", err)
	}
	defer acc.Close()

	s := &Session{cfg: cfg, set: set, ann: ann, acc: acc}

	if err := s.discover(); err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	cfg.Logger.Info().Int("slaves", set.Len()).Msg("all slaves joined, configuring")

	if err := s.config(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Logger.Info().Msg("all slaves configured, executing")

	if err := s.execute(); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	cfg.Logger.Info().Msg("slaves executing, waiting for completion")

	if err := s.join(); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	cfg.Logger.Info().Msg("session finished")

	if cfg.Metrics != nil {
		cfg.Metrics.session_duration_seconds.Update(time.Since(start).Seconds())
	}
	for _, sl := range set.Slaves() {
		cfg.Logger.Info().
			Stringer("addr", sl.Addr).
			Int64("started_sec", sl.Timing[0].Sec).
			Int64("finished_sec", sl.Timing[1].Sec).
			Msg("slave timing")
	}
	return nil
}

// discover broadcasts PROBE, then accepts REPLY connections for up to
// cfg.AcceptTimeout, repeating until the slaveset reaches cfg.Required
// members; already-admitted slaves are liveness-probed between rounds.
func (s *Session) discover() error {
	for !s.set.Complete() {
		if err := s.ann.Probe(); err != nil {
			return fmt.Errorf("broadcast probe: %w", err)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.probes_sent_total.Inc()
		}

		round := time.Now().Add(s.cfg.AcceptTimeout)
		for !s.set.Complete() && time.Now().Before(round) {
			sl, err := s.acc.AcceptOne(round)
			if err != nil {
				return err
			}
			if sl == nil {
				break
			}
		}

		s.probeLiveness()
	}
	return nil
}

// probeLiveness sends a PROBE to every admitted slave and drops any that
// don't answer with REPLY, mirroring slaveset_complete's liveness sweep.
//
// It snapshots the member list before probing: dropSlave removes from the
// set's live backing slice, and ranging over that slice directly while
// mutating it mid-loop skips/re-visits members around the removed index.
func (s *Session) probeLiveness() {
	slaves := append([]*Slave(nil), s.set.Slaves()...)
	for _, sl := range slaves {
		if err := transport.Send(sl.Conn, s.cfg.Session, wire.Probe, nil, s.cfg.MessageTimeout); err != nil {
			s.dropSlave(sl)
			continue
		}
		msg, _, err := transport.Recv(sl.Conn, s.cfg.Session, s.cfg.MessageTimeout)
		if err != nil || msg.Command != wire.Reply {
			s.dropSlave(sl)
		}
	}
}

func (s *Session) dropSlave(sl *Slave) {
	s.cfg.Logger.Warn().Stringer("addr", sl.Addr).Msg("slave failed liveness probe, dropping")
	sl.Conn.Close()
	s.set.Remove(sl)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.slaves_lost_total.Inc()
	}
}

// config sends the configuration payload to every slave in turn, requiring
// a CONF_OK reply from each before moving to the next.
func (s *Session) config() error {
	for _, sl := range s.set.Slaves() {
		if err := transport.Send(sl.Conn, s.cfg.Session, wire.Conf, s.cfg.Conf, s.cfg.MessageTimeout); err != nil {
			return fmt.Errorf("send conf to %s: %w", sl.Addr, err)
		}
		msg, _, err := transport.Recv(sl.Conn, s.cfg.Session, s.cfg.MessageTimeout)
		if err != nil {
			return fmt.Errorf("recv conf ack from %s: %w", sl.Addr, err)
		}
		if msg.Command != wire.ConfOK {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.config_rejected_total.Inc()
			}
			return fmt.Errorf("slave %s refused configuration", sl.Addr)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.config_sent_total.Inc()
		}
	}
	return nil
}

// execute sends EXEC to every slave without waiting for acknowledgement,
// so all slaves start as close to simultaneously as the network allows.
func (s *Session) execute() error {
	for _, sl := range s.set.Slaves() {
		if err := transport.Send(sl.Conn, s.cfg.Session, wire.Exec, nil, s.cfg.MessageTimeout); err != nil {
			return fmt.Errorf("send exec to %s: %w", sl.Addr, err)
		}
	}
	return nil
}

// joinResult is one FINISHED (or error) read fanned in from a slave's
// reader goroutine during join().
type joinResult struct {
	slave *Slave
	msg   wire.Message
	data  []byte
	err   error
}

// join waits for every slave to report FINISHED. One goroutine per
// unreported slave blocks on a read and reports onto a shared channel; this
// goroutine-per-connection fan-in is join_slaves' select() loop reworked
// for Go's connection model. There is intentionally no overall timeout
// here, matching the known weakness that a slave which never finishes
// leaves the session hanging.
func (s *Session) join() error {
	pending := s.set.Unreported()
	if len(pending) == 0 {
		return nil
	}

	results := make(chan joinResult, len(pending))
	for _, sl := range pending {
		go func(sl *Slave) {
			for {
				msg, data, err := transport.Recv(sl.Conn, s.cfg.Session, s.cfg.MessageTimeout)
				if err == transport.ErrTimeout {
					// No overall deadline on JOIN: a slave that never
					// finishes leaves the session hanging, matching the
					// original's untimed select() loop. Keep re-arming
					// the read deadline instead of blocking forever so
					// the goroutine stays interruptible by conn.Close().
					continue
				}
				if err != nil {
					results <- joinResult{slave: sl, err: err}
					return
				}
				if msg.Command != wire.Finished {
					// EXECUTE doesn't wait for EXEC_OK/EXEC_NO, so that
					// reply is still sitting unread in the stream when
					// JOIN starts reading; join_slaves' re-select loop
					// drains exactly this by re-reading until FINISHED,
					// so keep reading rather than treating it as the
					// slave's report.
					continue
				}
				results <- joinResult{slave: sl, msg: msg, data: data}
				return
			}
		}(sl)
	}

	remaining := len(pending)
	for remaining > 0 {
		r := <-results
		remaining--
		if r.err != nil {
			return fmt.Errorf("recv from %s: %w", r.slave.Addr, r.err)
		}
		if len(r.data) != wire.TimingSize {
			s.cfg.Logger.Warn().Stringer("addr", r.slave.Addr).Msg("wrong datalen for FINISHED")
			continue
		}
		r.slave.Timing = wire.DecodeTiming(r.data)
		s.cfg.Logger.Info().Stringer("addr", r.slave.Addr).Msg("slave completed")
	}
	return nil
}
