package slave

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/synexec/synexec/pkg/transport"
	"github.com/synexec/synexec/pkg/wire"
)

// Worker connects to the master discovered via slot and drives the
// CONF/EXEC/FINISHED command loop, spawning the configured child process on
// EXEC and reporting its timing once it exits. There is no fork() in Go;
// the child's completion is observed by a goroutine blocked in cmd.Wait(),
// which is this implementation's substitute for the original's SIGCHLD
// handler.
type Worker struct {
	cfg  Config
	slot *MasterSlot

	mu         sync.Mutex
	execPath   string
	argv       []string
	running    bool
	started    wire.Timeval
	finished   wire.Timeval
	finishedAt bool // distinguishes "zero because never run" from "zero Timeval"
}

// NewWorker creates a Worker that waits on slot for master addresses.
func NewWorker(cfg Config, slot *MasterSlot) *Worker {
	return &Worker{cfg: cfg, slot: slot}
}

// Run loops forever: wait for a master address, connect, handle its
// commands until the connection ends or stop is closed, then wait for the
// next address. It returns nil when stop is closed.
func (w *Worker) Run(stop <-chan struct{}) error {
	bo := w.newReconnectBackOff()
	for {
		addr := w.slot.Take(stop)
		if addr == nil {
			return nil
		}

		w.cfg.Logger.Info().Stringer("addr", addr).Msg("connecting to master")
		conn, err := net.DialTimeout("tcp4", addr.String(), w.cfg.MessageTimeout)
		if err != nil {
			delay := bo.NextBackOff()
			w.cfg.Logger.Warn().Err(err).Stringer("addr", addr).Dur("retry_in", delay).Msg("connect failed, backing off")
			select {
			case <-time.After(delay):
			case <-stop:
				return nil
			}
			continue
		}
		bo.Reset()

		err = w.handleConn(conn, stop)
		conn.Close()
		w.cleanupConfFile()
		if err != nil {
			w.cfg.Logger.Warn().Err(err).Msg("master connection ended")
		}
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.reconnects_total.Inc()
		}

		select {
		case <-stop:
			return nil
		default:
		}
	}
}

// newReconnectBackOff builds the exponential backoff used between failed
// connection attempts to a discovered master. It never gives up on its
// own (MaxElapsedTime 0): the only way out of the reconnect loop is stop
// being closed or a master actually answering.
func (w *Worker) newReconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(w.cfg.ReconnectDelay),
		backoff.WithMultiplier(2.0),
		backoff.WithMaxInterval(30*time.Second),
		backoff.WithMaxElapsedTime(0),
	)
	b.Reset()
	return b
}

// confPath is the per-process scratch file the current CONF's remainder is
// written to and substituted into argv, matching
// "<confdir>/synexec_slave_conf.<pid>".
func (w *Worker) confPath() string {
	return filepath.Join(w.cfg.ConfDir, fmt.Sprintf("synexec_slave_conf.%d", os.Getpid()))
}

func (w *Worker) cleanupConfFile() {
	os.Remove(w.confPath())
}

// handleConn loops reading commands from conn until it errors (master
// gone) or stop is closed. A read timeout is not an error: it is the cue
// to check whether a FINISHED report is due, matching the original's
// "comm_recv returned 0, check worker_time" branch.
func (w *Worker) handleConn(conn net.Conn, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		msg, data, err := transport.Recv(conn, w.cfg.Session, w.cfg.MessageTimeout)
		if err == transport.ErrTimeout {
			w.maybeReportFinished(conn)
			continue
		}
		if err != nil {
			return err
		}

		switch msg.Command {
		case wire.Probe:
			if err := transport.Send(conn, w.cfg.Session, wire.Reply, nil, w.cfg.MessageTimeout); err != nil {
				return err
			}
		case wire.Conf:
			w.handleConf(conn, data)
		case wire.Exec:
			w.handleExec(conn)
		default:
			w.cfg.Logger.Debug().Stringer("command", msg.Command).Msg("ignoring unexpected command")
		}
	}
}

// maybeReportFinished sends FINISHED with the current timing triple if the
// worker has completed since the last report, then resets it, mirroring
// the original's memset(&worker_time, 0, ...) after a successful send.
func (w *Worker) maybeReportFinished(conn net.Conn) {
	w.mu.Lock()
	if !w.finishedAt {
		w.mu.Unlock()
		return
	}
	timing := wire.Timing{w.started, w.finished, wire.Timeval{}}
	w.finishedAt = false
	w.started = wire.Timeval{}
	w.finished = wire.Timeval{}
	w.mu.Unlock()

	if err := transport.Send(conn, w.cfg.Session, wire.Finished, timing.Encode(), w.cfg.MessageTimeout); err != nil {
		w.cfg.Logger.Warn().Err(err).Msg("failed to report FINISHED")
		return
	}
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.finished_reports_total.Inc()
	}
}

// handleConf writes the scratch configuration file, parses the command
// line, validates it is executable, and replies CONF_OK or CONF_NO.
func (w *Worker) handleConf(conn net.Conn, data []byte) {
	line, body := splitConfPayload(data)

	confPath := w.confPath()
	execPath, argv, err := w.acceptConf(line, body, confPath)
	if err != nil {
		w.cfg.Logger.Warn().Err(err).Msg("rejecting configuration")
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.conf_results_total.no.Inc()
		}
		transport.Send(conn, w.cfg.Session, wire.ConfNo, nil, w.cfg.MessageTimeout)
		return
	}

	w.mu.Lock()
	w.execPath, w.argv = execPath, argv
	w.mu.Unlock()

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.conf_results_total.ok.Inc()
	}
	transport.Send(conn, w.cfg.Session, wire.ConfOK, nil, w.cfg.MessageTimeout)
}

// acceptConf writes body to confPath and parses line into an argv,
// checking the resulting path is executable.
func (w *Worker) acceptConf(line, body, confPath string) (execPath string, argv []string, err error) {
	if err := os.WriteFile(confPath, []byte(body), 0600); err != nil {
		return "", nil, fmt.Errorf("write scratch conf: %w", err)
	}

	execPath, argv, err = BuildArgv(line, confPath)
	if err != nil {
		return "", nil, err
	}
	if err := unixAccessExecutable(execPath); err != nil {
		return "", nil, fmt.Errorf("command %q not executable: %w", execPath, err)
	}
	return execPath, argv, nil
}

// splitConfPayload splits a CONF payload on the first newline: the command
// line, and the (possibly empty) scratch file body.
func splitConfPayload(data []byte) (line, body string) {
	for i, b := range data {
		if b == '\n' {
			return string(data[:i]), string(data[i+1:])
		}
	}
	return string(data), ""
}

// handleExec starts the cached command if one is configured and nothing is
// already running, replying EXEC_OK/EXEC_NO.
func (w *Worker) handleExec(conn net.Conn) {
	w.mu.Lock()
	if w.execPath == "" {
		w.mu.Unlock()
		w.cfg.Logger.Warn().Msg("EXEC without a valid CONF, rejecting")
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.exec_results_total.no_no_conf.Inc()
		}
		transport.Send(conn, w.cfg.Session, wire.ExecNo, nil, w.cfg.MessageTimeout)
		return
	}
	if w.running {
		w.mu.Unlock()
		w.cfg.Logger.Warn().Msg("EXEC while already running, rejecting")
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.exec_results_total.no_running.Inc()
		}
		transport.Send(conn, w.cfg.Session, wire.ExecNo, nil, w.cfg.MessageTimeout)
		return
	}
	execPath, argv := w.execPath, w.argv
	w.mu.Unlock()

	cmd, out, err := w.spawn(execPath, argv)
	if err != nil {
		w.cfg.Logger.Error().Err(err).Msg("failed to spawn worker process")
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.exec_results_total.no_spawn.Inc()
		}
		transport.Send(conn, w.cfg.Session, wire.ExecNo, nil, w.cfg.MessageTimeout)
		return
	}

	w.mu.Lock()
	w.running = true
	w.started = nowTimeval()
	w.finished = wire.Timeval{}
	w.finishedAt = false
	w.mu.Unlock()

	go w.wait(cmd, out)

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.exec_results_total.ok.Inc()
	}
	transport.Send(conn, w.cfg.Session, wire.ExecOK, nil, w.cfg.MessageTimeout)
}

// spawn opens the (truncated) output file and starts execPath/argv with
// stdout and stderr redirected to it.
func (w *Worker) spawn(execPath string, argv []string) (*exec.Cmd, *os.File, error) {
	out, err := os.OpenFile(w.cfg.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open output file: %w", err)
	}

	cmd := &exec.Cmd{Path: execPath, Args: argv, Stdout: out, Stderr: out}
	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	return cmd, out, nil
}

// wait blocks until the child exits, then records its finish time. This
// goroutine is the substitute for the original's SIGCHLD handler.
func (w *Worker) wait(cmd *exec.Cmd, out *os.File) {
	cmd.Wait()
	out.Close()

	w.mu.Lock()
	w.running = false
	w.finished = nowTimeval()
	w.finishedAt = true
	w.mu.Unlock()
}

func nowTimeval() wire.Timeval {
	now := time.Now()
	return wire.Timeval{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000)}
}
