// Package transport implements the length-delimited send/recv framing used
// by both master and slave on top of a stream connection (net.Conn), with
// bounded blocking waits expressed as Go deadlines rather than select().
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/synexec/synexec/pkg/wire"
)

// DefaultTimeout is used for any wait whose caller does not supply a
// deadline, matching the original implementation's SYNEXEC_COMM_TIMEOUT.
const DefaultTimeout = 1 * time.Second

// ErrTimeout is returned when a wait expires before any byte of the current
// stage (header or payload) was seen. A wait that expires after partial
// progress is reported as a wrapped error instead, never as ErrTimeout — per
// the framing contract, timeout is only "nothing happened yet".
var ErrTimeout = errors.New("transport: timed out")

// ErrProtocol marks a decode failure that must never escalate: wrong
// version or session on an otherwise well-formed header.
var ErrProtocol = errors.New("transport: protocol error")

// Send atomically emits a header for cmd followed by payload (which may be
// empty) on conn. It never sends a header without the payload bytes its
// Datalen promises following it: a failure partway through leaves conn in an
// unspecified state and the caller should close it.
func Send(conn net.Conn, session uint32, cmd wire.Command, payload []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := wire.New(session, cmd, uint16(len(payload)))

	// Header and payload go out in a single write, so a clean timeout
	// (nothing written) never leaves a header on the wire without its
	// payload.
	frame := append(m.Encode(), payload...)
	if err := writeFull(conn, frame, timeout); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Recv reads one message from conn: a header, validated against session,
// followed by Datalen more bytes if any. The returned payload is freshly
// allocated per call and owned by the caller.
func Recv(conn net.Conn, session uint32, timeout time.Duration) (wire.Message, []byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hdr := make([]byte, wire.HeaderSize)
	n, err := readFull(conn, hdr, timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) && n == 0 {
			return wire.Message{}, nil, ErrTimeout
		}
		return wire.Message{}, nil, fmt.Errorf("recv header: %w", err)
	}

	m, err := wire.Decode(hdr)
	if err != nil {
		return wire.Message{}, nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if m.Session != session {
		return wire.Message{}, nil, fmt.Errorf("%w: got session %d, want %d", ErrProtocol, m.Session, session)
	}
	if m.Datalen == 0 {
		return m, nil, nil
	}

	payload := make([]byte, m.Datalen)
	if _, err := readFull(conn, payload, timeout); err != nil {
		// A timeout is never tolerated once a header has promised a
		// payload: we must read those bytes or the stream is corrupt.
		return wire.Message{}, nil, fmt.Errorf("recv payload: %w", err)
	}
	return m, payload, nil
}

func writeFull(conn net.Conn, b []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer conn.SetWriteDeadline(time.Time{})

	// net.Conn.Write is specified to return a non-nil error whenever it
	// writes fewer than len(b) bytes, so a single call is a full write.
	n, err := conn.Write(b)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if n == 0 {
				return ErrTimeout
			}
			return fmt.Errorf("partial write (%d/%d bytes): %w", n, len(b), err)
		}
		return err
	}
	return nil
}

func readFull(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	defer conn.SetReadDeadline(time.Time{})

	n, err := io.ReadFull(conn, buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if n == 0 {
				return n, ErrTimeout
			}
			return n, fmt.Errorf("partial read (%d/%d bytes): %w", n, len(buf), err)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, fmt.Errorf("connection closed: %w", err)
		}
		return n, err
	}
	return n, nil
}

