// Package wire implements the synexec network message header: a fixed
// 11-byte, big-endian, packed layout shared by every master/slave exchange.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only protocol version this implementation speaks.
const Version uint32 = 1

// HeaderSize is the on-wire size of a [Message] header, excluding payload.
const HeaderSize = 4 + 4 + 1 + 2

// ErrShortBuffer is returned by Decode when fewer than HeaderSize bytes are
// available.
var ErrShortBuffer = errors.New("wire: buffer shorter than header size")

// ErrVersion is returned by Decode when the header's version does not match
// [Version].
var ErrVersion = errors.New("wire: unsupported version")

// ErrSession names a header whose session does not match the receiver's
// expected session. Decode itself never returns this (it has no notion of
// an expected session); package transport compares Message.Session itself
// and reports a mismatch as transport.ErrProtocol, not as ErrSession.
var ErrSession = errors.New("wire: session mismatch")

// Message is the fixed-layout synexec header. Payload is carried alongside
// it by callers (see package transport) rather than embedded here, since the
// header's Datalen only describes how many payload bytes follow on the wire.
//
//	offset 0  : u32 version
//	offset 4  : u32 session
//	offset 8  : u8  command
//	offset 9  : u16 datalen
type Message struct {
	Version uint32
	Session uint32
	Command Command
	Datalen uint16
}

// Encode writes m's header in its packed, big-endian wire format.
func (m Message) Encode() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], m.Version)
	binary.BigEndian.PutUint32(b[4:8], m.Session)
	b[8] = byte(m.Command)
	binary.BigEndian.PutUint16(b[9:11], m.Datalen)
	return b
}

// Decode parses a header from b. b must be at least HeaderSize bytes; only
// the first HeaderSize bytes are consumed. Decode performs no session or
// version validation beyond reporting ErrVersion for an unrecognized version
// tag — version/session policy (drop vs. error) is the caller's call, per
// the protocol error taxonomy.
func Decode(b []byte) (Message, error) {
	if len(b) < HeaderSize {
		return Message{}, fmt.Errorf("%w: got %d bytes", ErrShortBuffer, len(b))
	}
	m := Message{
		Version: binary.BigEndian.Uint32(b[0:4]),
		Session: binary.BigEndian.Uint32(b[4:8]),
		Command: Command(b[8]),
		Datalen: binary.BigEndian.Uint16(b[9:11]),
	}
	if m.Version != Version {
		return m, fmt.Errorf("%w: got %d, want %d", ErrVersion, m.Version, Version)
	}
	return m, nil
}

// New builds a header for command cmd carrying datalen bytes of payload in
// the given session.
func New(session uint32, cmd Command, datalen uint16) Message {
	return Message{Version: Version, Session: session, Command: cmd, Datalen: datalen}
}
