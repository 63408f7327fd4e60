package wire

import "encoding/binary"

// Timeval mirrors the C struct timeval wire shape: seconds and
// microseconds, each a 64-bit integer.
type Timeval struct {
	Sec  int64
	Usec int64
}

// IsZero reports whether tv is the all-zero sentinel used by Timing as
// "not yet reported".
func (tv Timeval) IsZero() bool {
	return tv.Sec == 0 && tv.Usec == 0
}

// Timing is the FINISHED payload: [started, finished, zero-sentinel].
type Timing [3]Timeval

// timingSize is the on-wire size of a Timing: 3 * (int64 + int64).
const timingSize = 3 * 2 * 8

// TimingSize is the expected Datalen of a FINISHED message.
const TimingSize = timingSize

// Encode serializes t in the legacy host byte order used by the original
// implementation (little-endian on every platform this protocol has ever
// run on). This is a deliberately preserved wire-format quirk, not a
// portability fix — see the design notes on cross-endian fleets.
func (t Timing) Encode() []byte {
	b := make([]byte, timingSize)
	for i, tv := range t {
		o := i * 16
		binary.LittleEndian.PutUint64(b[o:o+8], uint64(tv.Sec))
		binary.LittleEndian.PutUint64(b[o+8:o+16], uint64(tv.Usec))
	}
	return b
}

// DecodeTiming parses a FINISHED payload. The caller must have already
// checked len(b) == TimingSize.
func DecodeTiming(b []byte) Timing {
	var t Timing
	for i := range t {
		o := i * 16
		t[i] = Timeval{
			Sec:  int64(binary.LittleEndian.Uint64(b[o : o+8])),
			Usec: int64(binary.LittleEndian.Uint64(b[o+8 : o+16])),
		}
	}
	return t
}
