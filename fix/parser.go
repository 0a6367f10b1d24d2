// File: fix/parser.go
//
// ParseFixMessage implements the incremental tag=value scanner described in
// worker.h's processFixStream / Message::parseFixMessage: it consumes
// complete fields one at a time from a RingBuffer, accumulating a running
// checksum, and stops either at a fully parsed message (tag 10) or at the
// first incomplete field, leaving unconsumed bytes in the ring for the next
// call once more data has arrived.
package fix

import "github.com/momentics/fixgw/ringbuf"

// DispositionKind is the outcome of one ParseFixMessage call.
type DispositionKind int

const (
	// DispositionNeedMore means the ring held a prefix of one or more
	// fields; every complete field has been consumed and committed to
	// msg, and the caller should call again once more bytes arrive.
	DispositionNeedMore DispositionKind = iota
	// DispositionFinished means msg now holds a complete, checksum-valid
	// message; the ring's head has been advanced past the terminating
	// SOH of the "10=" field.
	DispositionFinished
	// DispositionError means the stream is malformed; the caller must
	// close the connection rather than call ParseFixMessage again.
	DispositionError
)

// ErrorKind further classifies a DispositionError.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	// ErrInvalidTag means the bytes before '=' were not all ASCII digits.
	ErrInvalidTag
	// ErrInvalidChecksumFormat means tag 10's value was not exactly
	// three ASCII digits.
	ErrInvalidChecksumFormat
	// ErrChecksumMismatch means tag 10's value did not equal the
	// accumulated running checksum mod 256.
	ErrChecksumMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidTag:
		return "invalid tag"
	case ErrInvalidChecksumFormat:
		return "invalid checksum format"
	case ErrChecksumMismatch:
		return "checksum mismatch"
	default:
		return "none"
	}
}

// Disposition is the result of one ParseFixMessage call.
type Disposition struct {
	Kind DispositionKind
	Err  ErrorKind
}

const soh = 0x01

// ParseFixMessage scans complete tag=value fields out of ring into msg
// until either a full message is committed (DispositionFinished), the
// available bytes end mid-field (DispositionNeedMore), or the stream is
// malformed (DispositionError). It never blocks and never allocates on the
// common (non-wrapped) path.
func ParseFixMessage(ring *ringbuf.RingBuffer, msg *Message) Disposition {
	for {
		first, second := ring.Views()
		total := len(first) + len(second)
		if total == 0 {
			return Disposition{Kind: DispositionNeedMore}
		}

		eq := indexByte(first, second, '=')
		if eq == -1 {
			return Disposition{Kind: DispositionNeedMore}
		}
		fieldEnd := findSOH(first, second, eq+1)
		if fieldEnd == -1 {
			return Disposition{Kind: DispositionNeedMore}
		}

		tagBytes := slice(first, second, 0, eq)
		valueBytes := slice(first, second, eq+1, fieldEnd)
		fieldLen := fieldEnd + 1 // including the terminating SOH

		tag, ok := parseDigits(tagBytes)
		if !ok {
			ring.Consume(fieldLen)
			return Disposition{Kind: DispositionError, Err: ErrInvalidTag}
		}

		if tag == 10 {
			if len(valueBytes) != 3 {
				ring.Consume(fieldLen)
				return Disposition{Kind: DispositionError, Err: ErrInvalidChecksumFormat}
			}
			want, ok := parseDigits(valueBytes)
			if !ok {
				ring.Consume(fieldLen)
				return Disposition{Kind: DispositionError, Err: ErrInvalidChecksumFormat}
			}
			if msg.checksum%256 != want {
				ring.Consume(fieldLen)
				return Disposition{Kind: DispositionError, Err: ErrChecksumMismatch}
			}
			msg.CheckSum = valueBytes
			msg.Finished = true
			ring.Consume(fieldLen)
			return Disposition{Kind: DispositionFinished}
		}

		accumulate(msg, first, second, 0, fieldLen)
		setField(msg, tag, tagBytes, valueBytes)
		ring.Consume(fieldLen)
	}
}

func setField(msg *Message, tag int, tagBytes, valueBytes []byte) {
	switch tag {
	case 8:
		msg.BeginString = valueBytes
	case 9:
		msg.BodyLength = valueBytes
	case 11:
		msg.ClOrdID = valueBytes
	case 34:
		msg.SeqNumber = valueBytes
	case 35:
		msg.MsgType = valueBytes
	case 49:
		msg.SenderCompID = valueBytes
	case 56:
		msg.TargetCompID = valueBytes
	default:
		msg.OtherFields = append(msg.OtherFields, FieldPair{Tag: tagBytes, Value: valueBytes})
	}
}

// accumulate adds the bytes in [start, end) of the logical first+second
// sequence to msg's running checksum.
func accumulate(msg *Message, first, second []byte, start, end int) {
	for i := start; i < end; i++ {
		msg.checksum += int(at(first, second, i))
	}
}

func at(first, second []byte, i int) byte {
	if i < len(first) {
		return first[i]
	}
	return second[i-len(first)]
}

// slice returns the logical [start, end) byte run. It returns a direct
// subslice of first or second when the run stays on one side of the wrap
// boundary (the common case), and a freshly copied slice only when a field
// straddles the boundary.
func slice(first, second []byte, start, end int) []byte {
	if end <= len(first) {
		return first[start:end]
	}
	if start >= len(first) {
		return second[start-len(first) : end-len(first)]
	}
	out := make([]byte, end-start)
	n := copy(out, first[start:])
	copy(out[n:], second[:end-len(first)])
	return out
}

func indexByte(first, second []byte, b byte) int {
	for i, c := range first {
		if c == b {
			return i
		}
	}
	for i, c := range second {
		if c == b {
			return len(first) + i
		}
	}
	return -1
}

// findSOH returns the logical index of the first SOH at or after from, or
// -1 if not found in the currently available bytes.
func findSOH(first, second []byte, from int) int {
	total := len(first) + len(second)
	for i := from; i < total; i++ {
		if at(first, second, i) == soh {
			return i
		}
	}
	return -1
}

// parseDigits parses an unsigned decimal integer from b, rejecting empty
// input and any non-digit byte.
func parseDigits(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
