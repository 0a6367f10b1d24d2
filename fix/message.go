// File: fix/message.go
//
// Message mirrors the original source's Message struct (message.h):
// dedicated slots for the handful of tags the gateway cares about, plus an
// ordered OtherFields slice for everything else. Field values are byte
// slices borrowed from a RingBuffer's backing array — see the zero-copy
// discussion on ParseFixMessage — and are only valid until the next
// Consume/Append touches the bytes they point at.
package fix

// FieldPair is one tag=value pair that did not get a dedicated Message slot.
type FieldPair struct {
	Tag   []byte
	Value []byte
}

// Message holds one parsed (or in-progress) FIX message. Zero value is
// ready to use.
type Message struct {
	BeginString  []byte // tag 8
	BodyLength   []byte // tag 9
	MsgType      []byte // tag 35
	SenderCompID []byte // tag 49
	TargetCompID []byte // tag 56
	ClOrdID      []byte // tag 11
	SeqNumber    []byte // tag 34
	CheckSum     []byte // tag 10, 3 ASCII digits

	// OtherFields preserves wire order for fields with no dedicated slot.
	OtherFields []FieldPair

	// Finished is set once ParseFixMessage reaches a valid tag 10.
	Finished bool

	// checksum accumulates every byte of every field up to but not
	// including the "10=" field, per Message::calculateChecksum in the
	// original source.
	checksum int
}

// Reset clears a Message for reuse, retaining the OtherFields backing
// array so repeated logons on a long-lived connection don't keep
// reallocating it.
func (m *Message) Reset() {
	m.BeginString = nil
	m.BodyLength = nil
	m.MsgType = nil
	m.SenderCompID = nil
	m.TargetCompID = nil
	m.ClOrdID = nil
	m.SeqNumber = nil
	m.CheckSum = nil
	m.OtherFields = m.OtherFields[:0]
	m.Finished = false
	m.checksum = 0
}

// IsLogon reports whether the message's MsgType is "A".
func (m *Message) IsLogon() bool {
	return len(m.MsgType) == 1 && m.MsgType[0] == 'A'
}
