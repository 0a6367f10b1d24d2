// File: handler/handler.go
//
// Handler is the single-method hook WorkerThread::processData collapsed
// into in the original source (worker.h): dispatch on Message.MsgType once
// a message has fully parsed. DefaultHandler implements exactly the
// source's one case, Logon ("A"), and leaves every other message type
// counted but otherwise ignored.
package handler

import (
	"github.com/momentics/fixgw/conn"
	"github.com/momentics/fixgw/metrics"
	"github.com/momentics/fixgw/ringbuf"
)

const soh = 0x01

// Handler reacts to one fully parsed message on conn. It must not block and
// must not touch the socket directly — only conn.Outbound.
type Handler interface {
	Handle(c *conn.Connection)
}

// DefaultHandler implements the source's logon-echo behavior and counts
// every message it sees in a shared Counters instance.
type DefaultHandler struct {
	Counters *metrics.Counters
}

// NewDefaultHandler builds a DefaultHandler reporting through counters.
// counters may be nil, in which case counting is silently skipped.
func NewDefaultHandler(counters *metrics.Counters) *DefaultHandler {
	return &DefaultHandler{Counters: counters}
}

// Handle dispatches on msg.MsgType the way processData does in the
// original source: Logon gets an echoed response, everything else is
// counted and dropped.
func (h *DefaultHandler) Handle(c *conn.Connection) {
	msg := &c.Message
	h.countMessage(msg.MsgType)

	if msg.IsLogon() {
		h.echoLogon(c)
	}
}

func (h *DefaultHandler) countMessage(msgType []byte) {
	if h.Counters == nil {
		return
	}
	h.Counters.MessagesParsed.Add(1)
	if len(msgType) == 1 && msgType[0] == 'A' {
		h.Counters.LogonsEchoed.Add(1)
	}
}

// echoLogon mirrors processLogon: same beginString, bodyLength, msgType,
// seqNumber, and checkSum, sender/target CompID swapped, and every
// OtherFields pair copied through verbatim in wire order.
func (h *DefaultHandler) echoLogon(c *conn.Connection) {
	msg := &c.Message
	out := c.Outbound

	writeField(out, "8", msg.BeginString)
	writeField(out, "9", msg.BodyLength)
	writeField(out, "35", msg.MsgType)
	writeField(out, "34", msg.SeqNumber)
	writeField(out, "49", msg.TargetCompID) // swapped: response sender = request target
	writeField(out, "56", msg.SenderCompID) // swapped: response target = request sender

	for _, f := range msg.OtherFields {
		writeField(out, string(f.Tag), f.Value)
	}

	writeField(out, "10", msg.CheckSum)
}

// writeField appends "<tag>=<value>SOH" to out, looping on short Append
// calls so the field is placed correctly even when it straddles the ring's
// wrap boundary.
func writeField(out *ringbuf.RingBuffer, tag string, value []byte) {
	appendAll(out, []byte(tag))
	appendAll(out, []byte{'='})
	appendAll(out, value)
	appendAll(out, []byte{soh})
}

func appendAll(out *ringbuf.RingBuffer, data []byte) {
	for len(data) > 0 {
		n := out.Append(data)
		if n == 0 {
			// Outbound ring is full; the source has no backpressure path
			// here either (writeFromString has no failure return), so we
			// drop the remainder rather than block the worker goroutine.
			return
		}
		data = data[n:]
	}
}
