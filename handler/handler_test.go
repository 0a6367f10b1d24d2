package handler

import (
	"bytes"
	"testing"

	"github.com/momentics/fixgw/conn"
	"github.com/momentics/fixgw/fix"
	"github.com/momentics/fixgw/ringbuf"
)

func newTestConnection() *conn.Connection {
	return &conn.Connection{
		Fd:       -1,
		Inbound:  ringbuf.New(4096),
		Outbound: ringbuf.New(4096),
	}
}

func readAllOutbound(t *testing.T, out *ringbuf.RingBuffer) []byte {
	t.Helper()
	var got []byte
	for {
		data, ok := out.ReadView()
		if !ok {
			break
		}
		got = append(got, data...)
		out.Consume(len(data))
	}
	return got
}

func TestDefaultHandlerEchoesLogonWithSwappedCompIDs(t *testing.T) {
	c := newTestConnection()
	c.Message.BeginString = []byte("FIX.4.2")
	c.Message.BodyLength = []byte("65")
	c.Message.MsgType = []byte("A")
	c.Message.SeqNumber = []byte("1")
	c.Message.SenderCompID = []byte("CLIENT")
	c.Message.TargetCompID = []byte("SERVER")
	c.Message.CheckSum = []byte("123")
	c.Message.OtherFields = []fix.FieldPair{
		{Tag: []byte("98"), Value: []byte("0")},
	}

	h := NewDefaultHandler(nil)
	h.Handle(c)

	got := readAllOutbound(t, c.Outbound)
	want := "8=FIX.4.2\x019=65\x0135=A\x0134=1\x0149=SERVER\x0156=CLIENT\x0198=0\x0110=123\x01"
	if string(got) != want {
		t.Fatalf("echo mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestDefaultHandlerIgnoresNonLogon(t *testing.T) {
	c := newTestConnection()
	c.Message.MsgType = []byte("0") // heartbeat

	h := NewDefaultHandler(nil)
	h.Handle(c)

	if !c.Outbound.Empty() {
		t.Fatalf("expected no outbound bytes for a non-logon message")
	}
}

func TestDefaultHandlerPreservesOtherFieldsOrder(t *testing.T) {
	c := newTestConnection()
	c.Message.MsgType = []byte("A")
	c.Message.SenderCompID = []byte("A")
	c.Message.TargetCompID = []byte("B")
	c.Message.OtherFields = []fix.FieldPair{
		{Tag: []byte("1"), Value: []byte("first")},
		{Tag: []byte("2"), Value: []byte("second")},
		{Tag: []byte("3"), Value: []byte("third")},
	}

	h := NewDefaultHandler(nil)
	h.Handle(c)

	got := readAllOutbound(t, c.Outbound)
	if !bytes.Contains(got, []byte("1=first\x012=second\x013=third\x01")) {
		t.Fatalf("expected OtherFields to appear in wire order, got %q", got)
	}
}
