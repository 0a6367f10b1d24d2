package fix

import "testing"

func TestMessageResetClearsFields(t *testing.T) {
	m := &Message{
		BeginString: []byte("FIX.4.2"),
		MsgType:     []byte("A"),
		OtherFields: []FieldPair{{Tag: []byte("1"), Value: []byte("x")}},
		Finished:    true,
	}
	m.checksum = 42

	m.Reset()

	if m.BeginString != nil || m.MsgType != nil {
		t.Fatalf("expected dedicated fields cleared after Reset")
	}
	if len(m.OtherFields) != 0 {
		t.Fatalf("expected OtherFields cleared after Reset, got %d entries", len(m.OtherFields))
	}
	if m.Finished {
		t.Fatalf("expected Finished cleared after Reset")
	}
	if m.checksum != 0 {
		t.Fatalf("expected checksum accumulator cleared after Reset")
	}
}

func TestMessageIsLogon(t *testing.T) {
	m := &Message{MsgType: []byte("A")}
	if !m.IsLogon() {
		t.Fatalf("expected IsLogon true for MsgType A")
	}
	m.MsgType = []byte("0")
	if m.IsLogon() {
		t.Fatalf("expected IsLogon false for MsgType 0")
	}
}
