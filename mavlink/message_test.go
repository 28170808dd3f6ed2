package mavlink

import (
	"bytes"
	"testing"
)

// TestFinalizeIdentityMatch verifies that finalizing with the message's own
// identity reproduces its serialization byte for byte.
func TestFinalizeIdentityMatch(t *testing.T) {
	msg := testMessage(5, 17, 3)

	wire := Finalize(msg, 17, 3)
	if !bytes.Equal(wire, msg.Bytes()) {
		t.Errorf("finalize with matching identity changed wire bytes")
	}
}

// TestFinalizeIdentityDiffers verifies identity rewrite plus checksum
// recomputation, with the original message untouched.
func TestFinalizeIdentityDiffers(t *testing.T) {
	msg := testMessage(5, 17, 3)
	origWire := msg.Bytes()

	wire := Finalize(msg, 99, 1)
	if bytes.Equal(wire, origWire) {
		t.Fatal("finalize with different identity produced identical bytes")
	}

	// original untouched
	if msg.SysID != 17 || msg.CompID != 3 {
		t.Error("finalize mutated the input message")
	}
	if !bytes.Equal(msg.Bytes(), origWire) {
		t.Error("input message serialization changed")
	}

	// the rewritten frame must decode with the new identity
	decoded := feedAll(NewParser(), wire)
	if len(decoded) != 1 {
		t.Fatalf("re-finalized frame did not decode")
	}
	if decoded[0].SysID != 99 || decoded[0].CompID != 1 {
		t.Errorf("decoded identity = (%d,%d), want (99,1)", decoded[0].SysID, decoded[0].CompID)
	}
	if decoded[0].Seq != msg.Seq {
		t.Errorf("sequence number not preserved: got %d, want %d", decoded[0].Seq, msg.Seq)
	}
	if !bytes.Equal(decoded[0].Payload, msg.Payload) {
		t.Error("payload not preserved across finalize")
	}
}

// TestRegisterCRCExtra verifies dialect registration affects sealing.
func TestRegisterCRCExtra(t *testing.T) {
	const msgID = 242

	if CRCExtra(msgID) != 0 {
		t.Fatalf("unexpected preexisting CRC extra for msgid %d", msgID)
	}

	msgBefore := &Message{MsgID: msgID, Payload: []byte{1, 2, 3}}
	Seal(msgBefore)

	RegisterCRCExtra(msgID, 77)
	defer RegisterCRCExtra(msgID, 0)

	msgAfter := &Message{MsgID: msgID, Payload: []byte{1, 2, 3}}
	Seal(msgAfter)

	if msgBefore.Checksum == msgAfter.Checksum {
		t.Error("CRC extra registration did not change the checksum")
	}

	decoded := feedAll(NewParser(), msgAfter.Bytes())
	if len(decoded) != 1 {
		t.Error("frame sealed with registered extra did not decode")
	}
}

// TestOversizePayloadPanics verifies the length-byte truncation guard.
func TestOversizePayloadPanics(t *testing.T) {
	m := &Message{Payload: make([]byte, MaxPayloadLen+1)}

	for _, op := range []struct {
		name string
		fn   func()
	}{
		{"Seal", func() { Seal(m) }},
		{"Bytes", func() { m.Bytes() }},
		{"Finalize", func() { Finalize(m, 1, 1) }},
	} {
		t.Run(op.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s accepted a %d byte payload", op.name, MaxPayloadLen+1)
				}
			}()
			op.fn()
		})
	}
}

// TestWireSize checks the frame size arithmetic.
func TestWireSize(t *testing.T) {
	cases := []struct {
		payload int
		want    int
	}{
		{0, 8},
		{9, 17},
		{255, 263},
	}
	for _, c := range cases {
		m := &Message{Payload: make([]byte, c.payload)}
		if got := m.WireSize(); got != c.want {
			t.Errorf("payload %d: WireSize = %d, want %d", c.payload, got, c.want)
		}
		if got := len(m.Bytes()); got != c.want {
			t.Errorf("payload %d: len(Bytes) = %d, want %d", c.payload, got, c.want)
		}
	}
}
