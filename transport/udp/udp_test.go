package udp

import (
	"bytes"
	"testing"
	"time"

	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport"
	"github.com/mavkit/mavconn/transport/common"
)

func heartbeat(seq, sysID, compID uint8) *mavlink.Message {
	m := &mavlink.Message{
		Seq:     seq,
		SysID:   sysID,
		CompID:  compID,
		MsgID:   0,
		Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9},
	}
	mavlink.Seal(m)
	return m
}

func collectMessages(ch transport.IChannel) <-chan transport.MessageEvent {
	out := make(chan transport.MessageEvent, 16)
	ch.OnMessage(func(ev transport.MessageEvent) { out <- ev })
	return out
}

func recvMessage(t *testing.T, ch <-chan transport.MessageEvent) transport.MessageEvent {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return transport.MessageEvent{}
	}
}

func TestUDPRoundTrip(t *testing.T) {
	// a binds with autodetect, b binds and points at a
	a, err := NewUDPChannel(common.DefaultChannelConfig(), "127.0.0.1", 0, "", 0)
	if err != nil {
		t.Fatalf("bind a: %v", err)
	}
	defer a.Close()
	aMsgs := collectMessages(a)

	b, err := NewUDPChannel(common.DefaultChannelConfig(), "127.0.0.1", 0, "127.0.0.1", uint16(a.BoundAddr().Port))
	if err != nil {
		t.Fatalf("bind b: %v", err)
	}
	defer b.Close()
	bMsgs := collectMessages(b)

	msg := heartbeat(0, 1, 1)
	b.SendMessage(msg, 1, 1)

	ev := recvMessage(t, aMsgs)
	if ev.SysID != 1 || !bytes.Equal(ev.Message.Payload, msg.Payload) {
		t.Errorf("a received %s with sys=%d", ev.Message, ev.SysID)
	}

	// a learned b's address from the datagram and can answer now
	if a.RemoteAddr() == nil {
		t.Fatal("autodetect did not lock onto sender")
	}
	if a.RemoteAddr().Port != b.BoundAddr().Port {
		t.Errorf("autodetected port = %d, want %d", a.RemoteAddr().Port, b.BoundAddr().Port)
	}

	a.SendMessage(heartbeat(1, 250, 1), 250, 1)
	ev = recvMessage(t, bMsgs)
	if ev.SysID != 250 || ev.Message.Seq != 1 {
		t.Errorf("b received %s with sys=%d", ev.Message, ev.SysID)
	}
}

func TestUDPSendWithoutRemoteDrops(t *testing.T) {
	a, err := NewUDPChannel(common.DefaultChannelConfig(), "127.0.0.1", 0, "", 0)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer a.Close()

	// no remote yet: must not block or crash
	a.SendBytes(heartbeat(0, 1, 1).Bytes())
	time.Sleep(20 * time.Millisecond)

	if !a.IsOpen() {
		t.Error("channel closed by remote-less send")
	}
}

func TestUDPCloseIdempotent(t *testing.T) {
	a, err := NewUDPChannel(common.DefaultChannelConfig(), "127.0.0.1", 0, "", 0)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	closedCount := 0
	a.OnClosed(func() { closedCount++ })

	a.Close()
	a.Close()

	if closedCount != 1 {
		t.Errorf("closed signal fired %d times, want 1", closedCount)
	}

	defer func() {
		if recover() == nil {
			t.Error("SendBytes on closed channel did not panic")
		}
	}()
	a.SendBytes([]byte("late"))
}
