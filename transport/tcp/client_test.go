package tcp

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport/base"
	"github.com/mavkit/mavconn/transport/common"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// stubConn is an in-memory net.Conn replacement. Writes accept at most
// maxWrite bytes per call, forcing the send path to resume mid-buffer; reads
// block until the connection is closed.
type stubConn struct {
	mu         sync.Mutex
	written    []byte
	writeCalls int
	maxWrite   int
	writeErr   error

	closed    chan struct{}
	closeOnce sync.Once
}

func newStubConn(maxWrite int) *stubConn {
	return &stubConn{maxWrite: maxWrite, closed: make(chan struct{})}
}

func (s *stubConn) Read(b []byte) (int, error) {
	<-s.closed
	return 0, io.EOF
}

func (s *stubConn) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	if s.writeErr != nil {
		return 0, s.writeErr
	}

	s.writeCalls++
	n := len(b)
	if s.maxWrite > 0 && n > s.maxWrite {
		n = s.maxWrite
	}
	s.written = append(s.written, b[:n]...)
	return n, nil
}

func (s *stubConn) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *stubConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (s *stubConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (s *stubConn) SetDeadline(t time.Time) error      { return nil }
func (s *stubConn) SetReadDeadline(t time.Time) error  { return nil }
func (s *stubConn) SetWriteDeadline(t time.Time) error { return nil }

func (s *stubConn) snapshot() ([]byte, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...), s.writeCalls
}

// newStubChannel builds a client channel on top of a stub connection with
// its own reactor, without resolving or dialing anything.
func newStubChannel(t *testing.T, conn *stubConn) *ClientChannel {
	t.Helper()

	id, err := base.AllocateChannel()
	if err != nil {
		t.Fatalf("allocate channel: %v", err)
	}

	c := newChannel(common.DefaultChannelConfig(), id, conn, &base.Endpoint{IP: net.IPv4(127, 0, 0, 1)})
	c.reactor = base.NewReactor(fmt.Sprintf("tcp%d", id))
	c.ownsReactor = true
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

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

// --------------------------------------------------------------------------
// Send path
// --------------------------------------------------------------------------

func TestSendBytesPartialWriteResumes(t *testing.T) {
	conn := newStubConn(3)
	c := newStubChannel(t, conn)
	defer c.Close()

	payload := []byte("0123456789")
	c.SendBytes(payload)

	waitFor(t, "payload drained", func() bool {
		got, _ := conn.snapshot()
		return len(got) == len(payload)
	})

	got, calls := conn.snapshot()
	if !bytes.Equal(got, payload) {
		t.Errorf("written = %q, want %q", got, payload)
	}
	// 10 bytes at 3 per write
	if calls != 4 {
		t.Errorf("write calls = %d, want 4", calls)
	}
}

func TestSendBytesFIFOOrder(t *testing.T) {
	conn := newStubConn(2)
	c := newStubChannel(t, conn)
	defer c.Close()

	var want []byte
	for i := 0; i < 8; i++ {
		chunk := []byte(fmt.Sprintf("chunk-%d|", i))
		want = append(want, chunk...)
		c.SendBytes(chunk)
	}

	waitFor(t, "queue drained", func() bool {
		got, _ := conn.snapshot()
		return len(got) == len(want)
	})

	got, _ := conn.snapshot()
	if !bytes.Equal(got, want) {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSendBytesDoesNotAliasCallerSlice(t *testing.T) {
	conn := newStubConn(1)
	c := newStubChannel(t, conn)
	defer c.Close()

	payload := []byte("immutable")
	want := append([]byte(nil), payload...)
	c.SendBytes(payload)
	payload[0] = 'X'

	waitFor(t, "payload drained", func() bool {
		got, _ := conn.snapshot()
		return len(got) == len(want)
	})

	got, _ := conn.snapshot()
	if !bytes.Equal(got, want) {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSendMessageWireBytes(t *testing.T) {
	tests := []struct {
		name           string
		sysID, compID  uint8
		wantIdentity   [2]uint8
		sameAsOriginal bool
	}{
		{"identity matches", 7, 3, [2]uint8{7, 3}, true},
		{"identity differs", 42, 99, [2]uint8{42, 99}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newStubConn(0)
			c := newStubChannel(t, conn)
			defer c.Close()

			msg := heartbeat(5, 7, 3)
			c.SendMessage(msg, tt.sysID, tt.compID)

			waitFor(t, "frame drained", func() bool {
				got, _ := conn.snapshot()
				return len(got) == msg.WireSize()
			})

			got, _ := conn.snapshot()
			if tt.sameAsOriginal {
				if !bytes.Equal(got, msg.Bytes()) {
					t.Errorf("wire bytes differ from original frame")
				}
			} else {
				want := mavlink.Finalize(msg, tt.sysID, tt.compID)
				if !bytes.Equal(got, want) {
					t.Errorf("wire bytes not re-finalized for new identity")
				}
			}
			if got[2] != 5 {
				t.Errorf("seq = %d, want 5", got[2])
			}
			if got[3] != tt.wantIdentity[0] || got[4] != tt.wantIdentity[1] {
				t.Errorf("identity = %d/%d, want %d/%d", got[3], got[4], tt.wantIdentity[0], tt.wantIdentity[1])
			}
		})
	}
}

func TestWriteErrorClosesChannel(t *testing.T) {
	conn := newStubConn(0)
	conn.writeErr = io.ErrClosedPipe
	c := newStubChannel(t, conn)

	closedCh := make(chan struct{})
	c.OnClosed(func() { close(closedCh) })

	c.SendBytes([]byte("doomed"))

	select {
	case <-closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after write error")
	}

	if c.IsOpen() {
		t.Error("IsOpen() = true after write error")
	}
	c.Close()
}

// --------------------------------------------------------------------------
// Close semantics
// --------------------------------------------------------------------------

func TestCloseIdempotent(t *testing.T) {
	conn := newStubConn(0)
	c := newStubChannel(t, conn)

	var mu sync.Mutex
	closedCount := 0
	c.OnClosed(func() {
		mu.Lock()
		closedCount++
		mu.Unlock()
	})

	c.Close()
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if closedCount != 1 {
		t.Errorf("closed signal fired %d times, want 1", closedCount)
	}
	if c.IsOpen() {
		t.Error("IsOpen() = true after Close")
	}
}

func TestSendOnClosedChannelPanics(t *testing.T) {
	conn := newStubConn(0)
	c := newStubChannel(t, conn)
	c.Close()

	defer func() {
		if recover() == nil {
			t.Error("SendBytes on closed channel did not panic")
		}
	}()
	c.SendBytes([]byte("late"))
}

func TestCloseReleasesChannelID(t *testing.T) {
	before := base.ChannelsAvailable()

	conn := newStubConn(0)
	c := newStubChannel(t, conn)
	if got := base.ChannelsAvailable(); got != before-1 {
		t.Fatalf("ChannelsAvailable() = %d, want %d", got, before-1)
	}

	c.Close()
	if got := base.ChannelsAvailable(); got != before {
		t.Errorf("ChannelsAvailable() = %d after close, want %d", got, before)
	}
}

func TestSubscriptionDisconnect(t *testing.T) {
	conn := newStubConn(0)
	c := newStubChannel(t, conn)

	fired := false
	sub := c.OnClosed(func() { fired = true })
	sub.Disconnect()

	c.Close()
	if fired {
		t.Error("disconnected handler still fired")
	}
}
