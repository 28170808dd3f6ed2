package transport

import (
	"github.com/mavkit/mavconn/mavlink"
)

// --------------------------------------------------------------------------
// Channel events
// --------------------------------------------------------------------------

// MessageEvent is the payload of the "message received" signal: one decoded
// frame together with its declared sender identity.
type MessageEvent struct {
	Message *mavlink.Message
	SysID   uint8
	CompID  uint8
}

// ISubscription is a handle for one signal registration. Disconnect detaches
// the handler; it is safe to call more than once.
type ISubscription interface {
	Disconnect()
}

// --------------------------------------------------------------------------
// Channel interface
// --------------------------------------------------------------------------

// IChannel is the interface implemented by every transport channel kind.
//
// SendBytes and SendMessage are asynchronous: they enqueue onto the channel's
// transmit queue and return; actual socket writes happen on the channel's I/O
// goroutine. Both panic when invoked on a closed channel - callers must check
// IsOpen first (liveness is observable via the closed signal).
type IChannel interface {
	// ChannelID returns the process-unique channel number, also used to key
	// the codec's per-channel parser state.
	ChannelID() uint8

	// SystemID returns the local system id the channel was constructed with.
	SystemID() uint8

	// ComponentID returns the local component id.
	ComponentID() uint8

	// IsOpen reports whether the channel still accepts send calls.
	IsOpen() bool

	// SendBytes enqueues raw wire bytes unmodified.
	SendBytes(b []byte)

	// SendMessage enqueues a message on behalf of the given sender identity.
	// If the message's embedded identity differs, it is re-finalized
	// (checksum recomputed) for that identity first; otherwise its existing
	// wire bytes are sent as-is.
	SendMessage(msg *mavlink.Message, sysID, compID uint8)

	// OnMessage registers a handler for decoded inbound frames. Handlers run
	// on the channel's I/O goroutine and must not block.
	OnMessage(h func(MessageEvent)) ISubscription

	// OnClosed registers a handler fired exactly once, at the end of Close.
	OnClosed(h func()) ISubscription

	// Close tears the channel down: stops I/O, discards queued transmit
	// buffers, closes the socket and emits the closed signal. Idempotent.
	Close()
}
