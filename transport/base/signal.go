package base

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mavkit/mavconn/transport"
)

// Signal is an observer list for one channel event. Connect registers a
// handler and returns a subscription handle; Emit invokes a snapshot of the
// handlers registered at emit time. Owners must DisconnectAll before tearing
// down the context their handlers run in, so no handler can fire against a
// dead owner.
type Signal[T any] struct {
	nextID   atomic.Uint64
	handlers *xsync.MapOf[uint64, func(T)]
}

// NewSignal creates an empty signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{
		handlers: xsync.NewMapOf[uint64, func(T)](),
	}
}

// Connect registers a handler and returns its subscription handle.
//
// Thread-safety: safe to call concurrently with Emit; a handler connected
// during an emit may or may not see that emission.
func (s *Signal[T]) Connect(h func(T)) transport.ISubscription {
	id := s.nextID.Add(1)
	s.handlers.Store(id, h)
	return &subscription[T]{signal: s, id: id}
}

// Emit calls every currently registered handler with v. The handler set is
// snapshotted first, so handlers that disconnect others (or themselves)
// during emission do not affect this emission.
func (s *Signal[T]) Emit(v T) {
	var snapshot []func(T)
	s.handlers.Range(func(_ uint64, h func(T)) bool {
		snapshot = append(snapshot, h)
		return true
	})
	for _, h := range snapshot {
		h(v)
	}
}

// DisconnectAll removes every handler.
func (s *Signal[T]) DisconnectAll() {
	s.handlers.Clear()
}

// Len returns the number of registered handlers.
func (s *Signal[T]) Len() int {
	return s.handlers.Size()
}

// subscription implements transport.ISubscription for one registration.
type subscription[T any] struct {
	signal *Signal[T]
	id     uint64
}

func (s *subscription[T]) Disconnect() {
	s.signal.handlers.Delete(s.id)
}
