package base

import (
	"fmt"
)

// TxBuffer is one queued outbound payload plus the cursor tracking how much
// of it has been written so far. Buffers are value types held directly in a
// channel's FIFO transmit queue; popping the queue transfers ownership and
// no further bookkeeping is needed.
//
// Invariant: 0 <= cursor <= len(payload). A buffer leaves its queue exactly
// when Remaining() == 0.
type TxBuffer struct {
	payload []byte
	cursor  int
}

// NewTxBuffer copies b into an owned buffer. The copy decouples the queue
// from caller-owned memory - senders may reuse their slice immediately.
func NewTxBuffer(b []byte) TxBuffer {
	payload := make([]byte, len(b))
	copy(payload, b)
	return TxBuffer{payload: payload}
}

// OwnTxBuffer wraps b without copying. Only for slices the transport itself
// allocated (e.g. freshly serialized frames) and will not touch again.
func OwnTxBuffer(b []byte) TxBuffer {
	return TxBuffer{payload: b}
}

// Len returns the total payload length.
func (t *TxBuffer) Len() int {
	return len(t.payload)
}

// Remaining returns the number of bytes not yet written.
func (t *TxBuffer) Remaining() int {
	return len(t.payload) - t.cursor
}

// Pending returns the unwritten tail of the payload. The next write attempt
// starts here.
func (t *TxBuffer) Pending() []byte {
	return t.payload[t.cursor:]
}

// Advance moves the cursor by n bytes actually written. Advancing past the
// end of the payload is a bookkeeping bug and panics.
func (t *TxBuffer) Advance(n int) {
	if n < 0 || t.cursor+n > len(t.payload) {
		panic(fmt.Sprintf("txbuf: advance %d beyond payload (cursor %d, len %d)", n, t.cursor, len(t.payload)))
	}
	t.cursor += n
}

// Consumed reports whether the payload was fully written.
func (t *TxBuffer) Consumed() bool {
	return t.cursor == len(t.payload)
}
