// Package base provides the machinery shared by all transport channel
// implementations:
//
//   - Reactor: the single background goroutine per top-level channel that
//     executes socket-completion callbacks in order, backed by a lock-free
//     unbounded MPSC task queue. Server-accepted clients post onto their
//     parent server's reactor instead of owning one.
//
//   - TxBuffer: an outbound payload with a read cursor, supporting partial
//     consumption across multiple write attempts. Buffers are owned values
//     held directly in a FIFO slice; popping transfers ownership.
//
//   - Signal: an explicit observer list with subscription handles, used for
//     the "message received" and "port closed" channel events.
//
//   - Channel-id allocation: the process-wide numbering space (bounded by
//     the codec's parser slots) shared across all transport kinds.
//
//   - Endpoint resolution: host/port to connectable address, first result
//     wins, requested port overrides.
package base
