// Package mavlink implements the binary wire codec for MAVLink v1 style
// framing: a fixed preamble, length, sequence and identity bytes, an opaque
// payload and a trailing X.25 checksum seeded with a per-message-type extra
// byte.
//
// The package has two halves:
//
//   - Parser: a byte-at-a-time streaming state machine that reassembles
//     frames from an arbitrary split of the underlying byte stream. One
//     parser instance exists per transport channel (see ParserForChannel),
//     which is why the process-wide channel numbering space is bounded.
//
//   - Finalize: recomputes the length-dependent trailer (checksum) of an
//     already decoded message for a different sender identity, used by
//     transports that forward messages on behalf of another system.
//
// The transport layer treats payloads as opaque bytes; message semantics are
// interpreted by higher layers.
package mavlink
