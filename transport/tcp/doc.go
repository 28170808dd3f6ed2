// Package tcp provides the TCP transport for framed protocol channels.
//
// Two channel kinds are implemented:
//
//   - ClientChannel connects to a remote server and owns a dedicated reactor
//     goroutine servicing its socket completions.
//
//   - ServerChannel listens for incoming connections, wraps each accepted
//     socket into a server-owned ClientChannel and multiplexes all of them
//     on a single shared reactor. Outbound sends fan out to every connected
//     client, inbound frames aggregate into one message signal.
//
// Both kinds implement transport.IChannel. Writes are queued and drained
// with a single outstanding write per connection, resuming mid-buffer after
// partial writes; reads run as a single outstanding receive feeding the
// frame codec byte by byte.
package tcp
