// Package udp provides the datagram transport for framed protocol channels.
//
// A UDPChannel binds one local socket and exchanges frames with a single
// remote endpoint. The remote can be fixed at construction time or, when
// left unset, is locked onto the sender of the first received datagram and
// updated on every subsequent one. Sends queue and drain exactly like the
// TCP transport, one datagram per transmit buffer.
package udp
