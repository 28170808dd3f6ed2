// Package transport defines the uniform channel abstraction carrying the
// MAVLink wire protocol over different link kinds (stream sockets, datagram
// sockets), together with the event and error types shared by all transports.
//
// A channel is one logical endpoint with a process-unique numeric id: either
// a point-to-point connection (client), or a listening socket multiplexing N
// remote clients (server). All channels expose the same asynchronous surface:
//
//   - SendBytes / SendMessage enqueue outbound data and return immediately
//   - a "message received" signal fires for every frame the codec decodes
//   - a "port closed" signal fires exactly once when the channel dies
//
// Concrete implementations live in the subpackages tcp and udp; shared
// machinery (reactor, transmit queue, signals, channel-id allocation,
// endpoint resolution) lives in base.
package transport
