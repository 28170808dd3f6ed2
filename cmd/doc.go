// Package cmd implements the command-line interface for the mavconn transport
// toolkit. It provides a hierarchical command structure for bridging, probing
// and measuring framed protocol links.
//
// The package is organized into several subpackages:
//
//   - proxy: Bridge two channels (e.g. a TCP server and a UDP link)
//   - send: Inject hand-built frames into a channel
//   - perf: Throughput measurement against an echoing peer
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See mavconn -help for a list of all commands.
package cmd
