package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration structs
// --------------------------------------------------------------------------

// SocketConf holds kernel buffer sizing shared by all socket kinds.
type SocketConf struct {
	// WriteBufferSize is the socket send buffer size in bytes (0 = kernel default)
	WriteBufferSize int
	// ReadBufferSize is the socket receive buffer size in bytes (0 = kernel default)
	ReadBufferSize int
}

// TCPConf holds TCP-specific tuning applied to stream connections.
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm when true
	TCPNoDelay bool
	// TCPKeepAliveSec enables keep-alive with the given period (0 = disabled)
	TCPKeepAliveSec int
	// TCPLingerSec sets the linger timeout (negative = kernel default)
	TCPLingerSec int
}

// --------------------------------------------------------------------------
// Channel configuration struct
// --------------------------------------------------------------------------

// ChannelConfig holds the construction parameters shared by every channel
// kind: the local protocol identity plus socket tuning.
type ChannelConfig struct {
	// SystemID is the local system id stamped on locally originated frames
	SystemID uint8
	// ComponentID is the local component id
	ComponentID uint8

	// Socket tuning
	Socket SocketConf
	TCP    TCPConf

	// Logging configuration
	LogLevel string
}

// DefaultChannelConfig returns the config used when no flags are given:
// identity (1, 1), Nagle disabled, kernel defaults elsewhere.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		SystemID:    1,
		ComponentID: 1,
		TCP:         TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		LogLevel:    "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *ChannelConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Identity
	addSection("Local Identity")
	addField("System ID", strconv.Itoa(int(c.SystemID)))
	addField("Component ID", strconv.Itoa(int(c.ComponentID)))

	// Socket settings
	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Socket.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Socket.ReadBufferSize))
	addField("TCP NoDelay", fmt.Sprintf("%t", c.TCP.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCP.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCP.TCPLingerSec))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
