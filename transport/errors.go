package transport

import (
	"errors"
	"fmt"
)

// ErrNoAddresses is returned when endpoint resolution yields zero results.
var ErrNoAddresses = errors.New("no addresses found for host")

// ErrChannelsExhausted is returned when the process-wide channel numbering
// space has no free slot left.
var ErrChannelsExhausted = errors.New("all channels in use")

// DeviceError is a construction-time failure of a channel: the socket or
// resolver operation that failed plus the underlying cause. Post-construction
// I/O failures are never surfaced this way - they close the channel and fire
// the closed signal instead.
type DeviceError struct {
	// Op names the failing operation, e.g. "tcp: connect" or "udp: bind".
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError wraps an operation failure.
func NewDeviceError(op string, err error) *DeviceError {
	return &DeviceError{Op: op, Err: err}
}
