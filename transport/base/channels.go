package base

import (
	"sync"

	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport"
)

// MaxChannels bounds the process-wide channel numbering space. The limit
// comes from the codec: each channel owns one parser state slot.
const MaxChannels = mavlink.NumChannels

// channel id allocator state, shared across all transport kinds
var (
	channelMu   sync.Mutex
	channelUsed [MaxChannels]bool
	channelCnt  int
)

// AllocateChannel claims the lowest free channel id. Returns
// transport.ErrChannelsExhausted when the numbering space is full.
func AllocateChannel() (uint8, error) {
	channelMu.Lock()
	defer channelMu.Unlock()

	for id := 0; id < MaxChannels; id++ {
		if !channelUsed[id] {
			channelUsed[id] = true
			channelCnt++
			return uint8(id), nil
		}
	}
	return 0, transport.ErrChannelsExhausted
}

// ReleaseChannel returns an id to the pool. Releasing a free id is a no-op.
func ReleaseChannel(id uint8) {
	channelMu.Lock()
	defer channelMu.Unlock()

	if int(id) < MaxChannels && channelUsed[id] {
		channelUsed[id] = false
		channelCnt--
	}
}

// ChannelsAvailable returns the number of free channel ids. Servers consult
// this before wrapping an accepted connection and reject the connection when
// it reaches zero.
func ChannelsAvailable() int {
	channelMu.Lock()
	defer channelMu.Unlock()
	return MaxChannels - channelCnt
}
