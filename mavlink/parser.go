package mavlink

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Parser state machine
// --------------------------------------------------------------------------

// parseState enumerates the decoder positions within a frame.
type parseState uint8

const (
	stateIdle parseState = iota
	stateGotMagic
	stateGotLength
	stateGotSeq
	stateGotSysID
	stateGotCompID
	stateGotMsgID
	stateGotPayload
	stateGotCRC1
)

// Stats counts parser activity since creation. Values are owned by the
// feeding goroutine and must not be read concurrently with Feed.
type Stats struct {
	FramesParsed uint64
	CRCFailures  uint64
	BytesDropped uint64
}

// Parser reassembles frames from a byte stream, one byte per Feed call.
// A Parser is not safe for concurrent use; each transport channel feeds its
// own instance from its own receive loop.
type Parser struct {
	state   parseState
	length  uint8
	msg     Message
	payload [MaxPayloadLen]byte
	filled  uint8
	crc     x25
	crcLow  uint8
	stats   Stats
}

// NewParser returns a parser in the idle (hunting for magic) state.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one byte of the stream. It returns a complete validated
// message when the byte finishes a frame, or nil otherwise. Bytes that do not
// advance a frame (noise between frames, checksum failures) are dropped
// silently; the stream stays synchronized by hunting for the next magic byte.
func (p *Parser) Feed(b byte) *Message {
	switch p.state {
	case stateIdle:
		if b == Magic {
			p.beginFrame()
			p.state = stateGotMagic
		} else {
			p.stats.BytesDropped++
		}

	case stateGotMagic:
		p.length = b
		p.crc.add(b)
		p.state = stateGotLength

	case stateGotLength:
		p.msg.Seq = b
		p.crc.add(b)
		p.state = stateGotSeq

	case stateGotSeq:
		p.msg.SysID = b
		p.crc.add(b)
		p.state = stateGotSysID

	case stateGotSysID:
		p.msg.CompID = b
		p.crc.add(b)
		p.state = stateGotCompID

	case stateGotCompID:
		p.msg.MsgID = b
		p.crc.add(b)
		if p.length == 0 {
			p.state = stateGotPayload
		} else {
			p.state = stateGotMsgID
		}

	case stateGotMsgID:
		p.payload[p.filled] = b
		p.filled++
		p.crc.add(b)
		if p.filled == p.length {
			p.state = stateGotPayload
		}

	case stateGotPayload:
		p.crc.add(CRCExtra(p.msg.MsgID))
		if b != byte(p.crc.sum&0xff) {
			p.failFrame()
			break
		}
		p.crcLow = b
		p.state = stateGotCRC1

	case stateGotCRC1:
		if b != byte(p.crc.sum>>8) {
			p.failFrame()
			break
		}
		p.state = stateIdle
		p.stats.FramesParsed++

		msg := p.msg
		msg.Payload = make([]byte, p.length)
		copy(msg.Payload, p.payload[:p.length])
		msg.Checksum = uint16(p.crcLow) | uint16(b)<<8
		return &msg
	}

	return nil
}

// Stats returns a copy of the parser counters.
func (p *Parser) Stats() Stats {
	return p.stats
}

// beginFrame resets per-frame state after a magic byte.
func (p *Parser) beginFrame() {
	p.msg = Message{}
	p.filled = 0
	p.crc = newX25()
}

// reset returns the parser to its initial state, discarding any partial frame
// and the counters.
func (p *Parser) reset() {
	*p = Parser{}
}

// failFrame records a checksum failure and drops the partial frame.
func (p *Parser) failFrame() {
	p.stats.CRCFailures++
	p.stats.BytesDropped += uint64(HeaderLen + p.filled)
	p.state = stateIdle
}

// --------------------------------------------------------------------------
// Per-channel parser slots
// --------------------------------------------------------------------------

var channelParsers [NumChannels]*Parser

func init() {
	for i := range channelParsers {
		channelParsers[i] = NewParser()
	}
}

// ParserForChannel returns the parser state slot for a channel id, reset to
// the idle state. The slot is owned by that channel's receive loop for the
// channel's lifetime; the reset keeps a reallocated id from inheriting a
// partial frame left by the previous owner. The bound on ids is what makes
// the process-wide channel capacity finite.
func ParserForChannel(channel uint8) *Parser {
	if int(channel) >= NumChannels {
		panic(fmt.Sprintf("mavlink: channel %d out of range (max %d)", channel, NumChannels-1))
	}
	p := channelParsers[channel]
	p.reset()
	return p
}
