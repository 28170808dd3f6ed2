package mavlink

import (
	"fmt"
	"sync"
)

const (
	// Magic is the frame preamble byte (MAVLink v1 STX).
	Magic byte = 0xFE

	// HeaderLen is the number of framing bytes before the payload:
	// magic, length, sequence, system id, component id, message id.
	HeaderLen = 6

	// ChecksumLen is the number of trailing checksum bytes.
	ChecksumLen = 2

	// MaxPayloadLen is the maximum payload size encodable in the
	// one-byte length field.
	MaxPayloadLen = 255

	// NumChannels is the number of independent parser state slots. Every
	// transport channel in the process claims one slot, so this also bounds
	// the process-wide channel count.
	NumChannels = 16
)

// --------------------------------------------------------------------------
// Message
// --------------------------------------------------------------------------

// Message is one complete decoded frame. SysID and CompID carry the declared
// sender identity; Payload is opaque to the transport layer.
type Message struct {
	Seq      uint8
	SysID    uint8
	CompID   uint8
	MsgID    uint8
	Payload  []byte
	Checksum uint16
}

// Len returns the payload length.
func (m *Message) Len() int {
	return len(m.Payload)
}

// WireSize returns the full on-wire frame size including framing and checksum.
func (m *Message) WireSize() int {
	return HeaderLen + len(m.Payload) + ChecksumLen
}

// Bytes serializes the message with its current identity and checksum. The
// checksum is written as stored; callers that changed identity fields must go
// through Finalize instead. Panics when the payload exceeds MaxPayloadLen,
// which cannot be represented in the length byte.
func (m *Message) Bytes() []byte {
	checkPayloadLen(len(m.Payload))
	buf := make([]byte, 0, m.WireSize())
	buf = append(buf, Magic, uint8(len(m.Payload)), m.Seq, m.SysID, m.CompID, m.MsgID)
	buf = append(buf, m.Payload...)
	buf = append(buf, byte(m.Checksum&0xff), byte(m.Checksum>>8))
	return buf
}

// String returns a short diagnostic representation.
func (m *Message) String() string {
	return fmt.Sprintf("msg id=%d len=%d seq=%d sys=%d comp=%d", m.MsgID, len(m.Payload), m.Seq, m.SysID, m.CompID)
}

// --------------------------------------------------------------------------
// Finalize
// --------------------------------------------------------------------------

// Finalize rewrites the message identity to the given system/component pair
// and recomputes the length-dependent fields and checksum, returning the new
// wire bytes. The sequence number is preserved. The input message is not
// modified. Panics when the payload exceeds MaxPayloadLen.
func Finalize(m *Message, sysID, compID uint8) []byte {
	checkPayloadLen(len(m.Payload))
	out := Message{
		Seq:     m.Seq,
		SysID:   sysID,
		CompID:  compID,
		MsgID:   m.MsgID,
		Payload: m.Payload,
	}
	out.Checksum = frameChecksum(uint8(len(out.Payload)), out.Seq, out.SysID, out.CompID, out.MsgID, out.Payload)
	return out.Bytes()
}

// Seal computes and stores the checksum for a locally constructed message.
// Messages produced by the parser arrive already sealed. Panics when the
// payload exceeds MaxPayloadLen.
func Seal(m *Message) {
	checkPayloadLen(len(m.Payload))
	m.Checksum = frameChecksum(uint8(len(m.Payload)), m.Seq, m.SysID, m.CompID, m.MsgID, m.Payload)
}

// checkPayloadLen guards the one-byte length field against truncation.
func checkPayloadLen(n int) {
	if n > MaxPayloadLen {
		panic(fmt.Sprintf("mavlink: payload length %d exceeds maximum %d", n, MaxPayloadLen))
	}
}

// frameChecksum computes the X.25 checksum over the frame bytes after the
// magic, followed by the dialect's CRC-extra byte for the message type.
func frameChecksum(length, seq, sysID, compID, msgID uint8, payload []byte) uint16 {
	crc := newX25()
	crc.add(length)
	crc.add(seq)
	crc.add(sysID)
	crc.add(compID)
	crc.add(msgID)
	for _, b := range payload {
		crc.add(b)
	}
	crc.add(CRCExtra(msgID))
	return crc.sum
}

// --------------------------------------------------------------------------
// X.25 checksum
// --------------------------------------------------------------------------

// x25 accumulates the CRC-16/X.25 checksum used by the wire format.
type x25 struct {
	sum uint16
}

func newX25() x25 {
	return x25{sum: 0xffff}
}

func (c *x25) add(b byte) {
	tmp := b ^ byte(c.sum&0xff)
	tmp ^= tmp << 4
	c.sum = (c.sum >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

// --------------------------------------------------------------------------
// Dialect (CRC extra registry)
// --------------------------------------------------------------------------

var (
	dialectMu sync.RWMutex
	crcExtras = map[uint8]uint8{
		0:  50,  // HEARTBEAT
		1:  124, // SYS_STATUS
		2:  137, // SYSTEM_TIME
		20: 214, // PARAM_REQUEST_READ
		21: 159, // PARAM_REQUEST_LIST
		22: 220, // PARAM_VALUE
		23: 168, // PARAM_SET
		24: 24,  // GPS_RAW_INT
		30: 39,  // ATTITUDE
		33: 104, // GLOBAL_POSITION_INT
		76: 152, // COMMAND_LONG
	}
)

// RegisterCRCExtra adds or overrides the CRC-extra byte for a message id.
// Dialect extensions call this at init time.
func RegisterCRCExtra(msgID, extra uint8) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	crcExtras[msgID] = extra
}

// CRCExtra returns the CRC-extra byte for a message id, or zero for unknown
// message types (matching the behavior of parsers without the dialect loaded:
// such frames simply fail the checksum).
func CRCExtra(msgID uint8) uint8 {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	return crcExtras[msgID]
}
