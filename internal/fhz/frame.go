package fhz

import (
	"encoding/hex"
	"fmt"
)

// Frame layout constants.
const (
	// Magic is the first byte of every frame.
	Magic byte = 0x81

	// MaxDataLen is the largest data section a frame can carry.
	MaxDataLen = 252

	// headerLen covers magic and length.
	headerLen = 2

	// innerHeaderLen covers type and checksum, which are counted by the
	// length byte.
	innerHeaderLen = 2
)

// Payload is the content of one frame: a type tag and the data bytes.
type Payload struct {
	// Type is the transceiver message type (0x04 for FHT commands).
	Type byte

	// Data is the frame data, at most MaxDataLen bytes.
	Data []byte
}

// String returns the payload as "type:hexdata" for logging.
func (p Payload) String() string {
	return fmt.Sprintf("%02x:%s", p.Type, hex.EncodeToString(p.Data))
}

// Checksum returns the 8-bit truncated sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// MarshalFrame returns the wire form of p.
//
// Returns:
//   - []byte: [0x81, len(data)+2, type, checksum, data...]
//   - error: ErrPayloadTooLarge if p.Data exceeds MaxDataLen
func MarshalFrame(p Payload) ([]byte, error) {
	if len(p.Data) > MaxDataLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(p.Data), MaxDataLen)
	}

	frame := make([]byte, 0, headerLen+innerHeaderLen+len(p.Data))
	frame = append(frame,
		Magic,
		byte(len(p.Data)+innerHeaderLen), //nolint:gosec // bounded by MaxDataLen above
		p.Type,
		Checksum(p.Data),
	)
	return append(frame, p.Data...), nil
}
