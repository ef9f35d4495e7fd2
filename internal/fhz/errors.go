package fhz

import "errors"

// Frame layer errors.
var (
	// ErrBadMagic is returned when a frame does not start with 0x81.
	ErrBadMagic = errors.New("fhz: bad frame magic")

	// ErrShortRead is returned when the transport delivers fewer bytes than
	// the frame header announced.
	ErrShortRead = errors.New("fhz: short read")

	// ErrChecksumMismatch is returned when the received checksum does not
	// match the sum of the data bytes.
	ErrChecksumMismatch = errors.New("fhz: checksum mismatch")

	// ErrIO is returned when the underlying transport fails.
	ErrIO = errors.New("fhz: transport error")

	// ErrPayloadTooLarge is returned when a payload carries more than
	// MaxDataLen bytes of data.
	ErrPayloadTooLarge = errors.New("fhz: payload too large")
)
