package fht

import "errors"

// Command layer errors.
var (
	// ErrUnrecognizedFrame is returned when a payload is neither an FHT ack
	// nor an FHT status message.
	ErrUnrecognizedFrame = errors.New("fht: unrecognized frame")

	// ErrUnknownCommand is returned for a function id or command name that
	// is not in the registry, and when a read-only command is sent.
	ErrUnknownCommand = errors.New("fht: unknown command")

	// ErrUnsupportedVariant is returned when a status byte carries a
	// variant the decoder does not model.
	ErrUnsupportedVariant = errors.New("fht: unsupported variant")

	// ErrUnpairedReading is returned when the high byte of a measured
	// temperature arrives without a fresh low byte for the same thermostat.
	ErrUnpairedReading = errors.New("fht: high byte without low byte")

	// ErrInvalidInput is returned when text cannot be parsed into a value.
	ErrInvalidInput = errors.New("fht: invalid input")

	// ErrOutOfRange is returned when a parsed value lies outside the range
	// the thermostat accepts.
	ErrOutOfRange = errors.New("fht: value out of range")
)
