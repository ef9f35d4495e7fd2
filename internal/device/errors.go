package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrThermostatNotFound) {
//	    // respond 404
//	}
var (
	// ErrThermostatNotFound is returned when no row exists for a house code.
	ErrThermostatNotFound = errors.New("device: thermostat not found")

	// ErrInvalidHouseCode is returned when a house code is not four decimal digits.
	ErrInvalidHouseCode = errors.New("device: invalid house code")

	// ErrInvalidName is returned when a thermostat name is too long or not printable.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidState is returned when an observation batch breaks the state limits.
	ErrInvalidState = errors.New("device: invalid state")
)
