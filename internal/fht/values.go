package fht

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Temperature limits of the FHT80b. The thermostat shows the ends of the
// range as "off" and "on".
const (
	TempMin  = 5.5
	TempMax  = 30.5
	tempStep = 0.5
)

// errPending marks a value byte that was stored for later instead of
// producing an observation.
var errPending = errors.New("fht: reading pending")

// Valve status low nibble variants.
const (
	valvePosition     = 0x0
	valveOpen         = 0x1
	valveClosed       = 0x2
	valvePositionAlt  = 0x6
	valveOffset       = 0x8
	valveLimeProtect  = 0xa
	valveTest         = 0xe
	valvePairing      = 0xf
	limeHighNibbleLow = 0xa
	limeHighNibbleHi  = 0xb
)

// Status message bits (function 0x44).
const (
	statusBatteryBit = 0x01
	statusWindowBit  = 0x20
)

// decodeValve reports the valve opening in percent. The low nibble of the
// status byte says how to read the value byte; the high nibble only matters
// during lime protection.
func decodeValve(raw byte, vc ValueContext) (string, error) {
	high := vc.Status >> 4
	low := vc.Status & 0x0f

	value := raw
	switch low {
	case valvePosition, valvePositionAlt:
	case valveOpen:
		value = 0xff
	case valveClosed:
		value = 0x00
	case valveLimeProtect:
		if high != limeHighNibbleLow && high != limeHighNibbleHi {
			return "", fmt.Errorf("%w: lime protection with status 0x%02x", ErrUnsupportedVariant, vc.Status)
		}
	case valveOffset:
		return "", fmt.Errorf("%w: valve offset report (status 0x%02x)", ErrUnsupportedVariant, vc.Status)
	case valveTest:
		return "", fmt.Errorf("%w: valve test report (status 0x%02x)", ErrUnsupportedVariant, vc.Status)
	case valvePairing:
		return "", fmt.Errorf("%w: pairing report (status 0x%02x)", ErrUnsupportedVariant, vc.Status)
	default:
		return "", fmt.Errorf("%w: valve status 0x%02x", ErrUnsupportedVariant, vc.Status)
	}

	return strconv.FormatFloat(float64(value)*100/255, 'f', 1, 64), nil
}

// Operating modes in wire order.
var modeNames = [...]string{"auto", "manual", "holiday"}

func decodeMode(raw byte, _ ValueContext) (string, error) {
	if int(raw) < len(modeNames) {
		return modeNames[raw], nil
	}
	return "unknown", nil
}

func encodeMode(text string) (byte, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	for i, name := range modeNames {
		if t == name {
			return byte(i), nil //nolint:gosec // index of a three element array
		}
	}
	return 0, fmt.Errorf("%w: mode must be auto, manual or holiday, got %q", ErrInvalidInput, text)
}

// decodeTemperature shows a half-degree byte as Celsius with one decimal.
func decodeTemperature(raw byte, _ ValueContext) (string, error) {
	return strconv.FormatFloat(float64(raw)*tempStep, 'f', 1, 64), nil
}

// encodeTemperature parses Celsius text into half-degree steps. "on" and
// "off" select the top and bottom of the range. Values between steps are
// rounded to the nearest half degree, halves away from zero.
func encodeTemperature(text string) (byte, error) {
	t := strings.ToLower(strings.TrimSpace(text))

	var value float64
	switch t {
	case "on":
		value = TempMax
	case "off":
		value = TempMin
	default:
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: temperature %q is not a number", ErrInvalidInput, text)
		}
		value = v
	}

	if math.IsNaN(value) || value < TempMin || value > TempMax {
		return 0, fmt.Errorf("%w: temperature %s must be %.1f-%.1f", ErrOutOfRange, text, TempMin, TempMax)
	}

	return byte(math.Round(value / tempStep)), nil
}

// decodeTempLow stores the low byte of a measured temperature until the
// high byte arrives.
func decodeTempLow(raw byte, vc ValueContext) (string, error) {
	if vc.Readings == nil {
		return "", fmt.Errorf("%w: no reading cache for %s", ErrUnpairedReading, vc.Address)
	}
	vc.Readings.StoreLow(vc.Address, raw)
	return "", errPending
}

// decodeTempHigh combines the cached low byte with the high byte into
// tenths of a degree.
func decodeTempHigh(raw byte, vc ValueContext) (string, error) {
	if vc.Readings == nil {
		return "", fmt.Errorf("%w: no reading cache for %s", ErrUnpairedReading, vc.Address)
	}
	low, ok := vc.Readings.TakeLow(vc.Address)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnpairedReading, vc.Address)
	}
	tenths := int(low) + int(raw)*256
	return strconv.FormatFloat(float64(tenths)/10, 'f', 2, 64), nil
}

// decodeStatus splits the composite status byte into window and battery
// observations.
func decodeStatus(raw byte) []Observation {
	window := "close"
	if raw&statusWindowBit != 0 {
		window = "open"
	}
	battery := "ok"
	if raw&statusBatteryBit != 0 {
		battery = "empty"
	}
	return []Observation{
		{Name: "window", Value: window},
		{Name: "battery", Value: battery},
	}
}
