package fht

import (
	"fmt"
)

// HouseCode addresses one FHT80b thermostat.
//
// It is written as four decimal digits, "UULL". Each pair is sent as a
// plain byte holding the decimal value (not BCD):
//
//	"9601" → Upper 96 (0x60), Lower 1 (0x01)
type HouseCode struct {
	Upper uint8
	Lower uint8
}

// maxHouseCodePart is the largest value a two digit pair can hold.
const maxHouseCodePart = 99

// houseCodeDigits is the length of the text form.
const houseCodeDigits = 4

// ParseHouseCode parses the four digit text form of a house code.
//
// Parameters:
//   - s: Exactly four ASCII digits, e.g. "9601"
//
// Returns:
//   - HouseCode: Parsed address
//   - error: ErrInvalidInput for any other length or a non-digit character
func ParseHouseCode(s string) (HouseCode, error) {
	if len(s) != houseCodeDigits {
		return HouseCode{}, fmt.Errorf("%w: house code must be %d digits, got %q", ErrInvalidInput, houseCodeDigits, s)
	}

	var digits [houseCodeDigits]uint8
	for i := 0; i < houseCodeDigits; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return HouseCode{}, fmt.Errorf("%w: house code %q contains non-digit %q", ErrInvalidInput, s, c)
		}
		digits[i] = c - '0'
	}

	return HouseCode{
		Upper: digits[0]*10 + digits[1],
		Lower: digits[2]*10 + digits[3],
	}, nil
}

// NewHouseCode builds a house code from its two byte values.
//
// Returns:
//   - HouseCode: The address
//   - error: ErrInvalidInput if either part exceeds 99
func NewHouseCode(upper, lower uint8) (HouseCode, error) {
	if upper > maxHouseCodePart || lower > maxHouseCodePart {
		return HouseCode{}, fmt.Errorf("%w: house code parts must be 0-%d, got %d/%d", ErrInvalidInput, maxHouseCodePart, upper, lower)
	}
	return HouseCode{Upper: upper, Lower: lower}, nil
}

// String returns the four digit text form, e.g. "9601".
func (h HouseCode) String() string {
	return fmt.Sprintf("%02d%02d", h.Upper, h.Lower)
}

// MarshalText implements encoding.TextMarshaler.
func (h HouseCode) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HouseCode) UnmarshalText(text []byte) error {
	parsed, err := ParseHouseCode(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
