package device

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
)

// Validation constants.
const (
	maxNameLength = 100

	// Limits on the state JSON column. A thermostat reports a fixed set of
	// commands so these are generous.
	maxStateKeys      = 32
	maxStringValueLen = 64
)

// ValidateHouseCode checks that s is a four digit house code.
func ValidateHouseCode(s string) error {
	if _, err := fht.ParseHouseCode(s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHouseCode, s)
	}
	return nil
}

// ValidateName checks a thermostat label. Empty names are allowed.
func ValidateName(name string) error {
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: contains non-printable character %U", ErrInvalidName, r)
		}
	}
	return nil
}

// ValidateState checks an observation batch before it is merged into the
// stored state.
func ValidateState(s State) error {
	if len(s) > maxStateKeys {
		return fmt.Errorf("%w: %d keys exceeds %d", ErrInvalidState, len(s), maxStateKeys)
	}
	for k, v := range s {
		if k == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidState)
		}
		if len(k) > maxStringValueLen || len(v) > maxStringValueLen {
			return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidState, k, maxStringValueLen)
		}
	}
	return nil
}
