package fht

import (
	"fmt"

	"github.com/nerrad567/fhz2mqtt/internal/fhz"
)

// TypeFHTCommand is the frame type tag of commands sent to thermostats.
const TypeFHTCommand byte = 0x04

// commandPrefix opens the data section of every outgoing FHT command.
var commandPrefix = [...]byte{0x02, 0x01, 0x83}

// PayloadWriter sends framed payloads. *fhz.Codec implements it.
type PayloadWriter interface {
	WritePayload(p fhz.Payload) error
}

// Encoder builds command payloads from user text.
//
// Thread Safety:
//   - Safe for concurrent use.
type Encoder struct {
	registry *Registry
}

// NewEncoder creates an Encoder. A nil registry selects DefaultRegistry.
func NewEncoder(reg *Registry) *Encoder {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Encoder{registry: reg}
}

// Encode builds the payload that sets command name to text on addr.
//
// Parameters:
//   - addr: Target thermostat
//   - name: Exact command name, e.g. "desired-temp"
//   - text: Value in display form, e.g. "21.5", "on", "auto"
//
// Returns:
//   - fhz.Payload: Type 0x04, data [02 01 83 upper lower function value]
//   - error: ErrUnknownCommand for unknown or read-only commands,
//     ErrInvalidInput or ErrOutOfRange from the value conversion
func (e *Encoder) Encode(addr HouseCode, name, text string) (fhz.Payload, error) {
	cmd, ok := e.registry.LookupName(name)
	if !ok {
		return fhz.Payload{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	value, err := cmd.Encode(text)
	if err != nil {
		return fhz.Payload{}, err
	}

	data := make([]byte, 0, len(commandPrefix)+4)
	data = append(data, commandPrefix[:]...)
	data = append(data, addr.Upper, addr.Lower, byte(cmd.ID), value)

	return fhz.Payload{Type: TypeFHTCommand, Data: data}, nil
}

// Send encodes the command and writes it through w.
func (e *Encoder) Send(w PayloadWriter, addr HouseCode, name, text string) error {
	p, err := e.Encode(addr, name, text)
	if err != nil {
		return err
	}
	return w.WritePayload(p)
}
