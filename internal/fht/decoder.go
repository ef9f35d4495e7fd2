package fht

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/fhz"
)

// Kind tells whether a message acknowledges a command or reports state.
type Kind string

// Message kinds. The values appear in MQTT topics.
const (
	KindAck    Kind = "ack"
	KindStatus Kind = "status"
)

// Message layout markers and lengths.
var (
	statusMagic = []byte{0x09, 0x09, 0xa0, 0x01}
	ackMagic    = []byte{0x83, 0x09, 0x83, 0x01}
)

const (
	minMessageLen = 9
	ackLen        = 9
	statusLen     = 10

	offsetUpper       = 4
	offsetLower       = 5
	offsetFunction    = 6
	offsetAckValue    = 7
	offsetSubFunction = 7
	offsetStatus      = 8
	offsetStatusValue = 9
)

// Observation is one named value reported by a thermostat.
type Observation struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is a decoded FHT message.
type Message struct {
	Kind     Kind       `json:"kind"`
	Address  HouseCode  `json:"house_code"`
	Function FunctionID `json:"function"`

	// Observations holds one entry, or two for the status function. It is
	// empty when Pending is set.
	Observations []Observation `json:"observations"`

	// Pending is set when the message was absorbed into decoder state (the
	// low byte of a measured temperature) and produced nothing to report.
	Pending bool `json:"pending,omitempty"`
}

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// Registry overrides the command table (optional).
	Registry *Registry

	// ReadingTTL bounds how long a low temperature byte waits for its high
	// byte. Zero selects DefaultReadingTTL.
	ReadingTTL time.Duration
}

// Decoder turns frame payloads into FHT messages.
//
// Each Decoder owns the split reading cache for the thermostats it hears,
// so two transceivers need two decoders.
//
// Thread Safety:
//   - Decode is safe for concurrent use.
type Decoder struct {
	registry *Registry
	readings *SplitReadings
}

// NewDecoder creates a Decoder.
func NewDecoder(opts DecoderOptions) *Decoder {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Decoder{
		registry: reg,
		readings: NewSplitReadings(opts.ReadingTTL),
	}
}

// Readings exposes the split reading cache for housekeeping.
func (d *Decoder) Readings() *SplitReadings {
	return d.readings
}

// Decode interprets one payload.
//
// Status messages start with 09 09 a0 01 and are exactly 10 bytes, the
// value is the last byte. Acks start with 83 09 83 01 and are exactly 9
// bytes, the value is byte 7. Bytes 4-5 are the house code and byte 6 the
// function id in both.
//
// Returns:
//   - Message: Decoded message; Pending set when nothing is reported yet
//   - error: ErrUnrecognizedFrame, ErrUnknownCommand, ErrUnsupportedVariant
//     or ErrUnpairedReading
func (d *Decoder) Decode(p fhz.Payload) (Message, error) {
	data := p.Data
	if len(data) < minMessageLen {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrUnrecognizedFrame, len(data))
	}

	var (
		kind  Kind
		value byte
		vc    ValueContext
	)
	switch {
	case bytes.HasPrefix(data, statusMagic) && len(data) == statusLen:
		kind = KindStatus
		value = data[offsetStatusValue]
		vc.SubFunction = data[offsetSubFunction]
		vc.Status = data[offsetStatus]
	case bytes.HasPrefix(data, ackMagic) && len(data) == ackLen:
		kind = KindAck
		value = data[offsetAckValue]
	default:
		return Message{}, fmt.Errorf("%w: % x", ErrUnrecognizedFrame, data)
	}

	addr, err := NewHouseCode(data[offsetUpper], data[offsetLower])
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrUnrecognizedFrame, err)
	}
	vc.Address = addr
	vc.Readings = d.readings

	msg := Message{
		Kind:     kind,
		Address:  addr,
		Function: FunctionID(data[offsetFunction]),
	}

	if msg.Function == FuncStatus {
		msg.Observations = decodeStatus(value)
		return msg, nil
	}

	cmd, ok := d.registry.Lookup(msg.Function)
	if !ok {
		return Message{}, fmt.Errorf("%w: function %s from %s", ErrUnknownCommand, msg.Function, addr)
	}

	text, err := cmd.Decode(value, vc)
	if errors.Is(err, errPending) {
		msg.Pending = true
		return msg, nil
	}
	if err != nil {
		return Message{}, fmt.Errorf("decoding %s from %s: %w", cmd.Name, addr, err)
	}

	msg.Observations = []Observation{{Name: cmd.Name, Value: text}}
	return msg, nil
}
