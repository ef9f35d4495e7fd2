package capture

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/fhz2mqtt/internal/fhz"
)

// Direction tells whether a frame was received or sent.
type Direction uint8

const (
	// DirectionIn is a frame read from the transceiver.
	DirectionIn Direction = 1
	// DirectionOut is a frame written to the transceiver.
	DirectionOut Direction = 2
)

// String returns "in", "out" or "unknown".
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return "unknown"
	}
}

// Record is one captured frame.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Type      byte      `cbor:"3,keyasint"`
	Data      []byte    `cbor:"4,keyasint"`
}

// Payload returns the frame's payload.
func (r Record) Payload() fhz.Payload {
	return fhz.Payload{Type: r.Type, Data: r.Data}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: CBOR encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: CBOR decoder mode: %v", err))
	}
}
