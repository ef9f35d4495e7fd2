// Package fht implements the command layer of the FHT80b radiator
// thermostat protocol as seen through an FHZ1000 transceiver.
//
// It sits on top of the frame layer in package fhz and gives meaning to the
// frame data: thermostat addressing (HouseCode), the table of known
// functions (Registry), decoding of incoming acks and status messages
// (Decoder) and encoding of outgoing commands (Encoder).
//
// # Values
//
// Temperatures travel as half-degree steps between 5.5 and 30.5 °C. The
// measured room temperature is split over two messages (is-temp-low and
// is-temp-high) in tenths of a degree; the Decoder keeps the low byte per
// thermostat until the high byte arrives. Valve position and the composite
// window/battery status carry bit fields that are decoded here.
//
// Example:
//
//	hc, err := fht.ParseHouseCode("9601")
//	if err != nil {
//	    return err
//	}
//	p, err := fht.NewEncoder(nil).Encode(hc, "desired-temp", "21.5")
//	if err != nil {
//	    return err
//	}
//	err = codec.WritePayload(p)
package fht
