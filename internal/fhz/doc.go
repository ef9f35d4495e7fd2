// Package fhz implements the serial frame layer of the FHZ1000 family of
// RF transceivers.
//
// The transceiver speaks a simple checksummed frame format over a 9600 baud
// 8N1 serial line:
//
//	┌──────┬─────┬──────┬──────────┬──────────────┐
//	│ 0x81 │ len │ type │ checksum │ data ...     │
//	└──────┴─────┴──────┴──────────┴──────────────┘
//
// len counts everything after itself (type + checksum + data), so it is
// always len(data)+2. The checksum is the 8-bit truncated sum of the data
// bytes only. Data is at most 252 bytes.
//
// This package knows nothing about what the data means. The FHT80b
// thermostat command layer lives in package fht.
//
// # Reading
//
// The transceiver writes frames in bursts and the serial driver may hand
// them over in pieces. ReadPayload therefore waits for the first byte,
// then sleeps a settle delay (300ms by default) before reading the rest of
// the frame, so that a complete frame is normally buffered when the
// remaining reads happen.
//
// # Thread Safety
//
// A Codec may be written to from several goroutines; frames are never
// interleaved. Reads must come from a single goroutine.
package fhz
