// Package capture records FHZ frames to a CBOR stream and reads them back.
//
// A capture file is a plain sequence of CBOR maps, one per frame, with
// integer keys:
//
//	1: timestamp (RFC 3339, nanosecond precision)
//	2: direction (1 = received from the transceiver, 2 = sent to it)
//	3: type tag byte
//	4: data bytes
//
// Files are appended to, so a bridge restart continues the same capture.
// The replay command feeds a capture back through the decoder offline.
package capture
