// Package serial opens the FHZ1000 transceiver's serial port.
//
// The FHZ1000 enumerates as a USB serial adapter and talks at 9600 baud,
// 8 data bits, no parity, one stop bit. The port is opened with a read
// timeout so the frame reader wakes up regularly while the link is idle;
// a timed-out read returns (0, nil), which the fhz codec treats as
// "keep waiting".
//
// Usage:
//
//	port, err := serial.Open(serial.FromConfig(cfg.Serial))
//	if err != nil {
//	    return err
//	}
//	defer port.Close()
//
//	codec := fhz.NewCodec(port, fhz.CodecOptions{})
package serial
