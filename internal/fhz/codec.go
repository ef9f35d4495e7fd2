package fhz

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultSettleDelay is the pause between seeing the first byte of a frame
// and reading the rest of it.
const DefaultSettleDelay = 300 * time.Millisecond

// Logger interface for optional frame tracing.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// CodecOptions configures a Codec.
type CodecOptions struct {
	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration

	// DryRun builds and logs outgoing frames without writing them.
	DryRun bool

	// Logger receives hex dumps of every frame at debug level (optional).
	Logger Logger
}

// Codec reads and writes frames on a serial transport.
//
// Thread Safety:
//   - WritePayload is safe for concurrent use.
//   - ReadPayload must only be called from one goroutine at a time.
type Codec struct {
	rw          io.ReadWriter
	settleDelay time.Duration
	dryRun      bool
	logger      Logger

	// sleep is replaced in tests.
	sleep func(time.Duration)

	writeMu sync.Mutex
}

// NewCodec creates a Codec on top of rw.
//
// Parameters:
//   - rw: Open transport, normally a serial port with a read timeout
//   - opts: Codec options; the zero value gives the default settle delay
//
// Returns:
//   - *Codec: Ready to read and write frames
func NewCodec(rw io.ReadWriter, opts CodecOptions) *Codec {
	delay := opts.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Codec{
		rw:          rw,
		settleDelay: delay,
		dryRun:      opts.DryRun,
		logger:      opts.Logger,
		sleep:       time.Sleep,
	}
}

// WritePayload frames p and writes it to the transport in a single write.
//
// Returns:
//   - error: ErrPayloadTooLarge, or ErrIO if the transport fails or accepts
//     fewer bytes than the frame holds
func (c *Codec) WritePayload(p Payload) error {
	frame, err := MarshalFrame(p)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.dryRun {
		if c.logger != nil {
			c.logger.Info("dry run, frame not sent", "frame", hex.EncodeToString(frame))
		}
		return nil
	}

	if c.logger != nil {
		c.logger.Debug("frame sent", "frame", hex.EncodeToString(frame))
	}

	n, err := c.rw.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write, %d of %d bytes", ErrIO, n, len(frame))
	}
	return nil
}

// ReadPayload blocks until a frame arrives and returns its payload.
//
// Zero-byte reads while waiting for the first byte are treated as a
// transport read timeout and the wait continues. Once the first byte is in,
// the codec sleeps the settle delay and then expects the rest of the frame
// to be available.
//
// Returns:
//   - Payload: Type tag and data of the received frame
//   - error: ErrBadMagic, ErrShortRead, ErrChecksumMismatch or ErrIO
func (c *Codec) ReadPayload() (Payload, error) {
	var header [headerLen]byte
	if err := c.awaitFirstByte(header[:1]); err != nil {
		return Payload{}, err
	}

	c.sleep(c.settleDelay)

	if err := c.readFull(header[1:]); err != nil {
		return Payload{}, err
	}
	if header[0] != Magic {
		return Payload{}, fmt.Errorf("%w: got 0x%02x", ErrBadMagic, header[0])
	}

	body := make([]byte, int(header[1]))
	if err := c.readFull(body); err != nil {
		return Payload{}, err
	}

	if c.logger != nil {
		c.logger.Debug("frame received",
			"frame", hex.EncodeToString(header[:])+hex.EncodeToString(body),
		)
	}

	if len(body) < innerHeaderLen {
		return Payload{}, fmt.Errorf("%w: length byte %d leaves no room for type and checksum", ErrShortRead, header[1])
	}

	data := body[innerHeaderLen:]
	if sum := Checksum(data); sum != body[1] {
		return Payload{}, fmt.Errorf("%w: frame says 0x%02x, data sums to 0x%02x", ErrChecksumMismatch, body[1], sum)
	}

	return Payload{Type: body[0], Data: data}, nil
}

// awaitFirstByte reads until one byte arrives. A serial port configured with
// a read timeout returns (0, nil) on every timeout, which keeps the loop
// waiting.
func (c *Codec) awaitFirstByte(buf []byte) error {
	for {
		n, err := c.rw.Read(buf)
		if n == len(buf) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read: %w", ErrIO, err)
		}
	}
}

// readFull fills buf. Running out of data, either through EOF or a
// zero-byte timeout read, is a short read; anything else is a transport
// error.
func (c *Codec) readFull(buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := c.rw.Read(buf[off:])
		off += n
		if off == len(buf) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, off, len(buf))
			}
			return fmt.Errorf("%w: read: %w", ErrIO, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, off, len(buf))
		}
	}
	return nil
}
