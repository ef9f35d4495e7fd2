package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	goserial "go.bug.st/serial"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
)

// Line settings of the FHZ1000.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = time.Second

	dataBits = 8
)

// ErrOpenFailed is returned when the serial device cannot be opened or configured.
var ErrOpenFailed = errors.New("serial: open failed")

// Config describes how to open the port.
type Config struct {
	// Device is the OS path of the port, e.g. /dev/ttyUSB0.
	Device string

	// BaudRate defaults to 9600.
	BaudRate int

	// ReadTimeout bounds each Read call. Defaults to one second.
	ReadTimeout time.Duration
}

// FromConfig maps the serial section of config.yaml to a Config.
func FromConfig(cfg config.SerialConfig) Config {
	return Config{
		Device:      cfg.Device,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout(),
	}
}

// mode returns the line settings with defaults applied.
func (c Config) mode() *goserial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &goserial.Mode{
		BaudRate: baud,
		DataBits: dataBits,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}
	return c.ReadTimeout
}

// Open opens and configures the port. Bytes left in the input buffer from
// before the open are discarded so the first read starts on a frame boundary
// as far as possible.
//
// Parameters:
//   - cfg: Device path and line settings
//
// Returns:
//   - io.ReadWriteCloser: The open port
//   - error: Wrapping ErrOpenFailed on failure
func Open(cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: no device configured", ErrOpenFailed)
	}

	port, err := goserial.Open(cfg.Device, cfg.mode())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, cfg.Device, err)
	}

	if err := port.SetReadTimeout(cfg.readTimeout()); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: setting read timeout: %w", ErrOpenFailed, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: flushing input: %w", ErrOpenFailed, err)
	}

	return port, nil
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := goserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
