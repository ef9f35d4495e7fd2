package serial

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	goserial "go.bug.st/serial"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.SerialConfig{
		Device:        "/dev/ttyUSB1",
		BaudRate:      9600,
		ReadTimeoutMS: 250,
	})

	if cfg.Device != "/dev/ttyUSB1" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.ReadTimeout != 250*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 250ms", cfg.ReadTimeout)
	}
}

func TestConfig_Mode(t *testing.T) {
	mode := Config{}.mode()

	if mode.BaudRate != DefaultBaudRate {
		t.Errorf("BaudRate = %d, want %d", mode.BaudRate, DefaultBaudRate)
	}
	if mode.DataBits != 8 || mode.Parity != goserial.NoParity || mode.StopBits != goserial.OneStopBit {
		t.Errorf("mode = %+v, want 8N1", mode)
	}

	if got := (Config{BaudRate: 19200}).mode().BaudRate; got != 19200 {
		t.Errorf("BaudRate override = %d, want 19200", got)
	}
}

func TestConfig_ReadTimeout(t *testing.T) {
	if got := (Config{}).readTimeout(); got != DefaultReadTimeout {
		t.Errorf("readTimeout() = %v, want %v", got, DefaultReadTimeout)
	}
	if got := (Config{ReadTimeout: 50 * time.Millisecond}).readTimeout(); got != 50*time.Millisecond {
		t.Errorf("readTimeout() = %v, want 50ms", got)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Config{}); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("Open(no device) error = %v, want ErrOpenFailed", err)
	}

	missing := filepath.Join(t.TempDir(), "ttyUSB9")
	if _, err := Open(Config{Device: missing}); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("Open(%s) error = %v, want ErrOpenFailed", missing, err)
	}
}
