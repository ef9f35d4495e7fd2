package bridge

import (
	"context"
	"io"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/capture"
	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// PortOpener opens the transceiver's serial port.
type PortOpener func() (io.ReadWriteCloser, error)

// DeviceStore receives every decoded message. *device.Registry implements it.
type DeviceStore interface {
	RecordMessage(ctx context.Context, msg fht.Message, at time.Time) error
	Count() int
}

// Broadcaster fans events out to websocket clients. *api.Hub implements it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// FrameRecorder appends frames to a capture. *capture.Recorder implements it.
type FrameRecorder interface {
	Record(dir capture.Direction, p fhz.Payload) error
}

// Logger interface for bridge logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
