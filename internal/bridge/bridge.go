package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/fhz2mqtt/internal/capture"
	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/mqtt"
)

const (
	// setTimeout bounds a set request received over MQTT.
	setTimeout = 5 * time.Second

	// defaultReconnectInterval is used when the config gives none.
	defaultReconnectInterval = 5 * time.Second
)

// Bridge moves FHT traffic between the FHZ1000 transceiver and MQTT.
// It handles:
//   - Reading frames, decoding them and publishing each observation
//   - Set requests from MQTT and the HTTP API
//   - Reopening the serial port after transport errors
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg         *config.Config
	mqtt        MQTTClient
	openPort    PortOpener
	devices     DeviceStore
	broadcaster Broadcaster
	recorder    FrameRecorder

	topics            mqtt.Topics
	qos               byte
	reconnectInterval time.Duration
	decoder           *fht.Decoder
	encoder           *fht.Encoder
	health            *HealthReporter
	stats             counters

	// Transceiver state. The reader goroutine holds no lock while blocked
	// in ReadPayload; closing the port is what wakes it.
	portMu         sync.RWMutex
	port           io.ReadWriteCloser
	codec          *fhz.Codec
	connectedSince time.Time
	lastError      string
	connected      atomic.Bool

	// Shutdown coordination
	started   atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	now func() time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Config is the loaded configuration.
	Config *config.Config

	// MQTTClient publishes observations and receives set requests.
	MQTTClient MQTTClient

	// OpenPort opens the transceiver port, initially and after errors.
	OpenPort PortOpener

	// Devices is the optional thermostat inventory.
	Devices DeviceStore

	// Broadcaster is the optional websocket hub.
	Broadcaster Broadcaster

	// Recorder is the optional frame capture.
	Recorder FrameRecorder

	// Logger is optional structured logger.
	Logger Logger

	// Version is reported in health messages.
	Version string
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.OpenPort == nil {
		return nil, fmt.Errorf("port opener is required")
	}

	cfg := opts.Config
	ctx, ctxCancel := context.WithCancel(context.Background())

	reconnect := cfg.Serial.ReconnectDelay()
	if reconnect <= 0 {
		reconnect = defaultReconnectInterval
	}

	b := &Bridge{
		cfg:               cfg,
		mqtt:              opts.MQTTClient,
		openPort:          opts.OpenPort,
		devices:           opts.Devices,
		broadcaster:       opts.Broadcaster,
		recorder:          opts.Recorder,
		topics:            mqtt.Topics{Namespace: cfg.MQTT.Namespace},
		qos:               byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2 by config
		reconnectInterval: reconnect,
		decoder:           fht.NewDecoder(fht.DecoderOptions{ReadingTTL: cfg.Bridge.PendingTTL()}),
		encoder:           fht.NewEncoder(nil),
		done:              make(chan struct{}),
		ctx:               ctx,
		ctxCancel:         ctxCancel,
		now:               time.Now,
		logger:            opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   opts.Version,
		Topic:     b.topics.BridgeHealth(),
		QoS:       b.qos,
		Interval:  cfg.Bridge.HealthPeriod(),
		Publisher: opts.MQTTClient,
		Source:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// It opens the port, subscribes to set requests, and starts the reader
// and health reporting. A port that fails to open is retried by the reader.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("bridge already started")
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.connect(); err != nil {
		b.logWarn("transceiver not available, will retry",
			"device", b.cfg.Serial.Device,
			"error", err,
			"retry_in", b.reconnectInterval)
	}

	setTopic := b.topics.AllFHTSets()
	if err := b.mqtt.Subscribe(setTopic, b.qos, b.handleSetMessage); err != nil {
		b.closePort("")
		return fmt.Errorf("subscribe to set requests: %w", err)
	}
	b.logInfo("subscribed to set requests", "topic", setTopic)

	b.wg.Add(1)
	go b.readLoop()

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"device", b.cfg.Serial.Device,
		"dry_run", b.cfg.Serial.DryRun)

	return nil
}

// Stop gracefully shuts down the bridge.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		b.health.Stop()

		// Unblocks ReadPayload.
		b.closePort("")

		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// =============================================================================
// Transceiver
// =============================================================================

// connect opens the port and installs a codec on it.
func (b *Bridge) connect() error {
	port, err := b.openPort()
	if err != nil {
		b.portMu.Lock()
		b.lastError = err.Error()
		b.portMu.Unlock()
		return err
	}

	codec := fhz.NewCodec(port, fhz.CodecOptions{
		SettleDelay: b.cfg.Serial.SettleDelay(),
		DryRun:      b.cfg.Serial.DryRun,
		Logger:      b.getLogger(),
	})

	b.portMu.Lock()
	b.port = port
	b.codec = codec
	b.connectedSince = b.now().UTC()
	b.lastError = ""
	b.portMu.Unlock()
	b.connected.Store(true)
	b.health.Notify()

	b.logInfo("transceiver connected", "device", b.cfg.Serial.Device)
	return nil
}

// closePort closes the port if it is open. reason, when set, is kept as the
// last error.
func (b *Bridge) closePort(reason string) {
	b.portMu.Lock()
	port := b.port
	b.port = nil
	b.codec = nil
	if reason != "" {
		b.lastError = reason
	}
	b.portMu.Unlock()
	b.connected.Store(false)

	if port != nil {
		b.health.Notify()
		if err := port.Close(); err != nil {
			b.logDebug("closing port", "error", err)
		}
	}
}

func (b *Bridge) currentCodec() *fhz.Codec {
	b.portMu.RLock()
	defer b.portMu.RUnlock()
	return b.codec
}

// stopping reports whether Stop has been called.
func (b *Bridge) stopping() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// readLoop reads frames until Stop. Transport errors close the port and the
// loop reopens it after the reconnect interval.
func (b *Bridge) readLoop() {
	defer b.wg.Done()

	for !b.stopping() {
		codec := b.currentCodec()
		if codec == nil {
			if !b.waitReconnect() {
				return
			}
			if err := b.connect(); err != nil {
				b.logDebug("reconnect failed", "error", err)
			}
			continue
		}

		p, err := codec.ReadPayload()
		if err != nil {
			if b.stopping() {
				return
			}
			b.handleReadError(err)
			continue
		}
		b.handlePayload(p)
	}
}

// waitReconnect sleeps for the reconnect interval. It returns false if the
// bridge stops meanwhile.
func (b *Bridge) waitReconnect() bool {
	timer := time.NewTimer(b.reconnectInterval)
	defer timer.Stop()

	select {
	case <-b.done:
		return false
	case <-b.ctx.Done():
		return false
	case <-timer.C:
		b.stats.reconnects.Add(1)
		return true
	}
}

func (b *Bridge) handleReadError(err error) {
	if errors.Is(err, fhz.ErrIO) {
		b.logWarn("transceiver read failed, reopening port",
			"error", err,
			"retry_in", b.reconnectInterval)
		b.closePort(err.Error())
		return
	}
	if b.stats.countDecodeError(err) {
		b.logWarn("frame discarded", "error", err)
		return
	}
	b.logError("unexpected read error", err)
}

// handlePayload decodes one received payload and publishes the result.
func (b *Bridge) handlePayload(p fhz.Payload) {
	b.stats.framesReceived.Add(1)
	at := b.now().UTC()

	if b.recorder != nil {
		if err := b.recorder.Record(capture.DirectionIn, p); err != nil {
			b.logError("failed to record frame", err)
		}
	}

	msg, err := b.decoder.Decode(p)
	if err != nil {
		b.stats.countDecodeError(err)
		b.logDebug("message not decoded", "payload", p.String(), "error", err)
		return
	}

	hc := msg.Address.String()
	if msg.Pending {
		b.logDebug("low byte cached", "house_code", hc)
	}

	for _, obs := range msg.Observations {
		topic := b.topics.FHTObservation(hc, string(msg.Kind), obs.Name)
		if err := b.mqtt.Publish(topic, []byte(obs.Value), b.qos, b.cfg.MQTT.Retain); err != nil {
			b.stats.publishFailures.Add(1)
			b.logError("failed to publish observation", err)
			continue
		}
		b.stats.published.Add(1)
		b.logDebug("observation published", "topic", topic, "value", obs.Value)
	}

	if b.devices != nil {
		if err := b.devices.RecordMessage(b.ctx, msg, at); err != nil {
			b.logError("failed to record thermostat state", err)
		}
	}

	if b.broadcaster != nil && len(msg.Observations) > 0 {
		b.broadcaster.Broadcast(ObservationChannel, ObservationEvent{
			HouseCode:    hc,
			Kind:         msg.Kind,
			Function:     msg.Function.String(),
			Observations: msg.Observations,
			Timestamp:    at,
		})
	}
}

// =============================================================================
// Set requests
// =============================================================================

// Set sends one command to a thermostat.
//
// Parameters:
//   - ctx: Checked before the frame is written
//   - houseCode: Four decimal digits, e.g. "9601"
//   - command: Writable command name, e.g. "desired-temp"
//   - value: Display value, e.g. "21.5" or "manual"
//
// Returns:
//   - SetResult: Always filled in, Status tells the outcome
//   - error: fht.ErrInvalidInput, fht.ErrOutOfRange, fht.ErrUnknownCommand,
//     ErrNotConnected, fhz.ErrIO or the context error
func (b *Bridge) Set(ctx context.Context, houseCode, command, value string) (SetResult, error) {
	result := SetResult{
		ID:        uuid.NewString(),
		Timestamp: b.now().UTC(),
		HouseCode: houseCode,
		Command:   command,
		Value:     value,
		Status:    SetAccepted,
		DryRun:    b.cfg.Serial.DryRun,
	}

	p, err := b.send(ctx, houseCode, command, value)
	if err != nil {
		b.stats.setFailures.Add(1)
		result.Status = SetFailed
		result.DryRun = false
		result.Error = &SetError{Code: ErrorCode(err), Message: err.Error()}
		b.logWarn("set request failed",
			"id", result.ID,
			"house_code", houseCode,
			"command", command,
			"value", value,
			"error", err)
		return result, err
	}

	result.Frame = p.String()
	b.logInfo("set request sent",
		"id", result.ID,
		"house_code", houseCode,
		"command", command,
		"value", value,
		"frame", result.Frame)
	return result, nil
}

func (b *Bridge) send(ctx context.Context, houseCode, command, value string) (fhz.Payload, error) {
	addr, err := fht.ParseHouseCode(houseCode)
	if err != nil {
		return fhz.Payload{}, err
	}
	p, err := b.encoder.Encode(addr, command, value)
	if err != nil {
		return fhz.Payload{}, err
	}
	if err := ctx.Err(); err != nil {
		return fhz.Payload{}, err
	}

	b.portMu.RLock()
	codec := b.codec
	if codec == nil {
		b.portMu.RUnlock()
		return fhz.Payload{}, ErrNotConnected
	}
	err = codec.WritePayload(p)
	b.portMu.RUnlock()
	if err != nil {
		return fhz.Payload{}, err
	}

	b.stats.framesSent.Add(1)
	if b.recorder != nil {
		if err := b.recorder.Record(capture.DirectionOut, p); err != nil {
			b.logError("failed to record frame", err)
		}
	}
	return p, nil
}

// handleSetMessage serves <namespace>/set/fht/<house code>/<command>. The
// payload is the value as plain text.
func (b *Bridge) handleSetMessage(topic string, payload []byte) error {
	houseCode, command, ok := b.topics.ParseFHTSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidSetTopic, topic)
	}

	ctx, cancel := context.WithTimeout(b.ctx, setTimeout)
	defer cancel()

	result, _ := b.Set(ctx, houseCode, command, string(payload)) //nolint:errcheck // outcome is in result

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal set result: %w", err)
	}
	if err := b.mqtt.Publish(b.topics.FHTResult(houseCode, command), data, b.qos, false); err != nil {
		return fmt.Errorf("publish set result: %w", err)
	}
	return nil
}

// =============================================================================
// Status
// =============================================================================

// Transceiver returns the serial link status.
func (b *Bridge) Transceiver() TransceiverStatus {
	b.portMu.RLock()
	defer b.portMu.RUnlock()

	status := TransceiverStatus{
		Status:    "disconnected",
		Device:    b.cfg.Serial.Device,
		LastError: b.lastError,
	}
	if b.codec != nil {
		status.Status = "connected"
		since := b.connectedSince
		status.ConnectedSince = &since
	}
	return status
}

// IsConnected reports whether the transceiver port is open.
func (b *Bridge) IsConnected() bool {
	return b.connected.Load()
}

// MQTTConnected reports whether the MQTT client is connected.
func (b *Bridge) MQTTConnected() bool {
	return b.mqtt.IsConnected()
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Statistics {
	s := b.stats.snapshot()
	s.PendingReadings = b.decoder.Readings().Len()
	return s
}

// DeviceCount returns the number of known thermostats.
func (b *Bridge) DeviceCount() int {
	if b.devices == nil {
		return 0
	}
	return b.devices.Count()
}

// Health returns the current health message without publishing it.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}

// Commands returns the command table.
func (b *Bridge) Commands() []fht.Command {
	return fht.DefaultRegistry().Commands()
}

// =============================================================================
// Logging
// =============================================================================

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
