package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultHealthInterval applies when HealthReporterConfig.Interval is zero.
const DefaultHealthInterval = 30 * time.Second

// HealthPublisher is where health messages go. *mqtt.Client implements it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatusSource supplies the live values of a health message. The Bridge
// implements it.
type StatusSource interface {
	Transceiver() TransceiverStatus
	Stats() Statistics
	DeviceCount() int
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Topic receives the retained health messages.
	Topic string
	QoS   byte

	// Interval between periodic publications. Default: DefaultHealthInterval.
	Interval time.Duration

	Publisher HealthPublisher

	// Source is optional; without it the bridge reports degraded.
	Source StatusSource
}

// HealthReporter publishes a retained HealthMessage every interval, and
// early when Notify signals that the transceiver or broker link changed.
type HealthReporter struct {
	cfg     HealthReporterConfig
	started time.Time

	notify chan struct{}
	quit   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu     sync.Mutex
	logger Logger
	last   string // status and reason of the last publication
}

// NewHealthReporter returns a reporter; Start begins the periodic loop.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	return &HealthReporter{
		cfg:     cfg,
		started: time.Now(),
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

// SetLogger sets the logger for publication failures.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

// Start publishes the current health and then keeps publishing until ctx
// is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.run(ctx)
}

// Notify asks for an early publication. It never blocks; the message goes
// out only if status or reason differ from the last one sent.
func (h *HealthReporter) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Stop ends the loop and publishes a final "stopping" message. Further
// calls do nothing.
func (h *HealthReporter) Stop() {
	h.once.Do(func() {
		close(h.quit)
		h.wg.Wait()
		if err := h.send(h.message(HealthStopping, "bridge stopping")); err != nil {
			h.warn("publishing stopping status", err)
		}
	})
}

// PublishStarting publishes a "starting" message.
func (h *HealthReporter) PublishStarting() error {
	return h.send(h.message(HealthStarting, "bridge starting"))
}

// PublishNow publishes the current health.
func (h *HealthReporter) PublishNow() error {
	return h.send(h.Current())
}

// Current builds the current health message without publishing it.
func (h *HealthReporter) Current() HealthMessage {
	return h.message(h.assess())
}

func (h *HealthReporter) run(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	h.publishLogged()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return
		case <-ticker.C:
			h.publishLogged()
		case <-h.notify:
			msg := h.Current()
			if h.changed(msg) {
				h.publishMessage(msg)
			}
		}
	}
}

func (h *HealthReporter) publishLogged() {
	h.publishMessage(h.Current())
}

func (h *HealthReporter) publishMessage(msg HealthMessage) {
	if err := h.send(msg); err != nil {
		h.warn("publishing health", err)
	}
}

// assess derives status and reason from the broker and transceiver links.
func (h *HealthReporter) assess() (HealthStatus, string) {
	var down []string
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		down = append(down, "MQTT disconnected")
	}
	if h.cfg.Source == nil || !h.cfg.Source.Transceiver().Connected() {
		down = append(down, "transceiver disconnected")
	}
	if len(down) > 0 {
		return HealthDegraded, strings.Join(down, ", ")
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.cfg.BridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Reason:        reason,
	}
	if src := h.cfg.Source; src != nil {
		tr, stats := src.Transceiver(), src.Stats()
		msg.Transceiver = &tr
		msg.Statistics = &stats
		msg.DevicesKnown = src.DeviceCount()
	}
	return msg
}

func healthKey(msg HealthMessage) string {
	return string(msg.Status) + "|" + msg.Reason
}

func (h *HealthReporter) changed(msg HealthMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last != healthKey(msg)
}

// send publishes msg retained. Without a publisher it does nothing.
func (h *HealthReporter) send(msg HealthMessage) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := h.cfg.Publisher.Publish(h.cfg.Topic, payload, h.cfg.QoS, true); err != nil {
		return err
	}

	h.mu.Lock()
	h.last = healthKey(msg)
	h.mu.Unlock()
	return nil
}

func (h *HealthReporter) warn(msg string, err error) {
	h.mu.Lock()
	logger := h.logger
	h.mu.Unlock()
	if logger != nil {
		logger.Warn(msg, "error", err)
	}
}
