package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
)

// Logger receives handler failures and reconnect notices.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is called for every message on a subscribed topic.
//
// Handlers run on paho's delivery goroutines and should return quickly. A
// returned error is logged; the message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Client is the broker connection used by the bridge.
//
// It keeps its own record of subscriptions and replays them after every
// reconnect, publishes a retained online status when connected and an
// offline status on Close, and leaves the broker to publish the will
// message when the connection is lost.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	paho      pahomqtt.Client
	cfg       config.MQTTConfig
	topics    Topics
	subs      subscriptionSet
	connected atomic.Bool
	closed    atomic.Bool

	mu           sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker and waits for the first connection.
//
// Parameters:
//   - cfg: MQTT section of config.yaml
//
// Returns:
//   - *Client: Connected client; paho reconnects it in the background
//   - error: ErrConnectionFailed if the broker is unreachable within the
//     connect timeout or refuses the session
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Namespace: cfg.Namespace},
	}

	opts := sessionOptions(cfg, c.topics).
		SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) }).
		SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT reconnecting", "broker", brokerURL(cfg.Broker))
			}
		})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect handler runs asynchronously; mark the client connected
	// now so callers can publish straight away.
	c.connected.Store(true)

	return c, nil
}

// connectionUp runs on every successful (re)connect.
func (c *Client) connectionUp() {
	c.connected.Store(true)

	for _, sub := range c.subs.snapshot() {
		c.paho.Subscribe(sub.topic, sub.qos, c.deliver(sub.handler))
	}
	c.paho.Publish(c.topics.BridgeStatus(), statusQoS, true,
		statusPayload(c.cfg.Broker.ClientID, StatusOnline, "", time.Now()))

	c.mu.RLock()
	hook := c.onConnect
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

// connectionDown runs when paho loses the connection.
func (c *Client) connectionDown(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	hook := c.onDisconnect
	c.mu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// Close publishes the offline status and disconnects. It is safe to call
// more than once and on a client that never connected.
func (c *Client) Close() error {
	if c.paho == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.IsConnected() {
		payload := statusPayload(c.cfg.Broker.ClientID, StatusOffline, reasonShutdown, time.Now())
		c.paho.Publish(c.topics.BridgeStatus(), statusQoS, true, payload).WaitTimeout(tokenTimeout)
	}

	c.paho.Disconnect(quiesceMillis)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// Topics returns the topic builder for the configured namespace.
func (c *Client) Topics() Topics {
	return c.topics
}

// SetOnConnect registers a callback for the initial connect and every
// reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for lost connections.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for handler errors and reconnects.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}
