package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/bridge"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/logging"
)

// Message types exchanged with websocket clients.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// wsSendBufferSize is the number of frames queued per client before
	// broadcasts to it are dropped.
	wsSendBufferSize = 256

	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30 * time.Second
	defaultWSPongTimeout    = 10 * time.Second
)

// knownChannels lists the channels clients may subscribe to.
var knownChannels = map[string]struct{}{
	bridge.ObservationChannel: {},
}

// wsTimings is WebSocketConfig in usable units with defaults filled in.
type wsTimings struct {
	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	t := wsTimings{
		maxMessageSize: defaultWSMaxMessageSize,
		pingInterval:   defaultWSPingInterval,
		pongWait:       defaultWSPongTimeout,
	}
	if cfg.MaxMessageSize > 0 {
		t.maxMessageSize = int64(cfg.MaxMessageSize)
	}
	if cfg.PingInterval > 0 {
		t.pingInterval = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		t.pongWait = time.Duration(cfg.PongTimeout) * time.Second
	}
	return t
}

// readWindow is how long a client may stay silent: one ping cycle plus
// the time allowed for its pong.
func (t wsTimings) readWindow() time.Duration {
	return t.pingInterval + t.pongWait
}

// WSMessage is the envelope of every frame sent to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, the thermostats
// whose events a client receives. An empty HouseCodes list means all.
type WSSubscribePayload struct {
	Channels   []string `json:"channels"`
	HouseCodes []string `json:"house_codes,omitempty"`
}

// HubStats summarises websocket fan-out.
type HubStats struct {
	Clients   int    `json:"connected_clients"`
	Delivered uint64 `json:"events_delivered"`
	Dropped   uint64 `json:"events_dropped"`
}

// Hub fans bridge events out to the connected websocket clients.
//
// It implements bridge.Broadcaster. Clients that fall behind by more
// than wsSendBufferSize frames lose events rather than stall the bridge.
type Hub struct {
	timings wsTimings
	logger  *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub using the given websocket settings.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		timings: timingsFrom(cfg),
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// attach adds a client to the fan-out set.
func (h *Hub) attach(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client attached", "clients", n)
}

// detach removes a client and closes its send queue. Calling it for a
// client that is already gone is a no-op.
func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("websocket client detached", "clients", n)
	}
}

// sendTo queues a frame for a single client. It reports false when the
// client has been detached or its queue is full.
func (h *Hub) sendTo(c *wsClient, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	return c.offer(frame)
}

// Broadcast sends payload as an event on channel to every client whose
// subscription matches. ObservationEvents are additionally filtered by
// house code.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}
	houseCode := eventHouseCode(payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.sub.matches(channel, houseCode) {
			continue
		}
		if c.offer(frame) {
			h.delivered.Add(1)
			continue
		}
		h.dropped.Add(1)
		h.logger.Warn("websocket client too slow, event dropped", "channel", channel, "house_code", houseCode)
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the client count and the delivery counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients:   h.ClientCount(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// eventHouseCode extracts the thermostat an event belongs to, or "" for
// events that are not tied to one.
func eventHouseCode(payload any) string {
	switch ev := payload.(type) {
	case bridge.ObservationEvent:
		return ev.HouseCode
	case *bridge.ObservationEvent:
		if ev != nil {
			return ev.HouseCode
		}
	}
	return ""
}
