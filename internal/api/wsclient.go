package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to localhost by default; browsers on other origins
	// are trusted as far as the listener address allows.
	CheckOrigin: func(*http.Request) bool { return true },
}

var (
	errUnknownMessageType = errors.New("unknown message type")
	errNoChannels         = errors.New("no channels given")
)

// wsRequest is a frame received from a client. Payload stays raw until
// the type is known.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
}

// subscription is the filter a client has asked for.
type subscription struct {
	mu         sync.RWMutex
	channels   map[string]struct{}
	houseCodes map[string]struct{}
}

func (s *subscription) add(channels, houseCodes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels == nil {
		s.channels = make(map[string]struct{})
	}
	if s.houseCodes == nil {
		s.houseCodes = make(map[string]struct{})
	}
	for _, ch := range channels {
		s.channels[ch] = struct{}{}
	}
	for _, hc := range houseCodes {
		s.houseCodes[hc] = struct{}{}
	}
}

func (s *subscription) remove(channels, houseCodes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		delete(s.channels, ch)
	}
	for _, hc := range houseCodes {
		delete(s.houseCodes, hc)
	}
}

// matches reports whether an event on channel for houseCode passes the
// filter. Events without a house code pass any house code filter.
func (s *subscription) matches(channel, houseCode string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.channels[channel]; !ok {
		return false
	}
	if len(s.houseCodes) == 0 || houseCode == "" {
		return true
	}
	_, ok := s.houseCodes[houseCode]
	return ok
}

// snapshot returns the current filter in a stable order.
func (s *subscription) snapshot() WSSubscribePayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := WSSubscribePayload{Channels: sortedKeys(s.channels)}
	if len(s.houseCodes) > 0 {
		out.HouseCodes = sortedKeys(s.houseCodes)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// wsClient is one websocket connection attached to a Hub.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	sub  subscription
}

func newWSClient(h *Hub, conn *websocket.Conn) *wsClient {
	return &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
}

// offer queues a frame without blocking. It reports false when the
// client's queue is full.
func (c *wsClient) offer(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// handleWebSocket upgrades the request and attaches the connection to
// the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newWSClient(s.hub, conn)
	s.hub.attach(c)

	go c.writeLoop()
	go c.readLoop()
}

// readLoop handles client requests until the connection fails, then
// detaches the client.
func (c *wsClient) readLoop() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close() //nolint:errcheck // Connection is being torn down
	}()

	t := c.hub.timings
	c.conn.SetReadLimit(t.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(t.readWindow())) //nolint:errcheck // A failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(t.readWindow()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		if reply := c.respond(data); reply != nil && !c.hub.sendTo(c, reply) {
			c.hub.logger.Warn("websocket client too slow, reply dropped")
		}
	}
}

// writeLoop drains the send queue and keeps the connection alive with
// pings. It returns once the hub closes the queue or a write fails.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(c.hub.timings.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // Connection is being torn down
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck // Surfaces on the write below
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // Best effort close frame
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck // Surfaces on the write below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// respond handles one client request and returns the encoded reply.
func (c *wsClient) respond(data []byte) []byte {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return encodeReply(errorReply("", fmt.Errorf("invalid message: %w", err)))
	}

	switch req.Type {
	case WSTypePing:
		return encodeReply(WSMessage{Type: WSTypePong, ID: req.ID})
	case WSTypeSubscribe, WSTypeUnsubscribe:
		body, err := parseSubscription(req.Payload)
		if err != nil {
			return encodeReply(errorReply(req.ID, err))
		}
		if req.Type == WSTypeSubscribe {
			c.sub.add(body.Channels, body.HouseCodes)
		} else {
			c.sub.remove(body.Channels, body.HouseCodes)
		}
		return encodeReply(WSMessage{Type: WSTypeResponse, ID: req.ID, Payload: c.sub.snapshot()})
	default:
		return encodeReply(errorReply(req.ID, fmt.Errorf("%w: %q", errUnknownMessageType, req.Type)))
	}
}

// parseSubscription decodes and normalises a subscribe payload. Every
// channel must be known and every house code valid.
func parseSubscription(raw json.RawMessage) (WSSubscribePayload, error) {
	var body WSSubscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return body, fmt.Errorf("invalid subscription: %w", err)
		}
	}
	if len(body.Channels) == 0 && len(body.HouseCodes) == 0 {
		return body, errNoChannels
	}
	for _, ch := range body.Channels {
		if _, ok := knownChannels[ch]; !ok {
			return body, fmt.Errorf("unknown channel %q", ch)
		}
	}
	for i, s := range body.HouseCodes {
		hc, err := fht.ParseHouseCode(s)
		if err != nil {
			return body, err
		}
		body.HouseCodes[i] = hc.String()
	}
	return body, nil
}

func errorReply(id string, err error) WSMessage {
	return WSMessage{Type: WSTypeError, ID: id, Payload: wsErrorPayload{Message: err.Error()}}
}

func encodeReply(msg WSMessage) []byte {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
