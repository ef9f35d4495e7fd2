package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/capture"
	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

// FindPublished returns the last message published on topic.
func (m *MockMQTTClient) FindPublished(topic string) (mockPublish, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i], true
		}
	}
	return mockPublish{}, false
}

// SimulateMessage delivers a message to the handler subscribed on pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + pattern)
	}
	return handler(topic, payload)
}

// fakePort is an in-memory serial port. Read blocks until data is fed or
// the port is closed.
type fakePort struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending []byte
	written bytes.Buffer
}

func newFakePort() *fakePort {
	return &fakePort{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(buf, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	select {
	case chunk := <-p.in:
		p.mu.Lock()
		defer p.mu.Unlock()
		n := copy(buf, chunk)
		p.pending = append(p.pending, chunk[n:]...)
		return n, nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *fakePort) Write(data []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(data)
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *fakePort) Feed(t *testing.T, payload fhz.Payload) {
	t.Helper()
	frame, err := fhz.MarshalFrame(payload)
	if err != nil {
		t.Fatalf("MarshalFrame() error = %v", err)
	}
	p.in <- frame
}

// portOpener hands out fake ports and remembers them.
type portOpener struct {
	mu    sync.Mutex
	ports []*fakePort
	err   error
}

func (o *portOpener) Open() (io.ReadWriteCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	p := newFakePort()
	o.ports = append(o.ports, p)
	return p, nil
}

func (o *portOpener) SetError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *portOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.ports)
}

func (o *portOpener) Last() *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.ports) == 0 {
		return nil
	}
	return o.ports[len(o.ports)-1]
}

type mockDeviceStore struct {
	mu       sync.Mutex
	messages []fht.Message
}

func (s *mockDeviceStore) RecordMessage(_ context.Context, msg fht.Message, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *mockDeviceStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[fht.HouseCode]bool)
	for _, m := range s.messages {
		seen[m.Address] = true
	}
	return len(seen)
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (b *mockBroadcaster) Broadcast(channel string, payload any) {
	if channel != ObservationChannel {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, payload)
}

func (b *mockBroadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type mockRecorder struct {
	mu      sync.Mutex
	records []capture.Direction
}

func (r *mockRecorder) Record(dir capture.Direction, _ fhz.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, dir)
	return nil
}

func (r *mockRecorder) Directions() []capture.Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Direction(nil), r.records...)
}

func testConfig() *config.Config {
	return &config.Config{
		Serial: config.SerialConfig{
			Device:            "/dev/ttyFAKE0",
			BaudRate:          9600,
			ReadTimeoutMS:     100,
			SettleDelayMS:     1,
			ReconnectInterval: 1,
		},
		MQTT: config.MQTTConfig{
			QoS:       1,
			Retain:    true,
			Namespace: "fhz",
		},
		Bridge: config.BridgeConfig{
			ID:             "fhz2mqtt-test",
			HealthInterval: 60,
			ReadingTTL:     120,
		},
	}
}

type testRig struct {
	bridge   *Bridge
	mqtt     *MockMQTTClient
	opener   *portOpener
	devices  *mockDeviceStore
	hub      *mockBroadcaster
	recorder *mockRecorder
}

func newTestRig(t *testing.T, cfg *config.Config) *testRig {
	t.Helper()
	rig := &testRig{
		mqtt:     NewMockMQTTClient(),
		opener:   &portOpener{},
		devices:  &mockDeviceStore{},
		hub:      &mockBroadcaster{},
		recorder: &mockRecorder{},
	}
	b, err := New(Options{
		Config:      cfg,
		MQTTClient:  rig.mqtt,
		OpenPort:    rig.opener.Open,
		Devices:     rig.devices,
		Broadcaster: rig.hub,
		Recorder:    rig.recorder,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.reconnectInterval = 10 * time.Millisecond
	rig.bridge = b
	return rig
}

func (r *testRig) start(t *testing.T) {
	t.Helper()
	if err := r.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(r.bridge.Stop)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func statusFrame(upper, lower byte, fn fht.FunctionID, status, value byte) fhz.Payload {
	return fhz.Payload{
		Type: 0x09,
		Data: []byte{0x09, 0x09, 0xa0, 0x01, upper, lower, byte(fn), 0x00, status, value},
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	opener := &portOpener{}
	tests := []struct {
		name string
		opts Options
	}{
		{"no config", Options{MQTTClient: NewMockMQTTClient(), OpenPort: opener.Open}},
		{"no mqtt", Options{Config: testConfig(), OpenPort: opener.Open}},
		{"no port opener", Options{Config: testConfig(), MQTTClient: NewMockMQTTClient()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}

func TestBridge_Start(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	subs := rig.mqtt.GetSubscriptions()
	if len(subs) != 1 || subs[0].Topic != "fhz/set/fht/+/+" || subs[0].QoS != 1 {
		t.Errorf("subscriptions = %+v", subs)
	}

	health, ok := rig.mqtt.FindPublished("fhz/bridge/health")
	if !ok {
		t.Fatal("no health message published")
	}
	if !health.Retained {
		t.Error("health message not retained")
	}

	if !rig.bridge.IsConnected() {
		t.Error("IsConnected() = false after Start")
	}
	if err := rig.bridge.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil")
	}
}

func TestBridge_PublishesObservations(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	rig.opener.Last().Feed(t, statusFrame(96, 1, fht.FuncDesiredTemp, 0x69, 42))

	waitFor(t, "desired-temp publication", func() bool {
		_, ok := rig.mqtt.FindPublished("fhz/fht/9601/status/desired-temp")
		return ok
	})

	pub, _ := rig.mqtt.FindPublished("fhz/fht/9601/status/desired-temp")
	if string(pub.Payload) != "21.0" {
		t.Errorf("payload = %q, want 21.0", pub.Payload)
	}
	if pub.QoS != 1 || !pub.Retained {
		t.Errorf("QoS = %d, Retained = %v; want 1, true", pub.QoS, pub.Retained)
	}

	waitFor(t, "device store update", func() bool { return rig.devices.Count() == 1 })
	waitFor(t, "broadcast", func() bool { return rig.hub.Len() == 1 })

	if dirs := rig.recorder.Directions(); len(dirs) != 1 || dirs[0] != capture.DirectionIn {
		t.Errorf("recorded directions = %v, want [in]", dirs)
	}
	if got := rig.bridge.Stats().FramesReceived; got != 1 {
		t.Errorf("FramesReceived = %d, want 1", got)
	}
}

func TestBridge_StatusPublishesTwoObservations(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	rig.opener.Last().Feed(t, statusFrame(12, 34, fht.FuncStatus, 0x00, 0x21))

	waitFor(t, "battery publication", func() bool {
		_, ok := rig.mqtt.FindPublished("fhz/fht/1234/status/battery")
		return ok
	})
	window, ok := rig.mqtt.FindPublished("fhz/fht/1234/status/window")
	if !ok || string(window.Payload) != "open" {
		t.Errorf("window = %+v, %v", window, ok)
	}
	battery, _ := rig.mqtt.FindPublished("fhz/fht/1234/status/battery")
	if string(battery.Payload) != "empty" {
		t.Errorf("battery = %q, want empty", battery.Payload)
	}
}

func TestBridge_SplitTemperature(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)
	port := rig.opener.Last()

	port.Feed(t, statusFrame(96, 1, fht.FuncIsTempLow, 0x00, 200))
	waitFor(t, "pending reading", func() bool { return rig.bridge.Stats().PendingReadings == 1 })

	port.Feed(t, statusFrame(96, 1, fht.FuncIsTempHigh, 0x00, 1))
	waitFor(t, "measured temperature", func() bool {
		_, ok := rig.mqtt.FindPublished("fhz/fht/9601/status/is-temp-high")
		return ok
	})

	pub, _ := rig.mqtt.FindPublished("fhz/fht/9601/status/is-temp-high")
	if string(pub.Payload) != "45.60" {
		t.Errorf("payload = %q, want 45.60", pub.Payload)
	}
	if _, ok := rig.mqtt.FindPublished("fhz/fht/9601/status/is-temp-low"); ok {
		t.Error("low byte was published on its own")
	}
	if n := rig.bridge.Stats().PendingReadings; n != 0 {
		t.Errorf("PendingReadings = %d after pairing, want 0", n)
	}
}

func TestBridge_CountsDecodeErrors(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)
	port := rig.opener.Last()

	// Checksum byte does not match the data.
	port.in <- []byte{0x81, 0x04, 0x09, 0xff, 0x01, 0x02}
	port.Feed(t, statusFrame(96, 1, fht.FuncIsTempHigh, 0x00, 1))
	port.Feed(t, fhz.Payload{Type: 0x09, Data: []byte{0x01, 0x02, 0x03}})
	port.Feed(t, statusFrame(96, 1, fht.FuncIsValve, 0x2f, 0))

	waitFor(t, "decode error counters", func() bool {
		return rig.bridge.Stats().DecodeErrors.Total() == 4
	})

	errs := rig.bridge.Stats().DecodeErrors
	want := DecodeErrors{Checksum: 1, Unpaired: 1, Unrecognized: 1, UnsupportedVariant: 1}
	if errs != want {
		t.Errorf("DecodeErrors = %+v, want %+v", errs, want)
	}
	if !rig.bridge.IsConnected() {
		t.Error("decode errors must not close the port")
	}
}

func TestBridge_ReconnectsAfterIOError(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	first := rig.opener.Last()
	first.Close()

	waitFor(t, "port reopened", func() bool { return rig.opener.Count() == 2 && rig.bridge.IsConnected() })

	if got := rig.bridge.Stats().Reconnects; got < 1 {
		t.Errorf("Reconnects = %d, want >= 1", got)
	}

	rig.opener.Last().Feed(t, statusFrame(96, 1, fht.FuncMode, 0x00, 1))
	waitFor(t, "publication after reconnect", func() bool {
		_, ok := rig.mqtt.FindPublished("fhz/fht/9601/status/mode")
		return ok
	})
}

func TestBridge_StartWithoutTransceiver(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.opener.SetError(errors.New("no such device"))
	rig.start(t)

	if rig.bridge.IsConnected() {
		t.Fatal("IsConnected() = true without a port")
	}
	tr := rig.bridge.Transceiver()
	if tr.Connected() || tr.LastError == "" {
		t.Errorf("Transceiver() = %+v", tr)
	}

	result, err := rig.bridge.Set(context.Background(), "9601", "desired-temp", "21")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Set() error = %v, want ErrNotConnected", err)
	}
	if result.Error == nil || result.Error.Code != ErrCodeNotConnected {
		t.Errorf("result.Error = %+v", result.Error)
	}

	rig.opener.SetError(nil)
	waitFor(t, "late connect", rig.bridge.IsConnected)
}

func TestBridge_Set(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	result, err := rig.bridge.Set(context.Background(), "9601", "desired-temp", "21.5")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if result.Status != SetAccepted || result.ID == "" {
		t.Errorf("result = %+v", result)
	}

	addr, _ := fht.ParseHouseCode("9601")
	want, err := fht.NewEncoder(nil).Encode(addr, "desired-temp", "21.5")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	wantFrame, _ := fhz.MarshalFrame(want)
	if got := rig.opener.Last().Written(); !bytes.Equal(got, wantFrame) {
		t.Errorf("written = % x, want % x", got, wantFrame)
	}
	if result.Frame != want.String() {
		t.Errorf("result.Frame = %q, want %q", result.Frame, want.String())
	}

	stats := rig.bridge.Stats()
	if stats.FramesSent != 1 || stats.SetFailures != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if dirs := rig.recorder.Directions(); len(dirs) != 1 || dirs[0] != capture.DirectionOut {
		t.Errorf("recorded directions = %v, want [out]", dirs)
	}
}

func TestBridge_Set_Errors(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		houseCode string
		command   string
		value     string
		wantCode  string
	}{
		{"bad house code", context.Background(), "96a1", "desired-temp", "21", ErrCodeInvalidInput},
		{"garbage value", context.Background(), "9601", "desired-temp", "warm", ErrCodeInvalidInput},
		{"too hot", context.Background(), "9601", "desired-temp", "31", ErrCodeOutOfRange},
		{"unknown command", context.Background(), "9601", "boost", "on", ErrCodeUnknownCommand},
		{"read-only command", context.Background(), "9601", "is-valve", "50", ErrCodeUnknownCommand},
		{"cancelled", cancelled, "9601", "desired-temp", "21", ErrCodeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := rig.bridge.Set(tt.ctx, tt.houseCode, tt.command, tt.value)
			if err == nil {
				t.Fatal("Set() error = nil")
			}
			if result.Status != SetFailed {
				t.Errorf("Status = %q, want failed", result.Status)
			}
			if result.Error == nil || result.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", result.Error, tt.wantCode)
			}
		})
	}

	if got := rig.bridge.Stats().SetFailures; got != uint64(len(tests)) {
		t.Errorf("SetFailures = %d, want %d", got, len(tests))
	}
	if written := rig.opener.Last().Written(); len(written) != 0 {
		t.Errorf("failed requests wrote % x", written)
	}
}

func TestBridge_SetOverMQTT(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	err := rig.mqtt.SimulateMessage("fhz/set/fht/+/+", "fhz/set/fht/9601/mode", []byte("manual"))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	pub, ok := rig.mqtt.FindPublished("fhz/fht/9601/result/mode")
	if !ok {
		t.Fatal("no set result published")
	}
	if pub.Retained {
		t.Error("set result must not be retained")
	}

	var result SetResult
	if err := json.Unmarshal(pub.Payload, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Status != SetAccepted || result.HouseCode != "9601" || result.Command != "mode" || result.Value != "manual" {
		t.Errorf("result = %+v", result)
	}
	if len(rig.opener.Last().Written()) == 0 {
		t.Error("nothing written to the port")
	}
}

func TestBridge_SetOverMQTT_Failure(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	err := rig.mqtt.SimulateMessage("fhz/set/fht/+/+", "fhz/set/fht/9601/desired-temp", []byte("99"))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	pub, ok := rig.mqtt.FindPublished("fhz/fht/9601/result/desired-temp")
	if !ok {
		t.Fatal("no set result published")
	}
	var result SetResult
	if err := json.Unmarshal(pub.Payload, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Status != SetFailed || result.Error == nil || result.Error.Code != ErrCodeOutOfRange {
		t.Errorf("result = %+v", result)
	}
}

func TestBridge_SetOverMQTT_BadTopic(t *testing.T) {
	rig := newTestRig(t, testConfig())
	rig.start(t)

	err := rig.mqtt.SimulateMessage("fhz/set/fht/+/+", "fhz/set/fht/9601", []byte("21"))
	if !errors.Is(err, ErrInvalidSetTopic) {
		t.Errorf("handler error = %v, want ErrInvalidSetTopic", err)
	}
}

func TestBridge_DryRun(t *testing.T) {
	cfg := testConfig()
	cfg.Serial.DryRun = true
	rig := newTestRig(t, cfg)
	rig.start(t)

	result, err := rig.bridge.Set(context.Background(), "9601", "desired-temp", "20")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !result.DryRun {
		t.Error("result.DryRun = false")
	}
	if written := rig.opener.Last().Written(); len(written) != 0 {
		t.Errorf("dry run wrote % x", written)
	}
}

func TestBridge_Stop(t *testing.T) {
	rig := newTestRig(t, testConfig())
	if err := rig.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		rig.bridge.Stop()
		rig.bridge.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	health, ok := rig.mqtt.FindPublished("fhz/bridge/health")
	if !ok {
		t.Fatal("no health message")
	}
	var msg HealthMessage
	if err := json.Unmarshal(health.Payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthStopping {
		t.Errorf("final health status = %q, want stopping", msg.Status)
	}
	if rig.bridge.IsConnected() {
		t.Error("port still open after Stop")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fht.ErrInvalidInput, ErrCodeInvalidInput},
		{fht.ErrOutOfRange, ErrCodeOutOfRange},
		{fht.ErrUnknownCommand, ErrCodeUnknownCommand},
		{ErrNotConnected, ErrCodeNotConnected},
		{mqtt.ErrNotConnected, ErrCodeNotConnected},
		{fhz.ErrIO, ErrCodeTransport},
		{errors.New("anything else"), ErrCodeTransport},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
