package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the whole fhz2mqtt configuration: built-in defaults, then the
// YAML file, then FHZ2MQTT_* environment variables.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Capture   CaptureConfig   `yaml:"capture"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// SerialConfig contains the transceiver serial port settings.
type SerialConfig struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0.
	Device string `yaml:"device"`

	// BaudRate of the transceiver. The FHZ1000 PC runs at 9600.
	BaudRate int `yaml:"baud_rate"`

	// ReadTimeoutMS bounds a single read on the port (milliseconds).
	ReadTimeoutMS int `yaml:"read_timeout_ms"`

	// SettleDelayMS is the pause after the first byte of a frame before the
	// rest is read (milliseconds). Default: 300
	SettleDelayMS int `yaml:"settle_delay_ms"`

	// ReconnectInterval is the wait before reopening a failed port (seconds).
	ReconnectInterval int `yaml:"reconnect_interval"`

	// DryRun logs outgoing frames instead of writing them.
	DryRun bool `yaml:"dry_run"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retain    bool                `yaml:"retain"`
	Namespace string              `yaml:"namespace"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`

	// WARNING: Never log this value. Use String() method for safe logging.
	Password string `yaml:"password"`
}

const redacted = "[REDACTED]"

// String masks the password.
func (a MQTTAuthConfig) String() string {
	pw := ""
	if a.Password != "" {
		pw = redacted
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, pw)
}

// MarshalJSON masks the password.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type plain MQTTAuthConfig
	out := plain(a)
	if out.Password != "" {
		out.Password = redacted
	}
	return json.Marshal(out)
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BridgeConfig contains settings of the serial to MQTT bridge loop.
type BridgeConfig struct {
	// ID identifies this bridge instance in health messages.
	ID string `yaml:"id"`

	// HealthInterval is the period between health publications (seconds).
	HealthInterval int `yaml:"health_interval"`

	// ReadingTTL is how long a low temperature byte waits for its high
	// byte (seconds).
	ReadingTTL int `yaml:"reading_ttl"`
}

// DatabaseConfig contains SQLite database settings for the thermostat
// inventory.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CaptureConfig contains frame capture settings.
type CaptureConfig struct {
	// Path of the CBOR capture file. Empty disables capturing.
	Path string `yaml:"path"`
}

// DeviceConfig names a known thermostat.
type DeviceConfig struct {
	HouseCode string `yaml:"house_code"`
	Name      string `yaml:"name"`
}

// ReadTimeout bounds a single read on the port.
func (s SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// SettleDelay is the pause between the first byte of a frame and the rest.
func (s SerialConfig) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMS) * time.Millisecond
}

// ReconnectDelay is the wait before a failed port is reopened.
func (s SerialConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectInterval) * time.Second
}

// HealthPeriod is the interval between health publications.
func (b BridgeConfig) HealthPeriod() time.Duration {
	return time.Duration(b.HealthInterval) * time.Second
}

// PendingTTL is how long a low temperature byte waits for its high byte.
func (b BridgeConfig) PendingTTL() time.Duration {
	return time.Duration(b.ReadingTTL) * time.Second
}

// ReadTimeout is the HTTP read and header timeout.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout is the HTTP write timeout.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout is the HTTP keep-alive idle timeout.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
