package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPrefix starts every environment override, e.g. FHZ2MQTT_SERIAL_DEVICE.
const envPrefix = "FHZ2MQTT_"

// envVar binds one environment variable to the field it overrides.
type envVar struct {
	key   string
	apply func(c *Config, v string) error
}

func envString(set func(*Config, string)) func(*Config, string) error {
	return func(c *Config, v string) error {
		set(c, v)
		return nil
	}
}

func envInt(set func(*Config, int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(c, n)
		return nil
	}
}

func envBool(set func(*Config, bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(c, b)
		return nil
	}
}

var envVars = []envVar{
	{"SERIAL_DEVICE", envString(func(c *Config, v string) { c.Serial.Device = v })},
	{"SERIAL_BAUD_RATE", envInt(func(c *Config, v int) { c.Serial.BaudRate = v })},
	{"SERIAL_DRY_RUN", envBool(func(c *Config, v bool) { c.Serial.DryRun = v })},
	{"MQTT_HOST", envString(func(c *Config, v string) { c.MQTT.Broker.Host = v })},
	{"MQTT_PORT", envInt(func(c *Config, v int) { c.MQTT.Broker.Port = v })},
	{"MQTT_TLS", envBool(func(c *Config, v bool) { c.MQTT.Broker.TLS = v })},
	{"MQTT_CLIENT_ID", envString(func(c *Config, v string) { c.MQTT.Broker.ClientID = v })},
	{"MQTT_USERNAME", envString(func(c *Config, v string) { c.MQTT.Auth.Username = v })},
	{"MQTT_PASSWORD", envString(func(c *Config, v string) { c.MQTT.Auth.Password = v })},
	{"MQTT_NAMESPACE", envString(func(c *Config, v string) { c.MQTT.Namespace = v })},
	{"DATABASE_ENABLED", envBool(func(c *Config, v bool) { c.Database.Enabled = v })},
	{"DATABASE_PATH", envString(func(c *Config, v string) { c.Database.Path = v })},
	{"API_ENABLED", envBool(func(c *Config, v bool) { c.API.Enabled = v })},
	{"API_HOST", envString(func(c *Config, v string) { c.API.Host = v })},
	{"API_PORT", envInt(func(c *Config, v int) { c.API.Port = v })},
	{"CAPTURE_PATH", envString(func(c *Config, v string) { c.Capture.Path = v })},
	{"LOGGING_LEVEL", envString(func(c *Config, v string) { c.Logging.Level = v })},
	{"LOGGING_FORMAT", envString(func(c *Config, v string) { c.Logging.Format = v })},
}

// Load builds the configuration from the YAML file at path.
//
// Defaults are filled in first, the file overrides them, and set
// FHZ2MQTT_<SECTION>_<KEY> variables override the file. The result is
// validated.
//
// Parameters:
//   - path: YAML configuration file
//
// Returns:
//   - *Config: Validated configuration
//   - error: Read, parse, environment or validation failure
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with the environment applied.
// Commands use it when no config file exists. Malformed numeric or boolean
// variables are skipped here; Load reports them.
func Default() *Config {
	cfg := defaultConfig()
	_ = applyEnvOverrides(cfg) //nolint:errcheck // well-formed variables are still applied
	return cfg
}

// applyEnvOverrides sets every field whose variable is present. All
// malformed values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, ev := range envVars {
		v, ok := os.LookupEnv(envPrefix + ev.key)
		if !ok || v == "" {
			continue
		}
		if err := ev.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s=%q: %w", envPrefix, ev.key, v, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:            "/dev/ttyUSB0",
			BaudRate:          9600,
			ReadTimeoutMS:     1000,
			SettleDelayMS:     300,
			ReconnectInterval: 5,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "fhz2mqtt"},
			QoS:       1,
			Retain:    true,
			Namespace: "fhz",
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		Bridge: BridgeConfig{
			ID:             "fhz2mqtt",
			HealthInterval: 30,
			ReadingTTL:     120,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/fhz2mqtt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host:     "127.0.0.1",
			Port:     8089,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}
