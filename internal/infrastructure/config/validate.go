package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// problems collects validation failures keyed by their YAML path.
type problems []string

func (p *problems) addf(field, format string, args ...any) {
	*p = append(*p, field+" "+fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(p, "; "))
}

// Validate reports every problem in the configuration at once.
//
// Returns:
//   - error: ErrInvalid listing each offending field, or nil
func (c *Config) Validate() error {
	var p problems

	if c.Serial.Device == "" {
		p.addf("serial.device", "is required")
	}
	if c.Serial.BaudRate <= 0 {
		p.addf("serial.baud_rate", "must be positive")
	}
	if c.Serial.ReadTimeoutMS <= 0 {
		p.addf("serial.read_timeout_ms", "must be positive")
	}
	if c.Serial.SettleDelayMS < 0 {
		p.addf("serial.settle_delay_ms", "must not be negative")
	}

	switch {
	case c.MQTT.Broker.Host == "":
		p.addf("mqtt.broker.host", "is required")
	case c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535:
		p.addf("mqtt.broker.port", "must be between 1 and 65535, got %d", c.MQTT.Broker.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		p.addf("mqtt.qos", "must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	switch ns := c.MQTT.Namespace; {
	case ns == "":
		p.addf("mqtt.namespace", "is required")
	case strings.ContainsAny(ns, "+#"):
		p.addf("mqtt.namespace", "must not contain MQTT wildcards, got %q", ns)
	case strings.HasPrefix(ns, "/") || strings.HasSuffix(ns, "/"):
		p.addf("mqtt.namespace", "must not start or end with /, got %q", ns)
	}

	if c.Bridge.HealthInterval <= 0 {
		p.addf("bridge.health_interval", "must be positive")
	}
	if c.Bridge.ReadingTTL < 0 {
		p.addf("bridge.reading_ttl", "must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		p.addf("database.path", "is required when the database is enabled")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		p.addf("api.port", "must be between 1 and 65535, got %d", c.API.Port)
	}

	seen := make(map[string]int, len(c.Devices))
	for i, d := range c.Devices {
		field := fmt.Sprintf("devices[%d].house_code", i)
		if !isHouseCode(d.HouseCode) {
			p.addf(field, "must be 4 digits, got %q", d.HouseCode)
			continue
		}
		if first, dup := seen[d.HouseCode]; dup {
			p.addf(field, "%s is already listed as devices[%d]", d.HouseCode, first)
			continue
		}
		seen[d.HouseCode] = i
	}

	return p.err()
}

func isHouseCode(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
