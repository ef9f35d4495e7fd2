package mqtt

import (
	"fmt"
	"strings"
)

// DefaultNamespace is the first topic level when none is configured.
const DefaultNamespace = "fhz"

// Topic levels below the namespace.
const (
	levelFHT    = "fht"
	levelSet    = "set"
	levelBridge = "bridge"
	levelResult = "result"
)

// Topics provides builders for fhz2mqtt MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Thermostat topics follow the scheme {namespace}/fht/{house_code}/{kind}/{command}:
//
//	topics := mqtt.Topics{Namespace: "fhz"}
//	topic := topics.FHTObservation("9601", "status", "desired-temp")
//	// Returns: "fhz/fht/9601/status/desired-temp"
type Topics struct {
	Namespace string
}

// ns returns the namespace, falling back to DefaultNamespace.
func (t Topics) ns() string {
	if t.Namespace == "" {
		return DefaultNamespace
	}
	return t.Namespace
}

// =============================================================================
// Thermostat Topics
// =============================================================================

// FHTObservation returns the topic a decoded thermostat value is published
// on. kind is "ack" or "status".
//
// Example: fhz/fht/9601/status/desired-temp
func (t Topics) FHTObservation(houseCode, kind, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.ns(), levelFHT, houseCode, kind, name)
}

// FHTSet returns the topic that carries set requests for one command.
//
// Example: fhz/set/fht/9601/desired-temp
func (t Topics) FHTSet(houseCode, command string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.ns(), levelSet, levelFHT, houseCode, command)
}

// FHTResult returns the topic the outcome of a set request is published on.
//
// Example: fhz/fht/9601/result/desired-temp
func (t Topics) FHTResult(houseCode, command string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.ns(), levelFHT, houseCode, levelResult, command)
}

// ParseFHTSet extracts house code and command from a set request topic.
//
// Returns:
//   - houseCode, command: The two variable topic levels
//   - ok: false if the topic does not match {namespace}/set/fht/+/+
func (t Topics) ParseFHTSet(topic string) (houseCode, command string, ok bool) {
	prefix := fmt.Sprintf("%s/%s/%s/", t.ns(), levelSet, levelFHT)
	rest, found := strings.CutPrefix(topic, prefix)
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the online/offline status topic (also the LWT topic).
//
// Example: fhz/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/%s/status", t.ns(), levelBridge)
}

// BridgeHealth returns the topic for periodic bridge health reports.
//
// Example: fhz/bridge/health
func (t Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/%s/health", t.ns(), levelBridge)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllFHTSets returns a pattern matching every set request.
//
// Pattern: fhz/set/fht/+/+
func (t Topics) AllFHTSets() string {
	return fmt.Sprintf("%s/%s/%s/+/+", t.ns(), levelSet, levelFHT)
}
