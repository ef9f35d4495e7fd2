package bridge

import (
	"errors"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/mqtt"
)

// SetStatus is the outcome of a set request.
type SetStatus string

const (
	// SetAccepted means the frame was written to the transceiver.
	SetAccepted SetStatus = "accepted"

	// SetFailed means the request was rejected or could not be written.
	SetFailed SetStatus = "failed"
)

// Error codes reported in SetResult.Error.Code.
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeOutOfRange     = "OUT_OF_RANGE"
	ErrCodeUnknownCommand = "UNKNOWN_COMMAND"
	ErrCodeNotConnected   = "NOT_CONNECTED"
	ErrCodeTransport      = "TRANSPORT_ERROR"
)

// SetResult reports what happened to one set request.
// Topic: <namespace>/fht/<house code>/result/<command>
// QoS: configured, Retained: No
type SetResult struct {
	// ID identifies this request in logs and in the capture.
	ID string `json:"id"`

	// Timestamp is when the request was handled (UTC).
	Timestamp time.Time `json:"timestamp"`

	HouseCode string    `json:"house_code"`
	Command   string    `json:"command"`
	Value     string    `json:"value"`
	Status    SetStatus `json:"status"`

	// Frame is the hex of the payload sent, "tt:dddd..." (accepted only).
	Frame string `json:"frame,omitempty"`

	// DryRun is set when the frame was logged instead of written.
	DryRun bool `json:"dry_run,omitempty"`

	Error *SetError `json:"error,omitempty"`
}

// SetError contains error details for failed set requests.
type SetError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode maps an error from Set to its result code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, fht.ErrOutOfRange):
		return ErrCodeOutOfRange
	case errors.Is(err, fht.ErrUnknownCommand):
		return ErrCodeUnknownCommand
	case errors.Is(err, fht.ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrNotConnected), errors.Is(err, mqtt.ErrNotConnected):
		return ErrCodeNotConnected
	case errors.Is(err, fhz.ErrIO), errors.Is(err, fhz.ErrPayloadTooLarge):
		return ErrCodeTransport
	default:
		return ErrCodeTransport
	}
}

// ObservationEvent is broadcast to websocket clients for every decoded
// message that carries observations.
type ObservationEvent struct {
	HouseCode    string            `json:"house_code"`
	Kind         fht.Kind          `json:"kind"`
	Function     string            `json:"function"`
	Observations []fht.Observation `json:"observations"`
	Timestamp    time.Time         `json:"timestamp"`
}

// ObservationChannel is the websocket channel carrying ObservationEvents.
const ObservationChannel = "fht.observation"

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates MQTT and the transceiver are both connected.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates one of the two links is down.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: <namespace>/bridge/health
// QoS: configured, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	Transceiver *TransceiverStatus `json:"transceiver,omitempty"`
	Statistics  *Statistics        `json:"statistics,omitempty"`

	// DevicesKnown is the number of thermostats in the inventory.
	DevicesKnown int `json:"devices_known"`

	// Reason explains a degraded status.
	Reason string `json:"reason,omitempty"`
}

// TransceiverStatus describes the serial link to the FHZ1000.
type TransceiverStatus struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	Device string `json:"device"`

	ConnectedSince *time.Time `json:"connected_since,omitempty"`

	// LastError is the most recent transport error, cleared on reconnect.
	LastError string `json:"last_error,omitempty"`
}

// Connected reports whether the port is open.
func (t TransceiverStatus) Connected() bool {
	return t.Status == "connected"
}
