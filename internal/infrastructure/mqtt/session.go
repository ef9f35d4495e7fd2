package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	tokenTimeout   = 5 * time.Second
	keepAlive      = 60 * time.Second

	// quiesceMillis lets in-flight messages drain on Close.
	quiesceMillis = 500

	maxQoS = 2

	// statusQoS is used for the retained online/offline message and the LWT.
	statusQoS = 1
)

// Bridge status values published on {ns}/bridge/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Reasons attached to offline status messages.
const (
	reasonShutdown   = "graceful_shutdown"
	reasonConnection = "unexpected_disconnect"
)

// StatusMessage is the retained payload of the bridge status topic.
type StatusMessage struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// statusPayload encodes a StatusMessage for publishing.
func statusPayload(clientID, status, reason string, at time.Time) []byte {
	data, err := json.Marshal(StatusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: at.UTC().Truncate(time.Second),
	})
	if err != nil {
		// Plain strings and a time always marshal.
		return []byte(`{"status":"` + status + `"}`)
	}
	return data
}

// brokerURL returns tcp:// or ssl:// followed by host and port.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// sessionOptions translates the mqtt config section into paho options.
//
// The session is clean: subscriptions live in the Client and are replayed
// on every connect, so nothing depends on broker-side session state. The
// will message marks the bridge offline if the connection drops without
// Close.
//
// Parameters:
//   - cfg: MQTT section of config.yaml
//   - topics: Topic builder for the configured namespace
//
// Returns:
//   - *pahomqtt.ClientOptions: Options ready for pahomqtt.NewClient
func sessionOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	will := statusPayload(cfg.Broker.ClientID, StatusOffline, reasonConnection, time.Now())
	opts.SetBinaryWill(topics.BridgeStatus(), will, statusQoS, true)

	return opts
}
