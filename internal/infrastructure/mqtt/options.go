package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mwrenholt/gatherly-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// TLS 1.2 minimum when broker TLS is enabled.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions converts our config into paho client options.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session: subscriptions are re-established by handleConnect,
	// so broker-side session state would only mask bugs.
	opts.SetCleanSession(true)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetConnectTimeout(defaultConnectTimeout)

	opts.SetAutoReconnect(true)
	if cfg.Reconnect.InitialDelay > 0 {
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	}
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	return opts
}

// configureLWT registers a last-will message so subscribers learn about
// ungraceful disconnects. The retained status topic always reflects the
// last known state of this instance.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload := buildOfflinePayload(clientID, "connection_lost")
	opts.SetBinaryWill(Topics{}.SystemStatus(), payload, 1, true)
}

type statusPayload struct {
	ClientID  string `json:"client_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildOnlinePayload(clientID string) []byte {
	p := statusPayload{
		ClientID:  clientID,
		Status:    "online",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, _ := json.Marshal(p) //nolint:errcheck // fixed struct cannot fail
	return b
}

func buildOfflinePayload(clientID, reason string) []byte {
	p := statusPayload{
		ClientID:  clientID,
		Status:    "offline",
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, _ := json.Marshal(p) //nolint:errcheck // fixed struct cannot fail
	return b
}
