package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // ms
	defaultKeepAlive         = 60 * time.Second

	maxQoS        = 2
	tlsMinVersion = tls.VersionTLS12
)

// Status values carried on the retained server status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Reasons attached to an offline status.
const (
	ReasonGracefulShutdown     = "graceful_shutdown"
	ReasonUnexpectedDisconnect = "unexpected_disconnect"
)

// StatusMessage is the retained document on tourney/system/{server}/status.
// Events names the wildcard a consumer subscribes to for this server's
// auth events.
type StatusMessage struct {
	Status    string    `json:"status"`
	Server    string    `json:"server"`
	ClientID  string    `json:"client_id"`
	Events    string    `json:"events,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// presence builds the status documents for one server instance.
type presence struct {
	serverID string
	clientID string
	now      func() time.Time
}

func newPresence(serverID, clientID string) presence {
	return presence{serverID: serverID, clientID: clientID, now: time.Now}
}

func (p presence) topic() string {
	return Topics{}.ServerStatus(p.serverID)
}

func (p presence) message(status, reason string) []byte {
	msg := StatusMessage{
		Status:    status,
		Server:    p.serverID,
		ClientID:  p.clientID,
		Reason:    reason,
		Timestamp: p.now().UTC(),
	}
	if status == StatusOnline {
		msg.Events = Topics{}.AllAuthEvents()
	}
	payload, _ := json.Marshal(msg) //nolint:errchkjson // strings and a time only
	return payload
}

func (p presence) online() []byte { return p.message(StatusOnline, "") }

func (p presence) offline() []byte { return p.message(StatusOffline, ReasonGracefulShutdown) }

// will is registered with the broker at connect time and published by the
// broker if the connection drops without Close.
func (p presence) will() []byte { return p.message(StatusOffline, ReasonUnexpectedDisconnect) }

// buildClientOptions maps the mqtt config section onto paho options and
// registers the server's will on its status topic (QoS 1, retained).
func buildClientOptions(cfg config.MQTTConfig, p presence) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive).
		SetBinaryWill(p.topic(), p.will(), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}
