package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/nerrad567/tourney-core/internal/auth"
	"github.com/nerrad567/tourney-core/internal/infrastructure/mqtt"
)

// Publisher is the part of the MQTT client the sink needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
	IsConnected() bool
}

// mqttPayload is the message body published for an event. User
// identifiers are included, credentials never are.
type mqttPayload struct {
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// MQTTSink publishes events to tourney/auth/{action}.
type MQTTSink struct {
	*queue
	pub Publisher
}

// NewMQTTSink creates an MQTT sink. Call Run to start publishing.
func NewMQTTSink(pub Publisher, logger *slog.Logger) *MQTTSink {
	s := &MQTTSink{pub: pub}
	s.queue = newQueue("mqtt", defaultQueueSize, logger, s.write)
	return s
}

// Record queues the event unless the broker is unreachable.
func (s *MQTTSink) Record(_ context.Context, e auth.Event) {
	if !s.pub.IsConnected() {
		return
	}
	s.enqueue(e)
}

func (s *MQTTSink) write(_ context.Context, e auth.Event) error {
	if !s.pub.IsConnected() {
		return nil
	}
	return s.pub.PublishJSON(mqtt.Topics{}.AuthEvent(e.Action), mqttPayload{
		Action:    e.Action,
		Outcome:   e.Outcome,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Source:    e.Source,
		Details:   e.Details,
		Timestamp: e.At.UTC().Format(time.RFC3339Nano),
	})
}
