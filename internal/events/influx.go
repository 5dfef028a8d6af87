package events

import (
	"context"
	"time"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// PointWriter is the part of the InfluxDB client the sink needs.
type PointWriter interface {
	WriteAuthEvent(action, outcome string, at time.Time)
}

// InfluxSink counts events in InfluxDB. The client batches writes
// itself, so no queue is needed.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates an InfluxDB sink.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Record writes one counter point.
func (s *InfluxSink) Record(_ context.Context, e auth.Event) {
	s.w.WriteAuthEvent(e.Action, e.Outcome, e.At)
}
