package events

import (
	"context"
	"time"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// Fanout forwards each event to every sink it holds.
type Fanout struct {
	sinks []auth.EventSink
	now   func() time.Time
}

// NewFanout builds a Fanout. Nil sinks are skipped so optional
// integrations can be passed unconditionally.
func NewFanout(sinks ...auth.EventSink) *Fanout {
	f := &Fanout{now: time.Now}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Record stamps the event time if unset and hands it to each sink.
func (f *Fanout) Record(ctx context.Context, e auth.Event) {
	if e.At.IsZero() {
		e.At = f.now().UTC()
	}
	for _, s := range f.sinks {
		s.Record(ctx, e)
	}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}
