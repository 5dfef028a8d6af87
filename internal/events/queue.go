package events

import (
	"context"
	"log/slog"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// defaultQueueSize bounds each sink's backlog.
const defaultQueueSize = 256

// queue is a bounded buffer drained serially by Run.
type queue struct {
	name   string
	ch     chan auth.Event
	write  func(context.Context, auth.Event) error
	logger *slog.Logger
}

func newQueue(name string, size int, logger *slog.Logger, write func(context.Context, auth.Event) error) *queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &queue{
		name:   name,
		ch:     make(chan auth.Event, size),
		write:  write,
		logger: logger,
	}
}

// enqueue never blocks. It reports whether e was accepted.
func (q *queue) enqueue(e auth.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		q.logger.Warn("event queue full, dropping event",
			"sink", q.name,
			"action", e.Action,
		)
		return false
	}
}

// Run writes queued events until ctx is cancelled, then drains what is
// left and returns.
func (q *queue) Run(ctx context.Context) {
	for {
		select {
		case e := <-q.ch:
			q.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-q.ch:
					q.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// Pending returns the number of queued events.
func (q *queue) Pending() int {
	return len(q.ch)
}

func (q *queue) deliver(e auth.Event) {
	// Writes outlive the request that produced them.
	if err := q.write(context.Background(), e); err != nil {
		q.logger.Error("event delivery failed",
			"sink", q.name,
			"action", e.Action,
			"error", err,
		)
	}
}
