package events

import (
	"context"
	"log/slog"

	"github.com/nerrad567/tourney-core/internal/audit"
	"github.com/nerrad567/tourney-core/internal/auth"
)

// AuditSink persists events to the audit log.
type AuditSink struct {
	*queue
	repo audit.Repository
}

// NewAuditSink creates an audit sink. Call Run to start writing.
func NewAuditSink(repo audit.Repository, logger *slog.Logger) *AuditSink {
	s := &AuditSink{repo: repo}
	s.queue = newQueue("audit", defaultQueueSize, logger, s.write)
	return s
}

// Record queues the event.
func (s *AuditSink) Record(_ context.Context, e auth.Event) {
	s.enqueue(e)
}

func (s *AuditSink) write(ctx context.Context, e auth.Event) error {
	return s.repo.Create(ctx, toAuditLog(e))
}

func toAuditLog(e auth.Event) *audit.AuditLog {
	return &audit.AuditLog{
		Action:    e.Action,
		Outcome:   e.Outcome,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Source:    e.Source,
		Details:   e.Details,
		CreatedAt: e.At,
	}
}
