package auth

import (
	"context"
	"time"
)

// Auth event actions.
const (
	ActionLogin          = "login"
	ActionLoginFailed    = "login_failed"
	ActionLogout         = "logout"
	ActionLogoutAll      = "logout_all"
	ActionSessionRevoked = "session_revoked"
	ActionRegister       = "register"
	ActionPasswordReset  = "password_reset"
	ActionProfileUpdate  = "profile_update"
	ActionInvite         = "invite"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event describes something that happened to an account or session.
type Event struct {
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"at"`
}

// EventSink receives auth events. Record must not block the caller for
// long and must be safe for concurrent use.
type EventSink interface {
	Record(ctx context.Context, e Event)
}

type nopSink struct{}

func (nopSink) Record(context.Context, Event) {}
