package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRepository is the session store. All operations are safe for
// concurrent use.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	// DeleteByID is idempotent.
	DeleteByID(ctx context.Context, id string) error
	// DeleteAllForUser removes the user's sessions except exceptID (empty
	// removes all) and returns how many were removed.
	DeleteAllForUser(ctx context.Context, userID, exceptID string) (int, error)
	// PurgeExpired removes the user's sessions created more than SessionTTL
	// before now.
	PurgeExpired(ctx context.Context, userID string, now time.Time) (int, error)
	// PurgeAllExpired is PurgeExpired across every user.
	PurgeAllExpired(ctx context.Context, now time.Time) (int, error)
}

// SQLiteSessionRepository implements SessionRepository in the same SQLite
// database as users.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite-backed session repository.
func NewSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

const sessionColumns = `id, user_id, token_hash, browser, os, user_agent, ip_address, created_at, expires_at`

// Create inserts a session. ExpiresAt defaults to CreatedAt + SessionTTL.
func (r *SQLiteSessionRepository) Create(ctx context.Context, s *Session) error {
	if s.ID == "" || s.UserID == "" {
		return fmt.Errorf("creating session: id and user id are required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(SessionTTL)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash,
		s.Client.Browser, s.Client.OS, s.Client.UserAgent, s.Client.IPAddress,
		formatTime(s.CreatedAt), formatTime(s.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetByID returns ErrSessionNotFound when no session has that id.
func (r *SQLiteSessionRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSessionFrom(row)
}

// ListByUser returns the user's sessions, newest first.
func (r *SQLiteSessionRepository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? ORDER BY created_at DESC, id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSessionFrom(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByID removes a session. Deleting a missing id is not an error.
func (r *SQLiteSessionRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes the user's sessions except exceptID.
func (r *SQLiteSessionRepository) DeleteAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id = ? AND id != ?", userID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(n), nil
}

// PurgeExpired removes the user's sessions older than SessionTTL.
func (r *SQLiteSessionRepository) PurgeExpired(ctx context.Context, userID string, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id = ? AND created_at <= ?",
		userID, formatTime(now.Add(-SessionTTL)))
	if err != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(n), nil
}

// PurgeAllExpired removes every session older than SessionTTL.
func (r *SQLiteSessionRepository) PurgeAllExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE created_at <= ?", formatTime(now.Add(-SessionTTL)))
	if err != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(n), nil
}

func scanSessionFrom(s scanner) (*Session, error) {
	var sess Session
	var createdAt, expiresAt string

	err := s.Scan(&sess.ID, &sess.UserID, &sess.TokenHash,
		&sess.Client.Browser, &sess.Client.OS, &sess.Client.UserAgent, &sess.Client.IPAddress,
		&createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.ExpiresAt = parseTime(expiresAt)
	return &sess, nil
}
