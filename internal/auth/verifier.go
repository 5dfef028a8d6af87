package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nerrad567/tourney-core/internal/infrastructure/keyring"
)

// Verifier turns a presented token into an AuthContext.
type Verifier struct {
	users    UserRepository
	sessions SessionRepository
	secret   *keyring.Secret
	hasher   *Hasher
	logger   *slog.Logger
	now      func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(users UserRepository, sessions SessionRepository, secret *keyring.Secret, hasher *Hasher, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		users:    users,
		sessions: sessions,
		secret:   secret,
		hasher:   hasher,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate checks raw in order: presence, untrusted peek, user and
// session lookup, signature and expiry, stored hash, then role. An empty
// roles list admits any role.
//
// Every authentication failure wraps ErrMissingToken or ErrTokenInvalid; a
// role mismatch returns ErrAccessDenied. Other errors are storage failures.
func (v *Verifier) Authenticate(ctx context.Context, raw string, roles ...Role) (AuthContext, error) {
	if raw == "" {
		return AuthContext{}, ErrMissingToken
	}

	lookup, err := peekUntrusted(raw)
	if err != nil {
		return AuthContext{}, err
	}

	user, err := v.users.GetByID(ctx, lookup.userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthContext{}, fmt.Errorf("%w: unknown user", ErrTokenInvalid)
		}
		return AuthContext{}, fmt.Errorf("loading user: %w", err)
	}
	if !user.IsActive {
		return AuthContext{}, fmt.Errorf("%w: inactive user", ErrTokenInvalid)
	}

	session, err := v.sessions.GetByID(ctx, lookup.sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AuthContext{}, fmt.Errorf("%w: unknown session", ErrTokenInvalid)
		}
		return AuthContext{}, fmt.Errorf("loading session: %w", err)
	}
	if session.UserID != user.ID {
		return AuthContext{}, fmt.Errorf("%w: session owner mismatch", ErrTokenInvalid)
	}

	// From here on only verified claims are trusted.
	var claims *sessionClaims
	err = withSigningKey(v.secret, user.PasswordHash, func(key []byte) error {
		var err error
		claims, err = verifyClaims(raw, key, v.now)
		return err
	})
	if err != nil {
		if isExpiredErr(err) {
			v.logger.Debug("expired session token presented", "session_id", session.ID)
		}
		if errors.Is(err, ErrTokenInvalid) {
			return AuthContext{}, err
		}
		return AuthContext{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if claims.SessionID != session.ID || claims.UserID != user.ID {
		return AuthContext{}, fmt.Errorf("%w: claims do not match session", ErrTokenInvalid)
	}

	if !v.hasher.VerifyToken(raw, session.TokenHash) {
		return AuthContext{}, fmt.Errorf("%w: token hash mismatch", ErrTokenInvalid)
	}

	if len(roles) > 0 && !slices.Contains(roles, user.Role) {
		return AuthContext{}, ErrAccessDenied
	}

	return newAuthContext(*user, *session), nil
}

// IsAuthFailure reports whether err means the caller is not authenticated
// (as opposed to authenticated but not allowed, or a storage failure).
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrMissingToken) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrInvalidCredentials)
}
