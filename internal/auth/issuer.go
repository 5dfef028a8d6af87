package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/tourney-core/internal/infrastructure/keyring"
)

// IssuedToken is the result of a successful Issue. Value goes to the client;
// Hash is persisted with the session.
type IssuedToken struct {
	SessionID string
	Value     string
	Hash      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints session tokens.
type Issuer struct {
	secret *keyring.Secret
	hasher *Hasher
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with keys derived from secret.
func NewIssuer(secret *keyring.Secret, hasher *Hasher) *Issuer {
	return &Issuer{secret: secret, hasher: hasher, now: time.Now}
}

// Issue creates a fresh session id and a token bound to the user's current
// password hash. Changing the password invalidates every token issued
// before the change.
func (i *Issuer) Issue(userID, passwordHash string) (*IssuedToken, error) {
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(SessionTTL)
	sessionID := uuid.NewString()

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		UserID:    userID,
	}

	var value string
	err := withSigningKey(i.secret, passwordHash, func(key []byte) error {
		var err error
		value, err = signClaims(claims, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	hash, err := i.hasher.HashToken(value)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		SessionID: sessionID,
		Value:     value,
		Hash:      hash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// deriveSigningKey returns serverSecret followed by passwordHash. The
// result is a fresh slice the caller owns and must wipe.
func deriveSigningKey(serverSecret []byte, passwordHash string) []byte {
	key := make([]byte, 0, len(serverSecret)+len(passwordHash))
	key = append(key, serverSecret...)
	return append(key, passwordHash...)
}

// withSigningKey derives the per-user key, hands it to fn, then wipes it.
// Keys are never cached.
func withSigningKey(secret *keyring.Secret, passwordHash string, fn func(key []byte) error) error {
	return secret.Use(func(serverSecret []byte) error {
		key := deriveSigningKey(serverSecret, passwordHash)
		defer keyring.Wipe(key)
		if err := fn(key); err != nil {
			return fmt.Errorf("using signing key: %w", err)
		}
		return nil
	})
}
