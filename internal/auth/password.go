package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor for passwords and token hashes.
const DefaultCost = 12

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher produces and checks bcrypt digests of passwords and session
// tokens.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using DefaultCost.
func NewHasher() *Hasher {
	return &Hasher{cost: DefaultCost}
}

// NewHasherWithCost returns a Hasher with a custom work factor. Out of
// range costs fall back to DefaultCost.
func NewHasherWithCost(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt digest of a plaintext password.
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. Malformed or empty
// digests never match.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// HashToken returns the digest stored alongside a session. Tokens are
// longer than bcrypt's 72-byte input limit, so the hex SHA-256 of the token
// is hashed instead.
func (h *Hasher) HashToken(raw string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(reduceToken(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	return string(digest), nil
}

// VerifyToken reports whether raw matches a digest produced by HashToken.
func (h *Hasher) VerifyToken(raw, digest string) bool {
	if raw == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), reduceToken(raw)) == nil
}

func reduceToken(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}
