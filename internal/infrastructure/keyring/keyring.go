// Package keyring keeps the server-wide signing secret out of ordinary heap
// memory.
//
// The secret lives in a memguard Enclave (encrypted at rest in memory) and is
// only decrypted into a locked buffer for the duration of a single callback.
// Callers must not retain the slice passed to that callback.
package keyring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrEmptySecret is returned when a secret with no bytes is supplied.
var ErrEmptySecret = errors.New("secret is empty")

// ErrDestroyed is returned when a destroyed secret is used.
var ErrDestroyed = errors.New("secret has been destroyed")

// Secret is a sealed byte string. It is safe for concurrent use.
type Secret struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
}

// NewSecret seals a copy of b. The caller's slice is left untouched.
func NewSecret(b []byte) (*Secret, error) {
	if len(b) == 0 {
		return nil, ErrEmptySecret
	}

	// NewEnclave wipes its argument, so hand it a private copy.
	buf := make([]byte, len(b))
	copy(buf, b)

	return &Secret{enclave: memguard.NewEnclave(buf)}, nil
}

// NewSecretFromString seals the bytes of s. The intermediate byte copy is
// wiped; s itself is immutable and stays wherever the caller keeps it.
func NewSecretFromString(s string) (*Secret, error) {
	if s == "" {
		return nil, ErrEmptySecret
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(s))}, nil
}

// Use decrypts the secret and passes it to fn. The plaintext is wiped as
// soon as fn returns.
func (s *Secret) Use(fn func(secret []byte) error) error {
	enclave := s.sealed()
	if enclave == nil {
		return ErrDestroyed
	}

	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("opening secret enclave: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// Size returns the length of the sealed secret in bytes.
func (s *Secret) Size() int {
	enclave := s.sealed()
	if enclave == nil {
		return 0
	}
	return enclave.Size()
}

// Destroy drops the reference to the enclave. Further calls to Use fail;
// a Use already past the check finishes with its own decrypted buffer.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.enclave = nil
	s.mu.Unlock()
}

func (s *Secret) sealed() *memguard.Enclave {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enclave
}

// Purge wipes every memguard-managed buffer in the process. Call it once on
// shutdown.
func Purge() {
	memguard.Purge()
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
