package keyring

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestNewSecret(t *testing.T) {
	orig := []byte("a-server-secret-of-reasonable-length")
	input := bytes.Clone(orig)

	s, err := NewSecret(input)
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}

	if !bytes.Equal(input, orig) {
		t.Error("NewSecret() must not wipe the caller's slice")
	}
	if s.Size() != len(orig) {
		t.Errorf("Size() = %d, want %d", s.Size(), len(orig))
	}

	var seen []byte
	if err := s.Use(func(b []byte) error {
		seen = bytes.Clone(b)
		return nil
	}); err != nil {
		t.Fatalf("Use() error = %v", err)
	}
	if !bytes.Equal(seen, orig) {
		t.Errorf("Use() saw %q, want %q", seen, orig)
	}
}

func TestNewSecret_Empty(t *testing.T) {
	if _, err := NewSecret(nil); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("NewSecret(nil) error = %v, want ErrEmptySecret", err)
	}
	if _, err := NewSecretFromString(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("NewSecretFromString(\"\") error = %v, want ErrEmptySecret", err)
	}
}

func TestUse_PropagatesError(t *testing.T) {
	s, err := NewSecretFromString("secret")
	if err != nil {
		t.Fatalf("NewSecretFromString() error = %v", err)
	}

	sentinel := errors.New("boom")
	if err := s.Use(func([]byte) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("Use() error = %v, want %v", err, sentinel)
	}
}

func TestDestroy(t *testing.T) {
	s, err := NewSecretFromString("secret")
	if err != nil {
		t.Fatalf("NewSecretFromString() error = %v", err)
	}

	s.Destroy()

	if err := s.Use(func([]byte) error { return nil }); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Use() after Destroy error = %v, want ErrDestroyed", err)
	}
	if s.Size() != 0 {
		t.Errorf("Size() after Destroy = %d, want 0", s.Size())
	}

	var nilSecret *Secret
	if err := nilSecret.Use(func([]byte) error { return nil }); !errors.Is(err, ErrDestroyed) {
		t.Errorf("nil Secret Use() error = %v, want ErrDestroyed", err)
	}
}

func TestNewSecretFromString(t *testing.T) {
	const value = "a-server-secret-of-reasonable-length"
	s, err := NewSecretFromString(value)
	if err != nil {
		t.Fatalf("NewSecretFromString() error = %v", err)
	}
	if err := s.Use(func(b []byte) error {
		if string(b) != value {
			t.Errorf("Use() saw %q, want %q", b, value)
		}
		return nil
	}); err != nil {
		t.Fatalf("Use() error = %v", err)
	}
}

// TestUseConcurrentWithDestroy runs under -race: readers and a destroyer
// share one Secret.
func TestUseConcurrentWithDestroy(t *testing.T) {
	s, err := NewSecretFromString("a-server-secret-of-reasonable-length")
	if err != nil {
		t.Fatalf("NewSecretFromString() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := s.Use(func(b []byte) error {
					if len(b) == 0 {
						return errors.New("empty plaintext")
					}
					return nil
				})
				if err != nil && !errors.Is(err, ErrDestroyed) {
					t.Errorf("Use() error = %v", err)
					return
				}
				_ = s.Size()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Destroy()
	}()
	wg.Wait()

	if err := s.Use(func([]byte) error { return nil }); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Use() after Destroy error = %v, want ErrDestroyed", err)
	}
}

func TestWipe(t *testing.T) {
	b := []byte("sensitive")
	Wipe(b)
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d = %d after Wipe, want 0", i, c)
		}
	}
}
