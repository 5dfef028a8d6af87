package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// seedPasswordBytes is the number of random bytes for a generated seed password.
const seedPasswordBytes = 16

// SeedAdministrator creates the first ADMINISTRATOR account when the user
// table is empty. If password is empty one is generated and returned so the
// caller can show it to the operator once. Returns "" when seeding was
// skipped or the password was supplied.
func (s *Service) SeedAdministrator(ctx context.Context, email, password string) (string, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		s.logger.Info("users exist, skipping administrator seed")
		return "", nil
	}

	generated := ""
	if password == "" {
		b := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		generated = hex.EncodeToString(b)
		password = generated
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdministrator,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed administrator: %w", err)
	}

	s.logger.Warn("seed administrator account created",
		"email", admin.Email,
		"password_generated", generated != "",
		"action_required", "change this password after first login",
	)
	return generated, nil
}
