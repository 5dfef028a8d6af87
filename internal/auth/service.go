package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// LoginInput is a login attempt.
type LoginInput struct {
	Email    string
	Password string
	Client   ClientMeta
}

// RegisterInput is a self-registration (or activation of an invitation).
type RegisterInput struct {
	Name         string
	Email        string
	MobileNumber string
	BloodGroup   string
	Password     string
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Name         string
	MobileNumber string
	BloodGroup   string
}

// LogoutMode selects which sessions Logout removes.
type LogoutMode int

const (
	// LogoutCurrent removes only the caller's session.
	LogoutCurrent LogoutMode = iota
	// LogoutAll removes every session of the caller except the current one.
	LogoutAll
	// LogoutByID removes one named session owned by the caller.
	LogoutByID
)

// InviteResult reports which addresses were invited and which already had
// an account.
type InviteResult struct {
	Invited []string `json:"invited"`
	Skipped []string `json:"skipped"`
}

// ServiceDeps holds the collaborators of a Service.
type ServiceDeps struct {
	Users    UserRepository
	Sessions SessionRepository
	Hasher   *Hasher
	Issuer   *Issuer
	Events   EventSink
	Logger   *slog.Logger
	// Source tags emitted events ("api", "cli"). Defaults to "api".
	Source string
}

// Service implements the account and session flows on top of the stores,
// the hasher and the issuer.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   *Hasher
	issuer   *Issuer
	events   EventSink
	logger   *slog.Logger
	source   string
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		users:    deps.Users,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		issuer:   deps.Issuer,
		events:   deps.Events,
		logger:   deps.Logger,
		source:   deps.Source,
		now:      time.Now,
	}
	if s.events == nil {
		s.events = nopSink{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.source == "" {
		s.source = "api"
	}
	return s
}

func (s *Service) record(ctx context.Context, e Event) {
	e.Source = s.source
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	s.events.Record(ctx, e)
}

// burnVerify spends the same time as a real password check so unknown
// emails are not distinguishable by latency.
func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("tourney-timing-equaliser")
		if err == nil {
			s.dummyHash = h
		}
	})
	s.hasher.Verify(password, s.dummyHash)
}

// Login checks credentials and opens a new session. Unknown email, inactive
// account and wrong password all return ErrInvalidCredentials. Expired
// sessions of the user are purged first.
func (s *Service) Login(ctx context.Context, in LoginInput) (*User, *IssuedToken, error) {
	email := NormalizeEmail(in.Email)

	fail := func(userID, reason string) (*User, *IssuedToken, error) {
		s.record(ctx, Event{
			Action:  ActionLoginFailed,
			Outcome: OutcomeFailure,
			UserID:  userID,
			Details: map[string]any{"email": email, "reason": reason, "ip": in.Client.IPAddress},
		})
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.burnVerify(in.Password)
			return fail("", "unknown_email")
		}
		return nil, nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.IsActive {
		s.burnVerify(in.Password)
		return fail(user.ID, "inactive")
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return fail(user.ID, "bad_password")
	}

	purged, err := s.sessions.PurgeExpired(ctx, user.ID, s.now())
	if err != nil {
		return nil, nil, fmt.Errorf("purging expired sessions: %w", err)
	}
	if purged > 0 {
		s.logger.Debug("purged expired sessions", "user_id", user.ID, "count", purged)
	}

	tok, err := s.issuer.Issue(user.ID, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("issuing token: %w", err)
	}

	session := &Session{
		ID:        tok.SessionID,
		UserID:    user.ID,
		TokenHash: tok.Hash,
		Client:    in.Client,
		CreatedAt: tok.IssuedAt,
		ExpiresAt: tok.ExpiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("storing session: %w", err)
	}

	s.record(ctx, Event{
		Action:    ActionLogin,
		Outcome:   OutcomeSuccess,
		UserID:    user.ID,
		SessionID: session.ID,
		Details:   map[string]any{"browser": in.Client.Browser, "os": in.Client.OS, "ip": in.Client.IPAddress},
	})

	return user, tok, nil
}

// Register creates an active PARTICIPANT, or activates an invited account
// keeping its role. An active account with the same email returns
// ErrEmailExists. No session is opened.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if existing != nil && existing.IsActive {
		return nil, ErrEmailExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var user *User
	if existing != nil {
		existing.Name = in.Name
		existing.MobileNumber = in.MobileNumber
		existing.BloodGroup = in.BloodGroup
		existing.PasswordHash = hash
		existing.IsActive = true
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("activating invited user: %w", err)
		}
		user = existing
	} else {
		user = &User{
			Name:         in.Name,
			Email:        email,
			MobileNumber: in.MobileNumber,
			BloodGroup:   in.BloodGroup,
			PasswordHash: hash,
			Role:         RoleParticipant,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrEmailExists) {
				return nil, ErrEmailExists
			}
			return nil, fmt.Errorf("creating user: %w", err)
		}
	}

	s.record(ctx, Event{
		Action:  ActionRegister,
		Outcome: OutcomeSuccess,
		UserID:  user.ID,
		Details: map[string]any{"invited": existing != nil, "role": user.Role.String()},
	})
	return user, nil
}

// Logout removes sessions according to mode. clearCookie is true when the
// caller's own session was removed.
func (s *Service) Logout(ctx context.Context, ac AuthContext, mode LogoutMode, targetID string) (clearCookie bool, err error) {
	switch mode {
	case LogoutCurrent:
		if err := s.sessions.DeleteByID(ctx, ac.SessionID()); err != nil {
			return false, err
		}
		s.record(ctx, Event{Action: ActionLogout, Outcome: OutcomeSuccess, UserID: ac.UserID(), SessionID: ac.SessionID()})
		return true, nil

	case LogoutAll:
		n, err := s.sessions.DeleteAllForUser(ctx, ac.UserID(), ac.SessionID())
		if err != nil {
			return false, err
		}
		s.record(ctx, Event{
			Action:    ActionLogoutAll,
			Outcome:   OutcomeSuccess,
			UserID:    ac.UserID(),
			SessionID: ac.SessionID(),
			Details:   map[string]any{"removed": n},
		})
		return false, nil

	case LogoutByID:
		target, err := s.sessions.GetByID(ctx, targetID)
		if err != nil {
			return false, err
		}
		if target.UserID != ac.UserID() {
			return false, ErrSessionNotFound
		}
		if err := s.sessions.DeleteByID(ctx, target.ID); err != nil {
			return false, err
		}
		s.record(ctx, Event{
			Action:    ActionSessionRevoked,
			Outcome:   OutcomeSuccess,
			UserID:    ac.UserID(),
			SessionID: target.ID,
			Details:   map[string]any{"revoked_by_session": ac.SessionID()},
		})
		return target.ID == ac.SessionID(), nil

	default:
		return false, fmt.Errorf("unknown logout mode %d", mode)
	}
}

// ResetPassword sets a new password and removes every session of the user,
// including the current one. The caller must clear the token cookie.
func (s *Service) ResetPassword(ctx context.Context, ac AuthContext, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, ac.UserID(), hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	n, err := s.sessions.DeleteAllForUser(ctx, ac.UserID(), "")
	if err != nil {
		return fmt.Errorf("removing sessions: %w", err)
	}

	s.record(ctx, Event{
		Action:    ActionPasswordReset,
		Outcome:   OutcomeSuccess,
		UserID:    ac.UserID(),
		SessionID: ac.SessionID(),
		Details:   map[string]any{"sessions_removed": n},
	})
	return nil
}

// ListSessions returns the caller's sessions and the id of the current one.
func (s *Service) ListSessions(ctx context.Context, ac AuthContext) ([]Session, string, error) {
	sessions, err := s.sessions.ListByUser(ctx, ac.UserID())
	if err != nil {
		return nil, "", err
	}
	return sessions, ac.SessionID(), nil
}

// UpdateProfile changes the caller's name, mobile number and blood group.
func (s *Service) UpdateProfile(ctx context.Context, ac AuthContext, in ProfileInput) (*User, error) {
	user, err := s.users.GetByID(ctx, ac.UserID())
	if err != nil {
		return nil, err
	}

	user.Name = in.Name
	user.MobileNumber = in.MobileNumber
	user.BloodGroup = in.BloodGroup
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.record(ctx, Event{Action: ActionProfileUpdate, Outcome: OutcomeSuccess, UserID: user.ID, SessionID: ac.SessionID()})
	return user, nil
}

// Invite creates inactive accounts with the given role. Addresses that
// already have an account (active or invited) are skipped. ac may be zero
// when invoked from the command line.
//
// Accounts are created one at a time. If storage fails partway, the
// accounts already created stay, a failed invite event lists them, and the
// partial result is returned alongside the error.
func (s *Service) Invite(ctx context.Context, ac AuthContext, emails []string, role Role) (*InviteResult, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	result := &InviteResult{Invited: []string{}, Skipped: []string{}}
	seen := make(map[string]bool, len(emails))

	for _, raw := range emails {
		email := NormalizeEmail(raw)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		err := s.users.Create(ctx, &User{
			Email:     email,
			Role:      role,
			IsActive:  false,
			InvitedBy: ac.UserID(),
		})
		switch {
		case errors.Is(err, ErrEmailExists):
			result.Skipped = append(result.Skipped, email)
		case err != nil:
			s.recordInvite(ctx, ac, role, result, OutcomeFailure, map[string]any{
				"failed_email": email,
				"error":        err.Error(),
			})
			return result, fmt.Errorf("inviting %s: %w", email, err)
		default:
			result.Invited = append(result.Invited, email)
		}
	}

	s.recordInvite(ctx, ac, role, result, OutcomeSuccess, nil)
	return result, nil
}

func (s *Service) recordInvite(ctx context.Context, ac AuthContext, role Role, result *InviteResult, outcome string, extra map[string]any) {
	details := map[string]any{
		"role":           role.String(),
		"invited":        len(result.Invited),
		"skipped":        len(result.Skipped),
		"invited_emails": slices.Clone(result.Invited),
	}
	maps.Copy(details, extra)

	s.record(ctx, Event{
		Action:    ActionInvite,
		Outcome:   outcome,
		UserID:    ac.UserID(),
		SessionID: ac.SessionID(),
		Details:   details,
	})
}

// RunExpirySweep purges expired sessions of all users every interval until
// ctx is cancelled. A non-positive interval returns immediately.
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.PurgeAllExpired(ctx, s.now())
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("session expiry sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				s.logger.Info("session expiry sweep", "purged", n)
			}
		}
	}
}
