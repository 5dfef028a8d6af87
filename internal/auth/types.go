package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SessionTTL is how long an issued token and its session remain valid.
const SessionTTL = 24 * time.Hour

// Role represents an authorisation tier. The numeric values are persisted.
type Role int

const (
	// RoleParticipant is a registered player who may edit their own profile
	// and apply to tournaments.
	RoleParticipant Role = 0

	// RoleAdministrator manages tournaments and may invite further
	// administrators.
	RoleAdministrator Role = 1
)

// String returns the upper-case role name used in logs and the CLI.
func (r Role) String() string {
	switch r {
	case RoleParticipant:
		return "PARTICIPANT"
	case RoleAdministrator:
		return "ADMINISTRATOR"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleAdministrator
}

// ParseRole accepts a role name (case-insensitive) or its numeric form.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PARTICIPANT", "0":
		return RoleParticipant, nil
	case "ADMINISTRATOR", "1":
		return RoleAdministrator, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// User is a stored account. Invited users are inactive and have no
// password hash until they register.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	MobileNumber string    `json:"mobileNumber"`
	BloodGroup   string    `json:"bloodGroup"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	InvitedBy    string    `json:"invitedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an address so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ClientMeta describes the client a session was opened from. All fields
// are optional.
type ClientMeta struct {
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// Session is one authenticated client login. The raw token is never
// stored, only TokenHash.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TokenHash string     `json:"-"` // never serialised
	Client    ClientMeta `json:"client"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Expired reports whether the session was created more than SessionTTL
// before now.
func (s *Session) Expired(now time.Time) bool {
	return !s.CreatedAt.Add(SessionTTL).After(now)
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMissingToken       = errors.New("missing token")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidRole        = errors.New("invalid role")
)
