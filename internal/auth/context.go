package auth

// AuthContext is the verified identity of a request: the current user and
// the session their token belongs to. It is built once by the Verifier and
// cannot be modified afterwards. Secrets (password and token hashes) are
// stripped.
type AuthContext struct {
	user    User
	session Session
}

func newAuthContext(user User, session Session) AuthContext {
	user.PasswordHash = ""
	session.TokenHash = ""
	return AuthContext{user: user, session: session}
}

// User returns a copy of the authenticated user.
func (a AuthContext) User() User { return a.user }

// Session returns a copy of the current session.
func (a AuthContext) Session() Session { return a.session }

// UserID returns the authenticated user's id.
func (a AuthContext) UserID() string { return a.user.ID }

// SessionID returns the current session's id.
func (a AuthContext) SessionID() string { return a.session.ID }

// Role returns the authenticated user's role.
func (a AuthContext) Role() Role { return a.user.Role }

// IsZero reports whether a is the zero value (no authenticated caller).
func (a AuthContext) IsZero() bool { return a.user.ID == "" }
