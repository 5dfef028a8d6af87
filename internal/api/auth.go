package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// loginRequest is the request body for POST /authentication/login.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// registerRequest is the request body for POST /authentication/register.
type registerRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	MobileNumber string `json:"mobileNumber" validate:"required,numeric,len=10"`
	BloodGroup   string `json:"bloodGroup" validate:"required,bloodgroup"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
}

func (r *registerRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.MobileNumber = strings.TrimSpace(r.MobileNumber)
	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
}

// resetPasswordRequest is the request body for POST /authentication/reset-password.
type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// userSummary is the public view of an account.
type userSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	MobileNumber string    `json:"mobileNumber"`
	BloodGroup   string    `json:"bloodGroup"`
	Role         auth.Role `json:"role"`
	RoleName     string    `json:"roleName"`
}

func summarize(u auth.User) userSummary {
	return userSummary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
		BloodGroup:   u.BloodGroup,
		Role:         u.Role,
		RoleName:     u.Role.String(),
	}
}

type userResponse struct {
	User userSummary `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type logoutResponse struct {
	Redirect bool `json:"redirect"`
}

// sessionView is one row of the session management list. Token material
// is never exposed.
type sessionView struct {
	ID        string    `json:"id"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

type sessionsResponse struct {
	Sessions         []sessionView `json:"sessions"`
	CurrentSessionID string        `json:"currentSessionId"`
}

// handleLogin checks credentials, opens a session and sets the token and
// CSRF cookies.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, tok, err := s.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   clientMetaFromRequest(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.setCSRFCookie(w, r); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.setTokenCookie(w, r, tok.Value, tok.ExpiresAt)

	s.logger.Info("user logged in", "user_id", user.ID, "session_id", tok.SessionID)
	writeData(w, http.StatusOK, userResponse{User: summarize(*user)})
}

// handleRegister creates an account or completes an invitation. It never
// logs the user in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	_, err := s.service.Register(r.Context(), auth.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		BloodGroup:   req.BloodGroup,
		Password:     req.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, messageResponse{Message: "Account created successfully, continue to login."})
}

// handleIdentity returns the caller and refreshes the CSRF cookie.
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	if err := s.setCSRFCookie(w, r); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, userResponse{User: summarize(ac.User())})
}

// handleLogout ends the caller's own session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	s.logout(w, r, ac, auth.LogoutCurrent, "")
}

// handleLogoutAll ends every session of the caller except this one.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	s.logout(w, r, ac, auth.LogoutAll, "")
}

// handleLogoutSession revokes one of the caller's sessions by id.
func (s *Server) handleLogoutSession(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	s.logout(w, r, ac, auth.LogoutByID, chi.URLParam(r, "sessionID"))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, ac auth.AuthContext, mode auth.LogoutMode, targetID string) {
	clearCookie, err := s.service.Logout(r.Context(), ac, mode, targetID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if clearCookie {
		s.clearTokenCookie(w, r)
		s.clearCSRFCookie(w, r)
	}
	writeData(w, http.StatusOK, logoutResponse{Redirect: clearCookie})
}

// handleResetPassword changes the password and ends every session,
// including this one.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	var req resetPasswordRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.service.ResetPassword(r.Context(), ac, req.Password); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.clearTokenCookie(w, r)
	s.clearCSRFCookie(w, r)
	writeData(w, http.StatusOK, messageResponse{Message: "Password changed, log in again."})
}

// handleListSessions lists the caller's sessions, flagging the current one.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	sessions, currentID, err := s.service.ListSessions(r.Context(), ac)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionView{
			ID:        sess.ID,
			Browser:   sess.Client.Browser,
			OS:        sess.Client.OS,
			IPAddress: sess.Client.IPAddress,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   sess.ID == currentID,
		})
	}

	writeData(w, http.StatusOK, sessionsResponse{Sessions: views, CurrentSessionID: currentID})
}
