package api

import (
	"net/http"
	"strings"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// profileRequest is the request body for POST /participant/profile.
type profileRequest struct {
	Name         string `json:"name" validate:"required"`
	MobileNumber string `json:"mobileNumber" validate:"required,numeric,len=10"`
	BloodGroup   string `json:"bloodGroup" validate:"required,bloodgroup"`
}

func (r *profileRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.MobileNumber = strings.TrimSpace(r.MobileNumber)
	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
}

// inviteRequest is the request body for POST /administrator/add. Role
// defaults to ADMINISTRATOR.
type inviteRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,max=100,dive,required,email"`
	Role   string   `json:"role" validate:"omitempty,oneof=PARTICIPANT ADMINISTRATOR participant administrator 0 1"`
}

func (r *inviteRequest) normalize() {
	for i, e := range r.Emails {
		r.Emails[i] = strings.TrimSpace(e)
	}
	r.Role = strings.TrimSpace(r.Role)
}

// handleUpdateProfile edits the calling participant's profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	var req profileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.service.UpdateProfile(r.Context(), ac, auth.ProfileInput{
		Name:         req.Name,
		MobileNumber: req.MobileNumber,
		BloodGroup:   req.BloodGroup,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, userResponse{User: summarize(*user)})
}

// handleInvite creates inactive accounts that complete through register.
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request, ac auth.AuthContext) {
	var req inviteRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	role := auth.RoleAdministrator
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		role = parsed
	}

	result, err := s.service.Invite(r.Context(), ac, req.Emails, role)
	if err != nil {
		if result != nil {
			s.logger.Warn("invite failed partway",
				"by", ac.UserID(),
				"invited", result.Invited,
				"error", err,
			)
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("accounts invited",
		"by", ac.UserID(),
		"role", role.String(),
		"invited", len(result.Invited),
		"skipped", len(result.Skipped),
	)
	writeData(w, http.StatusOK, result)
}
