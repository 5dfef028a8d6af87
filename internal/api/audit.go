package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/tourney-core/internal/audit"
	"github.com/nerrad567/tourney-core/internal/auth"
)

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: login, login_failed, logout, logout_all, session_revoked,
//     register, password_reset, profile_update, invite
//   - outcome: success or failure
//   - user_id: entries about one user
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request, _ auth.AuthContext) {
	if s.auditRepo == nil {
		writeNotFound(w, "Audit log is not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  q.Get("action"),
		Outcome: q.Get("outcome"),
		UserID:  q.Get("user_id"),
	}

	var fields []FieldError
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: "limit", Message: "Limit must be a non-negative integer"})
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: "offset", Message: "Offset must be a non-negative integer"})
		}
		filter.Offset = n
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, result)
}
