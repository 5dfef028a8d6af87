package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// Error codes. Clients switch on these, never on the message.
const (
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeAuthentication = "AUTHENTICATION_FAILED"
	ErrCodeAccessDenied   = "ACCESS_DENIED"
	ErrCodeNotFound       = "RESOURCE_NOT_FOUND"
	ErrCodeCSRF           = "CSRF_REJECTED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// Messages shared by several handlers.
const (
	msgValidationFailed     = "Validation failed"
	msgAuthenticationFailed = "Authentication failed"
	msgAccessDenied         = "Access denied"
	msgCSRFRejected         = "Access denied - bad CSRF token"
	msgRateLimited          = "Too many requests, try again later"
	msgInternal             = "Unable to process request"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the body of every failed response.
type Error struct {
	ID      string       `json:"id"`
	Message string       `json:"message"`
	Code    string       `json:"code"`
	Errors  []FieldError `json:"errors"`
}

type errorEnvelope struct {
	Error Error `json:"error"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeData wraps v in the {"data": ...} success envelope.
func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataEnvelope{Data: v})
}

// writeError writes the error envelope and returns its id.
func writeError(w http.ResponseWriter, status int, code, message string, fields []FieldError) string {
	if fields == nil {
		fields = []FieldError{}
	}
	id := uuid.NewString()
	writeJSON(w, status, errorEnvelope{Error: Error{
		ID:      id,
		Message: message,
		Code:    code,
		Errors:  fields,
	}})
	return id
}

// writeValidationError writes a 422 error response.
func writeValidationError(w http.ResponseWriter, fields []FieldError) {
	writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, msgValidationFailed, fields)
}

// writeAuthenticationFailed writes a 401 error response. The message is
// the same whatever the cause.
func writeAuthenticationFailed(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, ErrCodeAuthentication, msgAuthenticationFailed, nil)
}

// writeAccessDenied writes a 403 error response.
func writeAccessDenied(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, ErrCodeAccessDenied, msgAccessDenied, nil)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message, nil)
}

// writeCSRFRejected writes a 403 error response with its own code.
func writeCSRFRejected(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, ErrCodeCSRF, msgCSRFRejected, nil)
}

// writeRateLimited writes a 429 error response.
func writeRateLimited(w http.ResponseWriter) {
	writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, msgRateLimited, nil)
}

// internalError logs err under the error id sent to the client. The
// detail never leaves the server.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	id := writeError(w, http.StatusInternalServerError, ErrCodeInternal, msgInternal, nil)
	s.logger.Error("request failed",
		"error_id", id,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
}

// writeServiceError maps auth sentinels to the error envelope.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case auth.IsAuthFailure(err):
		writeAuthenticationFailed(w)
	case errors.Is(err, auth.ErrAccessDenied):
		writeAccessDenied(w)
	case errors.Is(err, auth.ErrSessionNotFound):
		writeNotFound(w, "Session not found")
	case errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, "User not found")
	case errors.Is(err, auth.ErrEmailExists):
		writeValidationError(w, []FieldError{{Field: "email", Message: "Email already exists"}})
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeValidationError(w, []FieldError{{Field: "password", Message: "Password must be at most 72 bytes"}})
	case errors.Is(err, auth.ErrInvalidRole):
		writeValidationError(w, []FieldError{{Field: "role", Message: "Role is invalid"}})
	default:
		s.internalError(w, r, err)
	}
}
