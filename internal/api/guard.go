package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// authedHandler is a handler that runs only after the guard succeeded. The
// AuthContext is passed explicitly and cannot be changed downstream.
type authedHandler func(w http.ResponseWriter, r *http.Request, ac auth.AuthContext)

// guard authenticates the token cookie and enforces roles before calling h.
// No roles means any authenticated user.
func (s *Server) guard(h authedHandler, roles ...auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, err := s.verifier.Authenticate(r.Context(), tokenFromRequest(r), roles...)
		switch {
		case err == nil:
			h(w, r, ac)
		case auth.IsAuthFailure(err):
			s.logger.Debug("authentication failed",
				"reason", err.Error(),
				"path", r.URL.Path,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			writeAuthenticationFailed(w)
		case errors.Is(err, auth.ErrAccessDenied):
			s.logger.Info("access denied",
				"path", r.URL.Path,
				"required_roles", roles,
			)
			writeAccessDenied(w)
		default:
			s.internalError(w, r, err)
		}
	}
}
