package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// healthCheckTimeout bounds each dependency check behind /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "Resource not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health check and docs (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/openapi.yaml", handleOpenAPISpec)
		r.Handle("/docs*", swaggerUIHandler())
		r.Handle("/redoc*", redocHandler())

		// Credential endpoints: no session, no CSRF, rate limited
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Post("/authentication/login", s.handleLogin)
			r.Post("/authentication/register", s.handleRegister)
		})

		// Everything else must echo the CSRF cookie on mutating requests
		r.Group(func(r chi.Router) {
			r.Use(s.csrfMiddleware)

			r.Get("/authentication/user", s.guard(s.handleIdentity))
			r.Get("/authentication/sessions", s.guard(s.handleListSessions))
			r.Post("/authentication/logout", s.guard(s.handleLogout))
			r.Post("/authentication/logout/all", s.guard(s.handleLogoutAll))
			r.Post("/authentication/logout/{sessionID}", s.guard(s.handleLogoutSession))
			r.Post("/authentication/reset-password", s.guard(s.handleResetPassword))

			r.Post("/participant/profile", s.guard(s.handleUpdateProfile, auth.RoleParticipant))

			r.Post("/administrator/add", s.guard(s.handleInvite, auth.RoleAdministrator))
			r.Get("/administrator/audit", s.guard(s.handleListAuditLogs, auth.RoleAdministrator))
		})
	})

	return r
}

// handleHealth reports the version and the state of each dependency. Any
// failing check turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			checks[name] = err.Error()
			s.logger.Warn("health check failed", "check", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeData(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
