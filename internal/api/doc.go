// Package api implements the HTTP REST API for Tourney Core.
//
// This package provides:
//   - Credential endpoints (login, register) behind a per-IP rate limiter
//   - Session management (identity, session list, logout, password reset)
//   - Role-guarded participant and administrator endpoints
//   - Double-submit CSRF protection for every authenticated mutation
//   - Middleware stack (request ID, logging, recovery, security headers, CORS)
//   - An embedded OpenAPI document with Swagger UI and Redoc viewers
//
// # Authentication
//
// The session token travels in the HttpOnly "token" cookie. Every guarded
// handler receives an auth.AuthContext built by auth.Verifier; handlers
// never parse tokens themselves.
//
// # Errors
//
// Failures use a single envelope:
//
//	{"error": {"id": "...", "message": "...", "code": "...", "errors": [...]}}
//
// Authentication failures are deliberately indistinguishable from each
// other. Internal errors expose only the error id, which is logged.
package api
