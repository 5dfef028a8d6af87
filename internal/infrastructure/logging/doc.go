// Package logging provides structured logging for tourney-core.
//
// It wraps log/slog so that every component logs with the same default
// fields (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file: "/var/log/tourney/core.log"
//
// # Security
//
// Attributes keyed password, token, token_hash, password_hash, server_secret,
// csrf_token or cookie are replaced with "[REDACTED]" before they are written.
// Callers should still avoid passing credentials to the logger at all.
package logging
