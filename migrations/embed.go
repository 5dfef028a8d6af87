// Package migrations embeds the SQL schema for users, sessions and audit
// logs so the binary can migrate a fresh database without files on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root. Pass it to
// database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
