// Package database provides SQLite connectivity for tourney-core.
//
// This package manages:
//   - the connection, with WAL mode and foreign keys enabled
//   - versioned schema migrations read from an fs.FS
//   - connection pool and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is restricted to 0600
//   - Passwords and session tokens are stored only as bcrypt digests
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
