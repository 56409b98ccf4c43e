// Package database provides the SQL connection behind the Ledger Core user
// directory and audit log.
//
// Two backends are supported:
//   - SQLite (mattn/go-sqlite3) for single-node installs, with WAL mode and
//     a single-writer pool
//   - PostgreSQL (pgx stdlib driver) for shared deployments
//
// Repositories write one query per operation using ? placeholders; DB
// rebinds them to $n for PostgreSQL. UniqueViolation recognises duplicate-key
// errors from both drivers.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database files are created with 0600 permissions
//   - Password hashes are stored, never plaintext passwords
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// SQLite migrations live in migrations/ as YYYYMMDD_HHMMSS_name.up.sql files
// and are applied forward-only by the in-house runner, which records them in
// schema_migrations. PostgreSQL migrations live in migrations/postgres/ in
// goose format and are applied with goose.
package database
