// Package directory owns durable user accounts for Ledger Core.
//
// It provides the SQL repository the auth package reads identities from
// (SQLite or PostgreSQL through the database package), account lifecycle
// operations (registration, profile and password changes, deletion) and
// first-boot administrator seeding.
//
// Usernames and emails are stored lowercase and are unique. Uniqueness is
// checked before writes for a clear error and enforced again by UNIQUE
// constraints, so concurrent registrations cannot both succeed.
package directory
