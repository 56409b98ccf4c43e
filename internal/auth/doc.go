// Package auth issues credentials and authenticates sessions for Ledger Core.
//
// It covers:
//   - Salted password hashing (argon2id by default, bcrypt supported) on a
//     bounded worker pool
//   - Signed JWT claim sets (HS256/384/512) with separate access and refresh
//     lifetimes
//   - Login, refresh, logout and current-identity resolution
//   - Rank-based authorisation that always re-reads the directory
//
// Sessions are stateless. The access token travels in the Authorization
// header; the refresh token travels only in an HttpOnly cookie scoped to the
// refresh endpoint. There is no revocation list: a deleted account's tokens
// stay cryptographically valid until they expire, though every path that
// re-reads the directory rejects them.
//
// Persistence of identities belongs to the Directory implementation
// (see package directory); this package only reads from it, apart from
// storing a rehashed password after a successful login.
package auth
