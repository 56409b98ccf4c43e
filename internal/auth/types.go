package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// usernamePattern defines the valid format for usernames:
// lowercase alphanumeric, dots, hyphens, underscores, 3-64 characters.
// Matched after normalisation.
var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,64}$`)

// emailPattern is a deliberately loose shape check; deliverability is not
// our concern.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// MinPasswordLength is the shortest plaintext accepted at registration or
// password change.
const MinPasswordLength = 8

// NormalizeUsername returns the canonical stored form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail returns the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidUsername checks a normalised username against the allowed format.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsValidEmail checks a normalised email address has a plausible shape.
func IsValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email) //nolint:mnd // RFC 5321 path limit
}

// Rank is the privilege level attached to a User.
//
// Exactly one value denotes an administrator. Ranks are compared by equality
// against RankAdmin, never as a threshold.
type Rank int

const (
	// RankStandard is assigned to every new account.
	RankStandard Rank = 0

	// RankAdmin grants access to user administration and the audit trail.
	RankAdmin Rank = 1337
)

// IsAdmin reports whether r is the administrator rank.
func (r Rank) IsAdmin() bool {
	return r == RankAdmin
}

// User is a durable principal owned by the user directory.
//
// ID is generated once at creation and never reused. Username and Email are
// stored lowercase.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Rank         Rank      `json:"rank"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Directory is the read path into durable identity storage consumed by the
// authentication service and the authorisation guard.
//
// Both lookups return ErrUserNotFound when no identity matches. Any other
// error is treated as the directory being unavailable.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}

// PasswordUpdater is implemented by directories that accept a replacement
// hash for an existing identity. Used for transparent rehashing after login.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Sentinel errors for auth operations. Each is a distinct, stable kind;
// callers branch with errors.Is.
var (
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrRefreshTokenMissing   = errors.New("refresh token missing")
	ErrTokenExpired          = errors.New("token has expired")
	ErrInvalidSignature      = errors.New("token signature is invalid")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrSubjectNotFound       = errors.New("token subject no longer exists")
	ErrUnauthenticated       = errors.New("not authenticated")
	ErrInsufficientPrivilege = errors.New("requires admin privilege")
	ErrDirectoryUnavailable  = errors.New("user directory unavailable")

	// ErrUserNotFound is the normal "no such identity" outcome of a
	// Directory lookup.
	ErrUserNotFound = errors.New("user not found")
)
