package auth

import (
	"context"
	"errors"
	"time"
)

// Guard enforces rank policy on privileged operations.
//
// It never trusts the rank embedded in a token: every check re-reads the
// identity from the directory, so a demotion takes effect on the next
// request rather than at token expiry.
type Guard struct {
	directory Directory
	timeout   time.Duration
}

// NewGuard returns a Guard reading from directory. A zero timeout means
// DefaultLookupTimeout.
func NewGuard(directory Directory, timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Guard{directory: directory, timeout: timeout}
}

// RequireRank returns the live identity if its rank equals minimum.
//
// Ranks are matched by equality, not as a threshold.
func (g *Guard) RequireRank(ctx context.Context, identity *User, minimum Rank) (*User, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrUnauthenticated
	}

	live, err := lookupWithTimeout(ctx, g.timeout, func(ctx context.Context) (*User, error) {
		return g.directory.FindByID(ctx, identity.ID)
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	if live.Rank != minimum {
		return nil, ErrInsufficientPrivilege
	}
	return live, nil
}

// RequireAdmin is RequireRank with RankAdmin.
func (g *Guard) RequireAdmin(ctx context.Context, identity *User) (*User, error) {
	return g.RequireRank(ctx, identity, RankAdmin)
}
