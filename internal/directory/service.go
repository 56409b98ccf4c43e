package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
)

// Sentinel errors for directory operations.
var (
	ErrUsernameExists      = errors.New("username already registered")
	ErrEmailExists         = errors.New("email already registered")
	ErrInvalidInput        = errors.New("invalid input")
	ErrOldPasswordRequired = errors.New("old_password is required to change your own password")
	ErrOldPasswordMismatch = errors.New("old_password does not match")
)

// Registration is the input to Register.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Changes is a partial update to an account. Nil fields are left alone.
type Changes struct {
	Username    *string    `json:"username,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Password    *string    `json:"password,omitempty"`
	OldPassword *string    `json:"old_password,omitempty"`
	Rank        *auth.Rank `json:"rank,omitempty"`
}

// Actor is the caller of a mutating operation. Admin must come from a live
// guard check, not from token claims.
type Actor struct {
	ID    string
	Admin bool
}

// Service owns account lifecycle: registration, profile and password
// changes, and deletion.
type Service struct {
	repo   Repository
	hasher *auth.Hasher
	logger *logging.Logger
}

// NewService creates a directory service.
func NewService(repo Repository, hasher *auth.Hasher, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger.With("component", "directory"),
	}
}

// Register creates a standard-rank account.
//
// Username and email are normalised first, so "Alice" and "alice" collide.
func (s *Service) Register(ctx context.Context, reg Registration) (*auth.User, error) {
	username := auth.NormalizeUsername(reg.Username)
	email := auth.NormalizeEmail(reg.Email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(reg.Password); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, "", username, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &auth.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Rank:         auth.RankStandard,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Get returns the account with the given username.
func (s *Service) Get(ctx context.Context, username string) (*auth.User, error) {
	return s.repo.FindByUsername(ctx, auth.NormalizeUsername(username))
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]auth.User, error) {
	return s.repo.List(ctx)
}

// Update applies ch to the account named username.
//
// Callers may change their own account; changing anyone else's requires
// actor.Admin, as does any rank change. Changing your own password requires
// the current one.
func (s *Service) Update(ctx context.Context, actor Actor, username string, ch Changes) (*auth.User, error) {
	target, err := s.repo.FindByUsername(ctx, auth.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	self := target.ID == actor.ID
	if !self && !actor.Admin {
		return nil, auth.ErrInsufficientPrivilege
	}
	if ch.Rank != nil && *ch.Rank != target.Rank && !actor.Admin {
		return nil, auth.ErrInsufficientPrivilege
	}

	updated := *target
	if ch.Username != nil {
		updated.Username = auth.NormalizeUsername(*ch.Username)
		if err := validateUsername(updated.Username); err != nil {
			return nil, err
		}
	}
	if ch.Email != nil {
		updated.Email = auth.NormalizeEmail(*ch.Email)
		if err := validateEmail(updated.Email); err != nil {
			return nil, err
		}
	}
	if ch.Rank != nil {
		updated.Rank = *ch.Rank
	}

	var newHash string
	if ch.Password != nil {
		if err := s.validatePassword(*ch.Password); err != nil {
			return nil, err
		}
		if self {
			if ch.OldPassword == nil || *ch.OldPassword == "" {
				return nil, ErrOldPasswordRequired
			}
			ok, err := s.hasher.Verify(ctx, *ch.OldPassword, target.PasswordHash)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrOldPasswordMismatch
			}
		}
		newHash, err = s.hasher.Hash(ctx, *ch.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
	}

	if err := s.ensureAvailable(ctx, target.ID, changedOrEmpty(updated.Username, target.Username), changedOrEmpty(updated.Email, target.Email)); err != nil {
		return nil, err
	}

	if newHash != "" {
		updated.PasswordHash = newHash
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("user updated",
		"user_id", updated.ID,
		"actor_id", actor.ID,
		"rank_changed", updated.Rank != target.Rank,
		"password_changed", newHash != "",
	)
	return &updated, nil
}

// Delete removes the account named username and returns it.
// Callers may delete their own account; deleting another requires actor.Admin.
func (s *Service) Delete(ctx context.Context, actor Actor, username string) (*auth.User, error) {
	target, err := s.repo.FindByUsername(ctx, auth.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if target.ID != actor.ID && !actor.Admin {
		return nil, auth.ErrInsufficientPrivilege
	}

	if err := s.repo.Delete(ctx, target.ID); err != nil {
		return nil, err
	}

	s.logger.Info("user deleted", "user_id", target.ID, "actor_id", actor.ID)
	return target, nil
}

// ensureAvailable checks username and email are not held by an account
// other than selfID. Empty values are skipped. The UNIQUE constraints still
// back this up against concurrent registrations.
func (s *Service) ensureAvailable(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		u, err := s.repo.FindByUsername(ctx, username)
		switch {
		case err == nil && u.ID != selfID:
			return ErrUsernameExists
		case err != nil && !errors.Is(err, auth.ErrUserNotFound):
			return err
		}
	}
	if email != "" {
		u, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && u.ID != selfID:
			return ErrEmailExists
		case err != nil && !errors.Is(err, auth.ErrUserNotFound):
			return err
		}
	}
	return nil
}

func changedOrEmpty(next, prev string) string {
	if next == prev {
		return ""
	}
	return next
}

func validateUsername(username string) error {
	if !auth.IsValidUsername(username) {
		return fmt.Errorf("%w: username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'", ErrInvalidInput)
	}
	return nil
}

func validateEmail(email string) error {
	if !auth.IsValidEmail(email) {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	return nil
}

// validatePassword also enforces the hasher's input limit, so an overlong
// password is rejected as bad input rather than failing inside Hash.
func (s *Service) validatePassword(password string) error {
	if len(password) < auth.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, auth.MinPasswordLength)
	}
	if limit := s.hasher.MaxPasswordBytes(); limit > 0 && len(password) > limit {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, limit)
	}
	return nil
}
