package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
)

// DefaultLookupTimeout bounds a single directory lookup when the caller does
// not configure one.
const DefaultLookupTimeout = 5 * time.Second

// ServiceConfig wires an authentication Service.
type ServiceConfig struct {
	Directory Directory
	Hasher    *Hasher
	Signing   SigningConfig
	Cookie    CookiePolicy

	// LookupTimeout bounds each directory call. Zero means DefaultLookupTimeout.
	LookupTimeout time.Duration

	// Now overrides the clock for issuance and verification. Nil means time.Now.
	Now func() time.Time

	Logger *logging.Logger
}

// Session is the result of a successful login.
type Session struct {
	User          *User
	Access        IssuedToken
	Refresh       IssuedToken
	RefreshCookie *http.Cookie
}

// Service orchestrates login, refresh, logout and identity resolution.
//
// It holds no per-request state: tokens are self-contained, and the
// directory is the only I/O. Directory timeouts surface as
// ErrDirectoryUnavailable, never as ErrInvalidCredentials.
type Service struct {
	directory     Directory
	hasher        *Hasher
	issuer        *Issuer
	verifier      *Verifier
	cookie        CookiePolicy
	lookupTimeout time.Duration
	logger        *logging.Logger

	// dummyHash is verified against when the username is unknown, so both
	// login failure paths cost one hash verification.
	dummyHash string
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Directory == nil {
		return nil, errors.New("auth service requires a directory")
	}
	if cfg.Hasher == nil {
		return nil, errors.New("auth service requires a password hasher")
	}

	codec, err := NewCodec(cfg.Signing.Secret, cfg.Signing.Algorithm, cfg.Now)
	if err != nil {
		return nil, fmt.Errorf("building token codec: %w", err)
	}

	cookie := cfg.Cookie
	if cookie.Name == "" {
		cookie.Name = DefaultRefreshCookieName
	}
	if cookie.Path == "" {
		cookie.Path = DefaultRefreshCookiePath
	}
	cookie.MaxAge = cfg.Signing.RefreshTTL

	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	filler := make([]byte, 16) //nolint:mnd // throwaway plaintext for the dummy hash
	if _, err := rand.Read(filler); err != nil {
		return nil, fmt.Errorf("generating dummy password: %w", err)
	}
	dummy, err := cfg.Hasher.Hash(context.Background(), hex.EncodeToString(filler))
	if err != nil {
		return nil, fmt.Errorf("computing dummy hash: %w", err)
	}

	return &Service{
		directory:     cfg.Directory,
		hasher:        cfg.Hasher,
		issuer:        NewIssuer(codec, cfg.Signing.AccessTTL, cfg.Signing.RefreshTTL),
		verifier:      NewVerifier(codec),
		cookie:        cookie,
		lookupTimeout: timeout,
		logger:        logger.With("component", "auth"),
		dummyHash:     dummy,
	}, nil
}

// Issuer exposes the token issuer.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Verifier exposes the token verifier.
func (s *Service) Verifier() *Verifier { return s.verifier }

// CookiePolicy returns the refresh cookie attributes in force.
func (s *Service) CookiePolicy() CookiePolicy { return s.cookie }

// Login checks credentials and issues an access and refresh token pair.
//
// An unknown username and a wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = NormalizeUsername(username)

	user, err := s.lookup(ctx, func(ctx context.Context) (*User, error) {
		return s.directory.FindByUsername(ctx, username)
	})
	if errors.Is(err, ErrUserNotFound) {
		if _, verr := s.hasher.Verify(ctx, password, s.dummyHash); verr != nil {
			return nil, verr
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	s.maybeRehash(ctx, user, password)

	access, err := s.issuer.IssueAccess(user.ID, user.Rank)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		User:          user,
		Access:        access,
		Refresh:       refresh,
		RefreshCookie: s.cookie.Issue(refresh.Token),
	}, nil
}

// Refresh verifies a refresh token and issues a fresh access token for the
// live identity. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (IssuedToken, *User, error) {
	if refreshToken == "" {
		return IssuedToken{}, nil, ErrRefreshTokenMissing
	}

	claims, err := s.verifier.VerifyRefresh(refreshToken)
	if err != nil {
		return IssuedToken{}, nil, err
	}

	user, err := s.lookup(ctx, func(ctx context.Context) (*User, error) {
		return s.directory.FindByID(ctx, claims.Subject)
	})
	if errors.Is(err, ErrUserNotFound) {
		return IssuedToken{}, nil, ErrSubjectNotFound
	}
	if err != nil {
		return IssuedToken{}, nil, err
	}

	access, err := s.issuer.IssueAccess(user.ID, user.Rank)
	if err != nil {
		return IssuedToken{}, nil, err
	}
	return access, user, nil
}

// CurrentIdentity resolves the live identity behind an access token.
//
// Any verification failure, and a subject that no longer exists, is
// ErrUnauthenticated. The underlying token error stays in the chain so
// callers can still tell an expired token apart.
func (s *Service) CurrentIdentity(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.verifier.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := s.lookup(ctx, func(ctx context.Context) (*User, error) {
		return s.directory.FindByID(ctx, claims.Subject)
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrSubjectNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout returns the cookie that clears the refresh token. It never fails.
func (s *Service) Logout() *http.Cookie {
	return s.cookie.Clear()
}

// lookup runs one directory call under the lookup timeout and normalises
// its error: ErrUserNotFound passes through, anything else becomes
// ErrDirectoryUnavailable.
func (s *Service) lookup(ctx context.Context, find func(context.Context) (*User, error)) (*User, error) {
	return lookupWithTimeout(ctx, s.lookupTimeout, find)
}

func lookupWithTimeout(ctx context.Context, timeout time.Duration, find func(context.Context) (*User, error)) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	user, err := find(ctx)
	switch {
	case err == nil && user != nil:
		return user, nil
	case err == nil, errors.Is(err, ErrUserNotFound):
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
}

// maybeRehash replaces a stored hash made with an outdated algorithm or
// weaker parameters. Failures are logged and otherwise ignored.
func (s *Service) maybeRehash(ctx context.Context, user *User, password string) {
	updater, ok := s.directory.(PasswordUpdater)
	if !ok || !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.logger.Warn("rehash failed", "user_id", user.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	if err := updater.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Warn("storing rehashed password failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.logger.Info("password rehashed", "user_id", user.ID, "algorithm", s.hasher.Algorithm())
}
