package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuedToken is a signed token together with its absolute expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// Issuer mints access and refresh tokens with distinct lifetimes.
// Issuance is pure computation: no I/O.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer signing with codec. TTLs are taken as given;
// range checks belong to configuration validation.
func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        codec.now,
	}
}

// AccessTTL returns the access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess mints an access token for subject carrying rank.
func (i *Issuer) IssueAccess(subject string, rank Rank) (IssuedToken, error) {
	return i.issue(subject, &rank, KindAccess, i.accessTTL)
}

// IssueRefresh mints a refresh token for subject. Rank is omitted because
// the refresh path re-reads the identity anyway.
func (i *Issuer) IssueRefresh(subject string) (IssuedToken, error) {
	return i.issue(subject, nil, KindRefresh, i.refreshTTL)
}

func (i *Issuer) issue(subject string, rank *Rank, kind TokenKind, ttl time.Duration) (IssuedToken, error) {
	now := i.now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Rank: rank,
		Kind: kind,
	}

	signed, err := i.codec.Encode(claims)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("issuing %s token: %w", kind, err)
	}

	return IssuedToken{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
		TTL:       ttl,
	}, nil
}
