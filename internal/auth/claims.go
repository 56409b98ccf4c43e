package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access tokens from refresh tokens. It travels in
// the "typ" claim so one kind can never stand in for the other.
type TokenKind string

// Token kinds.
const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the signed claim set carried by every token.
//
// Subject is the identity's immutable ID. Rank is copied at issuance and is
// advisory only; authorisation decisions re-read the directory. Refresh
// tokens omit it.
type Claims struct {
	jwt.RegisteredClaims
	Rank *Rank     `json:"rank,omitempty"`
	Kind TokenKind `json:"typ"`
}

// SigningConfig is the process-wide signing material. It is built once at
// startup and never mutated.
type SigningConfig struct {
	Secret     []byte
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// signingMethods lists the symmetric algorithms a Codec accepts.
var signingMethods = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// Codec encodes claim sets into compact signed tokens and decodes them back.
// It is safe for concurrent use.
type Codec struct {
	method jwt.SigningMethod
	key    []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec builds a Codec for one symmetric algorithm and key. now supplies
// the verification clock; nil means time.Now.
func NewCodec(secret []byte, algorithm string, now func() time.Time) (*Codec, error) {
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if len(secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &Codec{
		method: method,
		key:    key,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Encode signs claims.
func (c *Codec) Encode(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode parses and verifies a token string.
//
// It fails with exactly one of ErrTokenExpired, ErrInvalidSignature or
// ErrTokenMalformed. A token whose exp has passed reports ErrTokenExpired
// even when its signature does not verify.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, c.classify(raw, err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrTokenMalformed, claims.Kind)
	}

	return claims, nil
}

// classify maps a jwt parse failure onto the auth error taxonomy.
func (c *Codec) classify(raw string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if c.expiredUnverified(raw) {
			return ErrTokenExpired
		}
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}

// expiredUnverified reads exp without checking the signature.
func (c *Codec) expiredUnverified(raw string) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !c.now().Before(claims.ExpiresAt.Time)
}

// RankValue returns the embedded rank, or RankStandard when absent.
func (c *Claims) RankValue() Rank {
	if c.Rank == nil {
		return RankStandard
	}
	return *c.Rank
}
