package auth

import "fmt"

// Verifier validates presented tokens.
//
// Every failure is exactly one of ErrTokenExpired, ErrInvalidSignature or
// ErrTokenMalformed. Expiry is the routine case (the client should refresh);
// the other two indicate tampering or misconfiguration.
type Verifier struct {
	codec *Codec
}

// NewVerifier returns a Verifier backed by codec.
func NewVerifier(codec *Codec) *Verifier {
	return &Verifier{codec: codec}
}

// Verify checks signature and expiry and returns the claim set.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	return v.codec.Decode(raw)
}

// VerifyAccess is Verify restricted to access tokens.
func (v *Verifier) VerifyAccess(raw string) (*Claims, error) {
	return v.verifyKind(raw, KindAccess)
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (v *Verifier) VerifyRefresh(raw string) (*Claims, error) {
	return v.verifyKind(raw, KindRefresh)
}

func (v *Verifier) verifyKind(raw string, want TokenKind) (*Claims, error) {
	claims, err := v.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != want {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrTokenMalformed, want, claims.Kind)
	}
	return claims, nil
}
