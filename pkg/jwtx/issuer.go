package jwtx

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultMaxClaimsBytes bounds the encoded claims set.
const DefaultMaxClaimsBytes = 4096

// IssuerOptions configures an Issuer.
type IssuerOptions struct {
	// Issuer is written to "iss" and required on verification.
	Issuer string

	// Audience is written to "aud" when the caller sets none.
	Audience []string

	// MaxClaimsBytes caps the JSON size of the claims. Zero uses the default.
	MaxClaimsBytes int

	// DefaultTTL applies when Issue is called with ttl <= 0.
	DefaultTTL time.Duration

	Now func() time.Time
}

// Issuer mints tokens with the ring's active key and verifies tokens against
// every non-revoked key.
type Issuer struct {
	ring     *KeyRing
	opts     IssuerOptions
	verifier *Verifier
}

// NewIssuer binds an Issuer to ring.
func NewIssuer(ring *KeyRing, opts IssuerOptions) *Issuer {
	if opts.MaxClaimsBytes <= 0 {
		opts.MaxClaimsBytes = DefaultMaxClaimsBytes
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultAccessTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Issuer{
		ring: ring,
		opts: opts,
		verifier: NewVerifier(ring, VerifyOptions{
			Issuer: opts.Issuer,
			Now:    opts.Now,
		}),
	}
}

// Issue stamps iss, iat, exp = iat+ttl and jti onto claims and signs them
// with the active key. The caller's time claims are overwritten.
func (i *Issuer) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.opts.DefaultTTL
	}

	now := i.opts.Now()
	claims.Issuer = i.opts.Issuer
	if len(claims.Audience) == 0 && len(i.opts.Audience) > 0 {
		claims.Audience = jwt.ClaimStrings(i.opts.Audience)
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.NotBefore = nil
	claims.ID = NewJTI()

	encoded, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwtx: encode claims: %w", err)
	}
	if len(encoded) > i.opts.MaxClaimsBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrClaimsTooLarge, len(encoded), i.opts.MaxClaimsBytes)
	}

	token, err := i.ring.Sign(claims)
	if err != nil {
		if errors.Is(err, ErrNoActiveKey) {
			return "", err
		}
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return token, nil
}

// Verify checks token against the ring's verification set.
func (i *Issuer) Verify(token string) (Claims, error) {
	return i.verifier.Verify(token)
}

// PublicKeySet returns the JWKS to publish.
func (i *Issuer) PublicKeySet() JWKS {
	return i.ring.VerificationSet()
}

// Ring returns the underlying key ring.
func (i *Issuer) Ring() *KeyRing {
	return i.ring
}

// DefaultTTL is the lifetime applied when Issue is called with ttl <= 0.
func (i *Issuer) DefaultTTL() time.Duration {
	return i.opts.DefaultTTL
}
