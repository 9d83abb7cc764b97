package jwtx

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the lifetime used when a caller does not pick one.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims are the token claims. Registered time claims (iat, exp) and jti are
// always set by the Issuer; everything else is caller supplied.
type Claims struct {
	jwt.RegisteredClaims

	// Scopes granted to the bearer, e.g. "admin:read".
	Scopes []string `json:"scopes,omitempty"`

	// SID ties the token to a caller-managed session.
	SID string `json:"sid,omitempty"`

	// Extra carries caller-defined claims under a single namespace so they
	// can never shadow a registered claim.
	Extra map[string]any `json:"ext,omitempty"`
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	return cryptox.MustGenerateToken(cryptox.TokenSize128)
}

// ValidateIssuer checks the issuer if one is expected.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" || c.Issuer == expected {
		return nil
	}
	return ErrIssuer
}

// ValidateAudience checks that at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry fails with ErrTokenExpired at and after exp. A token without
// exp is treated as expired; the Issuer never produces one.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}
