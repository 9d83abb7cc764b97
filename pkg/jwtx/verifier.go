package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyOptions are the expectations a Verifier enforces beyond the signature.
type VerifyOptions struct {
	// Issuer the token must carry. Empty means "don't care".
	Issuer string

	// Audience values of which the token must contain at least one.
	Audience []string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Verifier checks tokens against a KeySource. It accepts every supported
// algorithm but binds each kid to the algorithm its key was created for.
type Verifier struct {
	keys   KeySource
	opts   VerifyOptions
	parser *jwt.Parser
}

// NewVerifier returns a Verifier resolving keys through keys.
func NewVerifier(keys KeySource, opts VerifyOptions) *Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Verifier{
		keys: keys,
		opts: opts,
		// Time claims are checked below against the injected clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods(SupportedAlgorithms),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Verify returns the token's claims or one of ErrMalformed, ErrUnknownKey,
// ErrSignatureInvalid or a claims validation error, checked in that order.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(tokenStr, &claims, v.keyFunc)
	if err != nil {
		return Claims{}, classify(err)
	}

	if err := claims.ValidateExpiry(v.opts.Now()); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKey)
	}
	vk, err := v.keys.Lookup(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: kid %s", ErrUnknownKey, kid)
	}
	// A token claiming a different algorithm than the key was issued for
	// is never accepted, even if the math would check out.
	if vk.Algorithm != t.Method.Alg() {
		return nil, fmt.Errorf("%w: kid %s is %s, token is %s", ErrSignatureInvalid, kid, vk.Algorithm, t.Method.Alg())
	}
	return vk.Public, nil
}

// classify maps parser errors onto the package's closed error set.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return ErrUnknownKey
	case errors.Is(err, ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		// Bad signature, disallowed alg, wrong key type.
		return ErrSignatureInvalid
	}
}
