package jwtx

import (
	"errors"
	"fmt"
)

// Verification failures. Verify returns exactly one of ErrUnknownKey,
// ErrSignatureInvalid or ErrTokenExpired so callers can branch; a remote
// verifier should refresh its JWKS once on ErrUnknownKey before rejecting.
var (
	ErrUnknownKey       = errors.New("jwtx: unknown key")
	ErrSignatureInvalid = errors.New("jwtx: signature invalid")
	ErrTokenExpired     = errors.New("jwtx: token expired")

	// Refinements of ErrSignatureInvalid; errors.Is matches both.
	ErrMalformed = fmt.Errorf("%w: malformed token", ErrSignatureInvalid)
	ErrIssuer    = fmt.Errorf("%w: issuer mismatch", ErrSignatureInvalid)
	ErrAudience  = fmt.Errorf("%w: audience mismatch", ErrSignatureInvalid)
)

// Key ring and issuing failures.
var (
	ErrNoActiveKey      = errors.New("jwtx: no active signing key")
	ErrKeyGeneration    = errors.New("jwtx: key generation failed")
	ErrRotationConflict = errors.New("jwtx: concurrent rotation")
	ErrClaimsTooLarge   = errors.New("jwtx: claims too large")
	ErrKeyNotFound      = errors.New("jwtx: signing key not found")
	ErrKeyActive        = errors.New("jwtx: signing key is active")
)
