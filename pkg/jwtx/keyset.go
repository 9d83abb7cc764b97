package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// KeySource resolves a kid to a verification key. KeyRing implements it for
// the issuing side; KeySet implements it for remote verifiers holding a
// fetched JWKS.
type KeySource interface {
	Lookup(kid string) (VerificationKey, error)
}

// VerificationKey is a public key plus the algorithm it is allowed to verify.
type VerificationKey struct {
	Kid       string
	Algorithm string
	Public    crypto.PublicKey
}

// KeySet is an immutable set of public keys parsed from a JWKS.
type KeySet struct {
	jwks JWKS
	keys map[string]VerificationKey
}

// NewKeySet parses every key in jwks. Keys without a kid are rejected.
func NewKeySet(jwks JWKS) (*KeySet, error) {
	ks := &KeySet{keys: make(map[string]VerificationKey, len(jwks.Keys))}
	for _, j := range jwks.Keys {
		if j.Kid == "" {
			return nil, errors.New("jwtx: JWK without kid")
		}
		pub, err := parseJWKToKey(j)
		if err != nil {
			return nil, fmt.Errorf("jwtx: kid %s: %w", j.Kid, err)
		}
		ks.keys[j.Kid] = VerificationKey{Kid: j.Kid, Algorithm: j.Alg, Public: pub}
		ks.jwks.Keys = append(ks.jwks.Keys, j)
	}
	return ks, nil
}

// Lookup implements KeySource.
func (k *KeySet) Lookup(kid string) (VerificationKey, error) {
	vk, ok := k.keys[kid]
	if !ok {
		return VerificationKey{}, ErrUnknownKey
	}
	return vk, nil
}

// JWKS returns a copy of the published set.
func (k *KeySet) JWKS() JWKS {
	out := JWKS{Keys: make([]JWK, len(k.jwks.Keys))}
	copy(out.Keys, k.jwks.Keys)
	return out
}

// Len returns the number of keys.
func (k *KeySet) Len() int { return len(k.keys) }

// parseJWKToKey converts a JWK into a crypto public key.
// Supports RSA, Ed25519 (OKP) and P-256 (EC).
func parseJWKToKey(j JWK) (crypto.PublicKey, error) {
	switch j.Kty {
	case "RSA":
		nb, err := base64.RawURLEncoding.DecodeString(j.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(j.E)
		if err != nil {
			return nil, err
		}
		e := new(big.Int).SetBytes(eb)
		if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
			return nil, errors.New("jwtx: invalid RSA exponent")
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		yb, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}
