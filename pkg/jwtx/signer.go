package jwtx

import (
	"crypto"
	"fmt"
	"slices"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// SupportedAlgorithms lists every algorithm a verifier accepts. Keys of
// different algorithms may coexist in a verification set across rotations.
var SupportedAlgorithms = []string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}

// DefaultRSABits is used when RS256 is selected without an explicit size.
const DefaultRSABits = 3072

// Signer signs claims with one private key identified by its kid.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicKey() crypto.PublicKey
	PublicJWK() JWK
}

// NewSigner parses a PEM private key for alg and returns a Signer bound to kid.
func NewSigner(alg, kid string, pemKey []byte) (Signer, error) {
	if kid == "" {
		return nil, fmt.Errorf("jwtx: empty kid")
	}
	switch alg {
	case AlgorithmRS256:
		return newRS256Signer(kid, pemKey)
	case AlgorithmES256:
		return newES256Signer(kid, pemKey)
	case AlgorithmEdDSA:
		return newEdDSASigner(kid, pemKey)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}

// ValidAlgorithm reports whether alg is one of SupportedAlgorithms.
func ValidAlgorithm(alg string) bool {
	return slices.Contains(SupportedAlgorithms, alg)
}

// GenerateKeyPEM creates a fresh private key for alg as PEM.
func GenerateKeyPEM(alg string, rsaBits int) ([]byte, error) {
	switch alg {
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = DefaultRSABits
		}
		return cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		return cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		return cryptox.GenerateEd25519Key()
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}

// keySigner is the shared Signer implementation; the per-algorithm
// constructors only differ in how they parse and describe the key.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

func (s *keySigner) Alg() string                 { return s.method.Alg() }
func (s *keySigner) KID() string                 { return s.kid }
func (s *keySigner) PublicKey() crypto.PublicKey { return s.key.Public() }
func (s *keySigner) PublicJWK() JWK              { return s.jwk }

// Sign encodes claims as a compact JWS with the kid in the header.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
