package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// newEdDSASigner loads an Ed25519 private key from PKCS8 PEM.
func newEdDSASigner(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8PEM(pemKey, "Ed25519")
	if err != nil {
		return nil, err
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not Ed25519 private key")
	}

	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodEdDSA,
		key:    key,
		jwk:    NewEd25519JWK(kid, "sig", AlgorithmEdDSA, key.Public().(ed25519.PublicKey)),
	}, nil
}

func parsePKCS8PEM(pemKey []byte, label string) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("jwtx: invalid PEM for %s key", label)
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (%s requires PKCS8)", block.Type, label)
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	return priv, nil
}
