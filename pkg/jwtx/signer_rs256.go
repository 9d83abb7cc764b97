package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// newRS256Signer loads an RSA private key from PEM. Both PKCS1 and PKCS8
// encodings are accepted since operators import keys from either.
func newRS256Signer(kid string, pemKey []byte) (Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse RSA key: %w", err)
		}
		key = k
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		k, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not RSA private key")
		}
		key = k
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}

	if key.N.BitLen() < cryptox.MinRSABits {
		return nil, fmt.Errorf("jwtx: RSA key too small (%d bits)", key.N.BitLen())
	}

	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodRS256,
		key:    key,
		jwk:    NewRSAJWK(kid, "sig", AlgorithmRS256, &key.PublicKey),
	}, nil
}
