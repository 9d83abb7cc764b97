package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// newES256Signer loads a P-256 private key from PKCS8 PEM.
func newES256Signer(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8PEM(pemKey, "ES256")
	if err != nil {
		return nil, err
	}
	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ES256 requires the P-256 curve")
	}

	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodES256,
		key:    key,
		jwk:    NewES256JWK(kid, "sig", AlgorithmES256, &key.PublicKey),
	}, nil
}
