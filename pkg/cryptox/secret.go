package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const secretSaltLength = 16

// SecretHasher hashes high-entropy machine secrets (API keys). Those do not
// need a memory-hard KDF; a salted HMAC keyed by the server pepper means a
// leaked table is useless without the pepper file.
type SecretHasher struct {
	key []byte
}

// NewSecretHasher returns a hasher keyed by pepper.
func NewSecretHasher(pepper string) *SecretHasher {
	return &SecretHasher{key: []byte(pepper)}
}

// Hash returns "$hmac-sha256$<salt>$<mac>".
func (h *SecretHasher) Hash(secret string) (string, error) {
	salt, err := RandomBytes(secretSaltLength)
	if err != nil {
		return "", err
	}
	mac := h.mac(salt, secret)
	return "$hmac-sha256$" +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(mac), nil
}

// Verify reports whether secret matches encoded in constant time.
func (h *SecretHasher) Verify(secret, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != "" || parts[1] != "hmac-sha256" {
		return ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(expected) != sha256.Size {
		return ErrInvalidHash
	}
	if !hmac.Equal(h.mac(salt, secret), expected) {
		return errors.New("cryptox: secret does not match")
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of data under the hasher's key.
func (h *SecretHasher) Sign(data []byte) []byte {
	m := hmac.New(sha256.New, h.key)
	m.Write(data)
	return m.Sum(nil)
}

func (h *SecretHasher) mac(salt []byte, secret string) []byte {
	m := hmac.New(sha256.New, h.key)
	m.Write(salt)
	m.Write([]byte(secret))
	return m.Sum(nil)
}
