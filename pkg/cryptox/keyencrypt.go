package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// KeyCipher seals private key material at rest with AES-256-GCM.
// Output layout: [12-byte nonce][ciphertext][16-byte tag].
type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher derives a 32-byte AES key from material with SHA-256.
func NewKeyCipher(material []byte) (*KeyCipher, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty master key material")
	}
	key := sha256.Sum256(material)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &KeyCipher{aead: gcm}, nil
}

// LoadKeyCipher builds a KeyCipher from the first available source: the file
// at path, then envValue. With neither set an ephemeral key is generated and
// ephemeral is reported true; sealed keys then do not survive a restart.
func LoadKeyCipher(path, envValue string) (kc *KeyCipher, ephemeral bool, err error) {
	var material []byte
	switch {
	case path != "":
		material, err = os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("cryptox: read master key file: %w", err)
		}
	case envValue != "":
		material = []byte(envValue)
	default:
		material, err = RandomBytes(32)
		if err != nil {
			return nil, false, err
		}
		ephemeral = true
	}
	kc, err = NewKeyCipher(material)
	return kc, ephemeral, err
}

// Seal encrypts plaintext under a fresh random nonce.
func (k *KeyCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (k *KeyCipher) Open(sealed []byte) ([]byte, error) {
	n := k.aead.NonceSize()
	if len(sealed) < n+k.aead.Overhead() {
		return nil, errors.New("cryptox: ciphertext too short")
	}
	plaintext, err := k.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}
