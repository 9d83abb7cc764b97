package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"64-bit token", cryptox.TokenSize64, 11},
		{"128-bit token", cryptox.TokenSize128, 22},
		{"256-bit token", cryptox.TokenSize256, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := cryptox.GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, a, tt.wantLen)

			b, err := cryptox.GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, a, b)
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := cryptox.GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
	require.Panics(t, func() { cryptox.MustGenerateToken(0) })
}

func TestFingerprintToken(t *testing.T) {
	require.Equal(t, cryptox.FingerprintToken("abc"), cryptox.FingerprintToken("abc"))
	require.NotEqual(t, cryptox.FingerprintToken("abc"), cryptox.FingerprintToken("abd"))
	require.Len(t, cryptox.FingerprintToken("abc"), 43)
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, cryptox.ConstantTimeEqual("abc", "abc"))
	require.False(t, cryptox.ConstantTimeEqual("abc", "abd"))
	require.False(t, cryptox.ConstantTimeEqual("abc", "abcd"))
}

func TestSecretHasher(t *testing.T) {
	h := cryptox.NewSecretHasher("pepper")

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$hmac-sha256$"))
	require.NotContains(t, hash, "s3cret")

	require.NoError(t, h.Verify("s3cret", hash))
	require.Error(t, h.Verify("s3cret!", hash))
	require.Error(t, cryptox.NewSecretHasher("other").Verify("s3cret", hash))

	again, err := h.Hash("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, hash, again, "salt must differ per hash")

	require.ErrorIs(t, h.Verify("s3cret", "garbage"), cryptox.ErrInvalidHash)
	require.ErrorIs(t, h.Verify("s3cret", "$hmac-sha256$c2FsdA$c2hvcnQ"), cryptox.ErrInvalidHash)
}

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = cryptox.LoadOrCreatePepper("")
	require.Error(t, err)
}

func TestLoadOrCreatePepper_ConcurrentFirstStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")

	var wg sync.WaitGroup
	results := make([]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cryptox.LoadOrCreatePepper(path)
		}(i)
	}
	wg.Wait()

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, string(stored), results[i])
	}
}

func TestKeyCipher_RoundTrip(t *testing.T) {
	kc, err := cryptox.NewKeyCipher([]byte("master"))
	require.NoError(t, err)

	pemData, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	sealed, err := kc.Seal(pemData)
	require.NoError(t, err)
	require.NotEqual(t, pemData, sealed)

	again, err := kc.Seal(pemData)
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "nonce must be random")

	opened, err := kc.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, pemData, opened)
}

func TestKeyCipher_Tampering(t *testing.T) {
	kc, err := cryptox.NewKeyCipher([]byte("master"))
	require.NoError(t, err)

	sealed, err := kc.Seal([]byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = kc.Open(sealed)
	require.Error(t, err)

	_, err = kc.Open([]byte("short"))
	require.Error(t, err)

	other, err := cryptox.NewKeyCipher([]byte("other"))
	require.NoError(t, err)
	good, err := kc.Seal([]byte("payload"))
	require.NoError(t, err)
	_, err = other.Open(good)
	require.Error(t, err)

	_, err = cryptox.NewKeyCipher(nil)
	require.Error(t, err)
}

func TestLoadKeyCipher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("file-material"), 0600))

	fromFile, ephemeral, err := cryptox.LoadKeyCipher(path, "ignored")
	require.NoError(t, err)
	require.False(t, ephemeral)

	fromEnv, ephemeral, err := cryptox.LoadKeyCipher("", "file-material")
	require.NoError(t, err)
	require.False(t, ephemeral)

	sealed, err := fromFile.Seal([]byte("x"))
	require.NoError(t, err)
	opened, err := fromEnv.Open(sealed)
	require.NoError(t, err, "same material must derive the same key")
	require.Equal(t, []byte("x"), opened)

	_, ephemeral, err = cryptox.LoadKeyCipher("", "")
	require.NoError(t, err)
	require.True(t, ephemeral)

	_, _, err = cryptox.LoadKeyCipher(filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)
}

func TestGenerateKeys(t *testing.T) {
	t.Run("rsa", func(t *testing.T) {
		pemBytes, err := cryptox.GenerateRSAKey(2048)
		require.NoError(t, err)
		block, _ := pem.Decode(pemBytes)
		require.NotNil(t, block)
		require.Equal(t, "RSA PRIVATE KEY", block.Type)
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		require.NoError(t, err)
		require.Equal(t, 2048, key.N.BitLen())

		_, err = cryptox.GenerateRSAKey(1024)
		require.Error(t, err)
	})

	t.Run("es256", func(t *testing.T) {
		pemBytes, err := cryptox.GenerateES256Key()
		require.NoError(t, err)
		block, _ := pem.Decode(pemBytes)
		require.NotNil(t, block)
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		require.NoError(t, err)
		key, ok := parsed.(*ecdsa.PrivateKey)
		require.True(t, ok)
		require.Equal(t, elliptic.P256(), key.Curve)
	})

	t.Run("ed25519", func(t *testing.T) {
		pemBytes, err := cryptox.GenerateEd25519Key()
		require.NoError(t, err)
		block, _ := pem.Decode(pemBytes)
		require.NotNil(t, block)
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		require.NoError(t, err)
		_, ok := parsed.(ed25519.PrivateKey)
		require.True(t, ok)
	})
}
