package cryptox_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast; production uses DefaultArgon2Params.
var testParams = cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1}

func TestPasswordHasher_Hash(t *testing.T) {
	h := cryptox.NewPasswordHasher("pepper", testParams)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$"))

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6)
			require.NotEmpty(t, parts[4], "salt")
			require.NotEmpty(t, parts[5], "hash")

			require.NoError(t, h.Verify(tt.password, hash))
		})
	}
}

func TestPasswordHasher_UniqueSalts(t *testing.T) {
	h := cryptox.NewPasswordHasher("pepper", testParams)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NoError(t, h.Verify("same", a))
	require.NoError(t, h.Verify("same", b))
}

func TestPasswordHasher_WrongPassword(t *testing.T) {
	h := cryptox.NewPasswordHasher("pepper", testParams)
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong-password", "Correct-Password", "correct-password ", ""} {
		require.ErrorIs(t, h.Verify(wrong, hash), cryptox.ErrPasswordMismatch, wrong)
	}
}

func TestPasswordHasher_PepperMatters(t *testing.T) {
	a := cryptox.NewPasswordHasher("pepper-a", testParams)
	b := cryptox.NewPasswordHasher("pepper-b", testParams)

	hash, err := a.Hash("secret")
	require.NoError(t, err)
	require.ErrorIs(t, b.Verify("secret", hash), cryptox.ErrPasswordMismatch)
}

func TestPasswordHasher_VerifiesOlderParameters(t *testing.T) {
	old := cryptox.NewPasswordHasher("pepper", cryptox.Argon2Params{Memory: 32, Iterations: 2, Parallelism: 1})
	current := cryptox.NewPasswordHasher("pepper", testParams)

	hash, err := old.Hash("secret")
	require.NoError(t, err)
	require.NoError(t, current.Verify("secret", hash))
}

func TestPasswordHasher_InvalidHashFormat(t *testing.T) {
	h := cryptox.NewPasswordHasher("pepper", testParams)

	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"zero parameters", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=64,t=1,p=1$!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$!!!"},
		{"wrong version", "$argon2id$v=18$m=64,t=1,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, h.Verify("x", tt.hash), cryptox.ErrInvalidHash)
		})
	}
}
