package jwtx_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func headerKid(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var header map[string]any
	require.NoError(t, json.Unmarshal(raw, &header))
	kid, _ := header["kid"].(string)
	return kid
}

func newTestIssuer(t *testing.T, clock *testClock) (*jwtx.Issuer, *jwtx.KeyRing) {
	t.Helper()
	ring := newTestRing(t, jwtx.NewMemoryKeyStore(), clock)
	return jwtx.NewIssuer(ring, jwtx.IssuerOptions{
		Issuer:   "credcore",
		Audience: []string{"api"},
		Now:      clock.Now,
	}), ring
}

func TestIssuer_IssueSetsRegisteredClaims(t *testing.T) {
	clock := newTestClock()
	issuer, ring := newTestIssuer(t, clock)

	token, err := issuer.Issue(jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(100 * time.Hour)), // ignored
		},
		Scopes: []string{"tokens:issue"},
		SID:    "sess-1",
		Extra:  map[string]any{"tenant": "acme"},
	}, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, ring.ActiveKid(), headerKid(t, token))

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "credcore", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"api"}, claims.Audience)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "sess-1", claims.SID)
	require.Equal(t, "acme", claims.Extra["tenant"])
	require.NotEmpty(t, claims.ID)
	require.Equal(t, clock.Now().Unix(), claims.IssuedAt.Unix())
	require.Equal(t, clock.Now().Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestIssuer_UniqueJTI(t *testing.T) {
	clock := newTestClock()
	issuer, _ := newTestIssuer(t, clock)

	seen := map[string]bool{}
	for range 20 {
		token, err := issuer.Issue(jwtx.Claims{}, time.Minute)
		require.NoError(t, err)
		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		require.False(t, seen[claims.ID])
		seen[claims.ID] = true
	}
}

func TestIssuer_ExpiryIsExclusive(t *testing.T) {
	clock := newTestClock()
	issuer, _ := newTestIssuer(t, clock)

	token, err := issuer.Issue(jwtx.Claims{}, 10*time.Minute)
	require.NoError(t, err)

	clock.Advance(10*time.Minute - time.Nanosecond)
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	clock.Advance(time.Nanosecond)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrTokenExpired)

	clock.Advance(time.Hour)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrTokenExpired)
}

func TestIssuer_DefaultTTL(t *testing.T) {
	clock := newTestClock()
	issuer, _ := newTestIssuer(t, clock)

	token, err := issuer.Issue(jwtx.Claims{}, 0)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, jwtx.DefaultAccessTokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestIssuer_ClaimsTooLarge(t *testing.T) {
	clock := newTestClock()
	ring := newTestRing(t, jwtx.NewMemoryKeyStore(), clock)
	issuer := jwtx.NewIssuer(ring, jwtx.IssuerOptions{MaxClaimsBytes: 256, Now: clock.Now})

	_, err := issuer.Issue(jwtx.Claims{Extra: map[string]any{"blob": strings.Repeat("x", 300)}}, time.Minute)
	require.ErrorIs(t, err, jwtx.ErrClaimsTooLarge)

	_, err = issuer.Issue(jwtx.Claims{Extra: map[string]any{"small": "ok"}}, time.Minute)
	require.NoError(t, err)
}

func TestIssuer_VerifyErrors(t *testing.T) {
	clock := newTestClock()
	issuer, ring := newTestIssuer(t, clock)

	good, err := issuer.Issue(jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(good, ".")

	// Token from an unrelated key with a kid we never issued.
	_, foreignKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	foreign := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	})
	foreign.Header["kid"] = "ck-forged"
	forgedUnknown, err := foreign.SignedString(foreignKey)
	require.NoError(t, err)

	// Same foreign key but claiming our active kid.
	foreign.Header["kid"] = ring.ActiveKid()
	forgedKnown, err := foreign.SignedString(foreignKey)
	require.NoError(t, err)

	// HMAC token claiming our kid.
	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	})
	hs.Header["kid"] = ring.ActiveKid()
	hsToken, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)

	// Unsigned token.
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{})
	none.Header["kid"] = ring.ActiveKid()
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	// Missing kid.
	noKid := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{})
	noKidToken, err := noKid.SignedString(foreignKey)
	require.NoError(t, err)

	tamperedPayload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin","exp":9999999999}`))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"unknown kid", forgedUnknown, jwtx.ErrUnknownKey},
		{"missing kid", noKidToken, jwtx.ErrUnknownKey},
		{"wrong key for kid", forgedKnown, jwtx.ErrSignatureInvalid},
		{"algorithm substitution", hsToken, jwtx.ErrSignatureInvalid},
		{"alg none", noneToken, jwtx.ErrSignatureInvalid},
		{"tampered payload", parts[0] + "." + tamperedPayload + "." + parts[2], jwtx.ErrSignatureInvalid},
		{"truncated signature", parts[0] + "." + parts[1] + "." + parts[2][:10], jwtx.ErrSignatureInvalid},
		{"garbage", "not-a-token", jwtx.ErrSignatureInvalid},
		{"empty", "", jwtx.ErrSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			require.ErrorIs(t, err, tt.want)
			// Exactly one category.
			n := 0
			for _, e := range []error{jwtx.ErrUnknownKey, jwtx.ErrSignatureInvalid, jwtx.ErrTokenExpired} {
				if errors.Is(err, e) {
					n++
				}
			}
			require.Equal(t, 1, n)
		})
	}
}

func TestVerifier_RemoteKeySet(t *testing.T) {
	clock := newTestClock()
	issuer, ring := newTestIssuer(t, clock)

	token, err := issuer.Issue(jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "svc"}}, time.Hour)
	require.NoError(t, err)

	// A resource server fetches the JWKS and verifies offline.
	raw, err := json.Marshal(issuer.PublicKeySet())
	require.NoError(t, err)
	var fetched jwtx.JWKS
	require.NoError(t, json.Unmarshal(raw, &fetched))
	ks, err := jwtx.NewKeySet(fetched)
	require.NoError(t, err)

	remote := jwtx.NewVerifier(ks, jwtx.VerifyOptions{Issuer: "credcore", Audience: []string{"api"}, Now: clock.Now})
	claims, err := remote.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "svc", claims.Subject)

	wrongAud := jwtx.NewVerifier(ks, jwtx.VerifyOptions{Audience: []string{"billing"}, Now: clock.Now})
	_, err = wrongAud.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrAudience)
	require.ErrorIs(t, err, jwtx.ErrSignatureInvalid)

	wrongIss := jwtx.NewVerifier(ks, jwtx.VerifyOptions{Issuer: "other", Now: clock.Now})
	_, err = wrongIss.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	// After rotation the stale set reports an unknown key, prompting a refetch.
	_, err = ring.Rotate(t.Context())
	require.NoError(t, err)
	fresh, err := issuer.Issue(jwtx.Claims{}, time.Hour)
	require.NoError(t, err)
	_, err = remote.Verify(fresh)
	require.ErrorIs(t, err, jwtx.ErrUnknownKey)
}
