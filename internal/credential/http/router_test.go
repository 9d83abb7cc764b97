package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	credhttp "github.com/aussiebroadwan/credcore/internal/credential/http"
	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/internal/credential/store/drivers/sqlite"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/aussiebroadwan/credcore/pkg/csrf"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *credhttp.Router
	issuer *jwtx.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "cred.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	kc, err := cryptox.NewKeyCipher([]byte("test-master-key"))
	require.NoError(t, err)
	ring, err := jwtx.NewKeyRing(ctx, jwtx.KeyRingOptions{
		Store:       store.NewKeyStoreAdapter(s),
		Sealer:      kc,
		Algorithm:   jwtx.AlgorithmEdDSA,
		GracePeriod: time.Hour,
	})
	require.NoError(t, err)
	issuer := jwtx.NewIssuer(ring, jwtx.IssuerOptions{Issuer: "credcore-test"})

	csrfIssuer, err := csrf.New(csrf.Config{Key: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	generous := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	router := credhttp.NewRouter(credhttp.Config{
		Issuer:  issuer,
		Keys:    service.NewKeyRotationService(ring, 0),
		APIKeys: service.NewAPIKeyService(s, cryptox.NewSecretHasher("test-pepper"), service.APIKeyConfig{}),
		Passwords: service.NewPasswordHistoryService(s,
			cryptox.NewPasswordHasher("test-pepper", cryptox.Argon2Params{Memory: 1024, Iterations: 1}),
			service.PasswordHistoryConfig{Depth: 3}),
		CSRF:        csrfIssuer,
		Store:       s,
		Version:     "test",
		PublicLimit: generous,
		StrictLimit: generous,
	})
	return &testEnv{router: router, issuer: issuer}
}

func (e *testEnv) token(t *testing.T, scopes ...string) string {
	t.Helper()
	tok, err := e.issuer.Issue(jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "tester"},
		Scopes:           scopes,
	}, time.Hour)
	require.NoError(t, err)
	return tok
}

type request struct {
	method, path string
	body         any
	header       http.Header
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(req.body))
	}
	r := httptest.NewRequest(req.method, req.path, &buf)
	for k, vs := range req.header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, request{method: http.MethodGet, path: "/livez"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decode[credsdk.HealthResponse](t, w).Status)

	w = env.do(t, request{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[credsdk.HealthResponse](t, w)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
}

func TestRouter_Authorization(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"garbage bearer", bearer("not-a-jwt"), http.StatusUnauthorized},
		{"bad api key", http.Header{"X-Api-Key": {"ck_missing.secret"}}, http.StatusUnauthorized},
		{"missing scope", bearer(env.token(t, credhttp.ScopeAdminRead)), http.StatusForbidden},
		{"admin", bearer(env.token(t, credhttp.ScopeAdminWrite)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/v1/keys/rotate", header: tt.header})
			require.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRouter_KeyRotation(t *testing.T) {
	env := newTestEnv(t)
	admin := bearer(env.token(t, credhttp.ScopeAdminWrite))

	before := decode[credsdk.JWKSResponse](t, env.do(t, request{method: http.MethodGet, path: "/.well-known/jwks.json"}))
	require.Len(t, before.Keys, 1)

	w := env.do(t, request{method: http.MethodPost, path: "/v1/keys/rotate", header: admin})
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decode[credsdk.RotateKeyResponse](t, w)
	require.Equal(t, before.Keys[0].Kid, rotated.PreviousKid)

	after := decode[credsdk.JWKSResponse](t, env.do(t, request{method: http.MethodGet, path: "/.well-known/jwks.json"}))
	require.ElementsMatch(t, []string{rotated.Kid, rotated.PreviousKid}, jwtx.JWKS(after).Kids())

	w = env.do(t, request{method: http.MethodGet, path: "/v1/keys", header: admin})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]credsdk.SigningKeyInfo](t, w), 2)

	w = env.do(t, request{method: http.MethodPost, path: "/v1/keys/unknown/revoke", header: admin})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, credsdk.ErrorCodeNotFound, decode[credsdk.ErrorResponse](t, w).Error)

	w = env.do(t, request{method: http.MethodPost, path: "/v1/keys/" + rotated.PreviousKid + "/revoke", header: admin})
	require.Equal(t, http.StatusNoContent, w.Code)

	after = decode[credsdk.JWKSResponse](t, env.do(t, request{method: http.MethodGet, path: "/.well-known/jwks.json"}))
	require.Equal(t, []string{rotated.Kid}, jwtx.JWKS(after).Kids())
}

func TestRouter_IssueAndVerifyToken(t *testing.T) {
	env := newTestEnv(t)
	issuerHdr := bearer(env.token(t, credhttp.ScopeTokensIssue))

	w := env.do(t, request{method: http.MethodPost, path: "/v1/tokens", header: issuerHdr, body: credsdk.IssueTokenRequest{
		Subject:    "user-1",
		Scopes:     []string{"read"},
		SessionID:  "s1",
		TTLSeconds: 60,
		Extra:      map[string]any{"tenant": "t1"},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issued := decode[credsdk.TokenResponse](t, w)
	require.Equal(t, "Bearer", issued.TokenType)
	require.Equal(t, 60, issued.ExpiresIn)

	w = env.do(t, request{method: http.MethodPost, path: "/v1/tokens/verify", header: issuerHdr,
		body: credsdk.VerifyTokenRequest{Token: issued.AccessToken}})
	require.Equal(t, http.StatusOK, w.Code)
	verdict := decode[credsdk.VerifyTokenResponse](t, w)
	require.True(t, verdict.Valid)
	require.Equal(t, "user-1", verdict.Claims.Subject)
	require.Equal(t, "credcore-test", verdict.Claims.Issuer)
	require.Equal(t, "s1", verdict.Claims.SessionID)
	require.Equal(t, "t1", verdict.Claims.Extra["tenant"])

	tampered := issued.AccessToken[:len(issued.AccessToken)-2] + "AA"
	if tampered == issued.AccessToken {
		tampered = issued.AccessToken[:len(issued.AccessToken)-2] + "BB"
	}
	verdicts := []struct {
		name  string
		token string
		want  string
	}{
		{"tampered signature", tampered, credsdk.ErrorCodeTokenSignatureInvalid},
		{"malformed", "a.b", credsdk.ErrorCodeTokenMalformed},
	}
	for _, tt := range verdicts {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/v1/tokens/verify", header: issuerHdr,
				body: credsdk.VerifyTokenRequest{Token: tt.token}})
			require.Equal(t, http.StatusOK, w.Code)
			v := decode[credsdk.VerifyTokenResponse](t, w)
			require.False(t, v.Valid)
			require.Equal(t, tt.want, v.Error)
		})
	}

	invalid := []struct {
		name string
		req  credsdk.IssueTokenRequest
	}{
		{"missing subject", credsdk.IssueTokenRequest{}},
		{"negative ttl", credsdk.IssueTokenRequest{Subject: "u", TTLSeconds: -1}},
		{"ttl above cap", credsdk.IssueTokenRequest{Subject: "u", TTLSeconds: int((48 * time.Hour).Seconds())}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodPost, path: "/v1/tokens", header: issuerHdr, body: tt.req})
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRouter_APIKeys(t *testing.T) {
	env := newTestEnv(t)
	admin := bearer(env.token(t, credhttp.ScopeAdminWrite))

	w := env.do(t, request{method: http.MethodPost, path: "/v1/apikeys", header: admin, body: credsdk.IssueAPIKeyRequest{
		ClientName:  "billing",
		Permissions: []string{credhttp.ScopeTokensIssue},
		RateLimit:   2,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issued := decode[credsdk.IssueAPIKeyResponse](t, w)
	require.NotEmpty(t, issued.Key)
	keyHdr := http.Header{"X-Api-Key": {issued.Key}}

	w = env.do(t, request{method: http.MethodGet, path: "/v1/apikeys/self", header: keyHdr})
	require.Equal(t, http.StatusOK, w.Code)
	self := decode[credsdk.APIKeySelfResponse](t, w)
	require.Equal(t, issued.APIKey.KeyID, self.KeyID)
	require.Equal(t, []string{credhttp.ScopeTokensIssue}, self.Permissions)

	// API keys carry their permissions as scopes.
	w = env.do(t, request{method: http.MethodPost, path: "/v1/tokens",
		header: http.Header{"Authorization": {"ApiKey " + issued.Key}},
		body:   credsdk.IssueTokenRequest{Subject: "svc"}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, request{method: http.MethodGet, path: "/v1/apikeys/self", header: keyHdr})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
	require.Equal(t, credsdk.ErrorCodeRateLimited, decode[credsdk.ErrorResponse](t, w).Error)

	// Bearer principals are not API keys.
	w = env.do(t, request{method: http.MethodGet, path: "/v1/apikeys/self", header: admin})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, request{method: http.MethodGet, path: "/v1/apikeys", header: admin})
	require.Equal(t, http.StatusOK, w.Code)
	keys := decode[[]credsdk.APIKeyInfo](t, w)
	require.Len(t, keys, 1)
	require.Equal(t, int64(3), keys[0].UsageCount)

	w = env.do(t, request{method: http.MethodPost, path: "/v1/apikeys/" + issued.APIKey.KeyID + "/revoke", header: admin})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, request{method: http.MethodGet, path: "/v1/apikeys/self", header: keyHdr})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, request{method: http.MethodDelete, path: "/v1/apikeys/" + issued.APIKey.KeyID, header: admin})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, request{method: http.MethodDelete, path: "/v1/apikeys/" + issued.APIKey.KeyID, header: admin})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, request{method: http.MethodPost, path: "/v1/apikeys", header: admin, body: credsdk.IssueAPIKeyRequest{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_PasswordHistory(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, credhttp.ScopePasswordsWrite)
	path := "/v1/users/u1/password-history"

	// Without the double-submit token the write is refused.
	w := env.do(t, request{method: http.MethodPost, path: path, header: bearer(tok),
		body: credsdk.PasswordHistoryRequest{Password: "hunter2"}})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "csrf_token_missing", decode[credsdk.ErrorResponse](t, w).Error)

	w = env.do(t, request{method: http.MethodGet, path: "/v1/csrf"})
	require.Equal(t, http.StatusOK, w.Code)
	csrfResp := decode[credsdk.CSRFResponse](t, w)
	require.Equal(t, csrf.DefaultHeaderName, csrfResp.HeaderName)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, csrfResp.Token, cookies[0].Value)

	withCSRF := bearer(tok)
	withCSRF.Set(csrfResp.HeaderName, csrfResp.Token)
	withCSRF.Set("Cookie", (&http.Cookie{Name: cookies[0].Name, Value: cookies[0].Value}).String())

	w = env.do(t, request{method: http.MethodPost, path: path, header: withCSRF,
		body: credsdk.PasswordHistoryRequest{Password: "hunter2"}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, request{method: http.MethodPost, path: path, header: withCSRF,
		body: credsdk.PasswordHistoryRequest{Password: "hunter2"}})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, credsdk.ErrorCodePasswordReused, decode[credsdk.ErrorResponse](t, w).Error)

	w = env.do(t, request{method: http.MethodPost, path: path, header: withCSRF,
		body: credsdk.PasswordHistoryRequest{}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, request{method: http.MethodDelete, path: path, header: bearer(tok)})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, request{method: http.MethodPost, path: path, header: withCSRF,
		body: credsdk.PasswordHistoryRequest{Password: "hunter2"}})
	require.Equal(t, http.StatusNoContent, w.Code)
}
