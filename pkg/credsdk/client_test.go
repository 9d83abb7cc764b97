package credsdk_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/app"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// setupServer runs the full application behind an httptest server.
func setupServer(t *testing.T) (string, *jwtx.Issuer) {
	t.Helper()
	dir := t.TempDir()
	cfg := app.DefaultConfig()
	cfg.DatabaseFile = filepath.Join(dir, "cred.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.MasterKey = "test-master-key"
	cfg.KeyGracePeriod = time.Hour
	cfg.StrictRateLimit = 1000

	application, err := app.NewWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = application.Close()
	})
	return srv.URL, application.Issuer()
}

func mintToken(t *testing.T, issuer *jwtx.Issuer, subject string, scopes ...string) string {
	t.Helper()
	tok, err := issuer.Issue(jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Scopes:           scopes,
	}, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestClient_Health(t *testing.T) {
	baseURL, _ := setupServer(t)
	client := credsdk.NewClient(baseURL)

	live, err := client.Livez(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Nil(t, live.Checks)

	ready, err := client.Readyz(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
	require.Empty(t, ready.Checks.RateLimiter)
}

// TestClient_KeyRotation walks a rotation:
// 1. List the initial key
// 2. Rotate; both keys are published
// 3. A token from the old key still verifies
// 4. Revoke the old key; its tokens report unknown_key
func TestClient_KeyRotation(t *testing.T) {
	baseURL, issuer := setupServer(t)
	admin := credsdk.NewClient(baseURL, credsdk.WithBearerToken(
		mintToken(t, issuer, "ops", "admin:write", "tokens:issue")))

	initial, err := admin.ListKeys(t.Context())
	require.NoError(t, err)
	require.Len(t, initial, 1)
	require.Equal(t, "active", initial[0].Status)
	require.Nil(t, initial[0].RetiredAt)

	oldToken, err := admin.IssueToken(t.Context(), credsdk.IssueTokenRequest{Subject: "user-1", TTLSeconds: 300})
	require.NoError(t, err)

	rotated, err := admin.RotateKey(t.Context())
	require.NoError(t, err)
	require.Equal(t, initial[0].Kid, rotated.PreviousKid)
	t.Logf("rotated %s -> %s", rotated.PreviousKid, rotated.Kid)

	jwks, err := credsdk.NewClient(baseURL).JWKS(t.Context())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{rotated.Kid, rotated.PreviousKid}, jwtx.JWKS(*jwks).Kids())

	verdict, err := admin.VerifyToken(t.Context(), oldToken.AccessToken)
	require.NoError(t, err)
	require.True(t, verdict.Valid)

	swept, err := admin.SweepKeys(t.Context())
	require.NoError(t, err)
	require.Empty(t, swept.Revoked, "grace period has not elapsed")

	require.NoError(t, admin.RevokeKey(t.Context(), rotated.PreviousKid))

	verdict, err = admin.VerifyToken(t.Context(), oldToken.AccessToken)
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, credsdk.ErrorCodeTokenUnknownKey, verdict.Error)

	err = admin.RevokeKey(t.Context(), "does-not-exist")
	require.True(t, credsdk.IsCode(err, credsdk.ErrorCodeNotFound), "got %v", err)
}

func TestClient_ScopeEnforcement(t *testing.T) {
	baseURL, issuer := setupServer(t)

	anonymous := credsdk.NewClient(baseURL)
	_, err := anonymous.ListKeys(t.Context())
	require.True(t, credsdk.IsCode(err, credsdk.ErrorCodeInvalidToken), "got %v", err)

	reader := credsdk.NewClient(baseURL, credsdk.WithBearerToken(mintToken(t, issuer, "viewer", "admin:read")))
	_, err = reader.ListKeys(t.Context())
	require.NoError(t, err)
	_, err = reader.RotateKey(t.Context())
	require.True(t, credsdk.IsCode(err, credsdk.ErrorCodeInsufficientScope), "got %v", err)
}

// TestClient_APIKeyLifecycle issues a key, uses it until rate limited,
// revokes and purges it.
func TestClient_APIKeyLifecycle(t *testing.T) {
	baseURL, issuer := setupServer(t)
	admin := credsdk.NewClient(baseURL, credsdk.WithBearerToken(mintToken(t, issuer, "ops", "admin:write")))

	issued, err := admin.IssueAPIKey(t.Context(), credsdk.IssueAPIKeyRequest{
		ClientName:  "reporting",
		Permissions: []string{"tokens:issue"},
		RateLimit:   3,
		Metadata:    map[string]string{"team": "data"},
	})
	require.NoError(t, err)
	require.Contains(t, issued.Key, issued.APIKey.KeyID)
	require.Equal(t, "data", issued.APIKey.Metadata["team"])

	svc := credsdk.NewClient(baseURL, credsdk.WithAPIKey(issued.Key))
	self, err := svc.APIKeySelf(t.Context())
	require.NoError(t, err)
	require.Equal(t, issued.APIKey.KeyID, self.KeyID)
	require.Equal(t, "reporting", self.ClientName)

	tok, err := svc.IssueToken(t.Context(), credsdk.IssueTokenRequest{Subject: "job-7"})
	require.NoError(t, err)
	require.Equal(t, int(jwtx.DefaultAccessTokenTTL/time.Second), tok.ExpiresIn)

	_, err = svc.APIKeySelf(t.Context())
	require.NoError(t, err)

	_, err = svc.APIKeySelf(t.Context())
	var apiErr *credsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.True(t, apiErr.Retriable())
	require.Positive(t, apiErr.RetryAfter)

	keys, err := admin.ListAPIKeys(t.Context())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, int64(4), keys[0].UsageCount)
	require.NotNil(t, keys[0].LastUsedAt)

	require.NoError(t, admin.RevokeAPIKey(t.Context(), issued.APIKey.KeyID))
	require.NoError(t, admin.RevokeAPIKey(t.Context(), issued.APIKey.KeyID))
	_, err = svc.APIKeySelf(t.Context())
	require.True(t, credsdk.IsCode(err, credsdk.ErrorCodeInvalidToken), "got %v", err)

	require.NoError(t, admin.PurgeAPIKey(t.Context(), issued.APIKey.KeyID))
	err = admin.PurgeAPIKey(t.Context(), issued.APIKey.KeyID)
	require.True(t, credsdk.IsCode(err, credsdk.ErrorCodeNotFound), "got %v", err)
}

func TestClient_PasswordHistory(t *testing.T) {
	baseURL, issuer := setupServer(t)
	client := credsdk.NewClient(baseURL, credsdk.WithBearerToken(mintToken(t, issuer, "accounts", "passwords:write")))

	for _, pw := range []string{"first-pass", "second-pass", "third-pass"} {
		require.NoError(t, client.RecordPassword(t.Context(), "user-42", pw))
	}

	err := client.RecordPassword(t.Context(), "user-42", "first-pass")
	require.True(t, credsdk.IsCode(err, credsdk.ErrorCodePasswordReused), "got %v", err)

	require.NoError(t, client.RecordPassword(t.Context(), "user-43", "first-pass"))

	require.NoError(t, client.ForgetPasswords(t.Context(), "user-42"))
	require.NoError(t, client.RecordPassword(t.Context(), "user-42", "first-pass"))
}

func TestClient_CSRF(t *testing.T) {
	baseURL, _ := setupServer(t)

	tok, err := credsdk.NewClient(baseURL).CSRF(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	require.Equal(t, "X-CSRF-Token", tok.HeaderName)
	require.NotNil(t, tok.Cookie)
	require.True(t, tok.Cookie.HttpOnly)
	require.True(t, tok.ExpiresAt.After(time.Now()))
}
