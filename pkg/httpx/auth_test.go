package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]jwtx.Claims

func (f fakeVerifier) Verify(token string) (jwtx.Claims, error) {
	c, ok := f[token]
	if !ok {
		return jwtx.Claims{}, jwtx.ErrSignatureInvalid
	}
	return c, nil
}

type fakeKeys map[string][]string

func (f fakeKeys) AuthenticateAPIKey(_ context.Context, raw string) (httpx.Principal, error) {
	perms, ok := f[raw]
	if !ok {
		return httpx.Principal{}, errors.New("bad key")
	}
	return httpx.Principal{Subject: "key-" + raw, Kind: httpx.PrincipalAPIKey, Scopes: perms}, nil
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := httpx.PrincipalFrom(r.Context())
		httpx.WriteJSON(w, http.StatusOK, p)
	})
}

func TestAuthn(t *testing.T) {
	cfg := httpx.AuthnConfig{
		Tokens: fakeVerifier{
			"good": {RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}, Scopes: []string{"admin:read"}},
		},
		APIKeys: fakeKeys{"ck_a.b": {"passwords:write"}},
	}
	h := httpx.Authn(cfg)(echoPrincipal())

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		subject string
		kind    httpx.PrincipalKind
	}{
		{"bearer", map[string]string{"Authorization": "Bearer good"}, http.StatusOK, "alice", httpx.PrincipalToken},
		{"bearer lowercase scheme", map[string]string{"Authorization": "bearer good"}, http.StatusOK, "alice", httpx.PrincipalToken},
		{"bad bearer", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "", ""},
		{"apikey scheme", map[string]string{"Authorization": "ApiKey ck_a.b"}, http.StatusOK, "key-ck_a.b", httpx.PrincipalAPIKey},
		{"apikey header", map[string]string{"X-API-Key": "ck_a.b"}, http.StatusOK, "key-ck_a.b", httpx.PrincipalAPIKey},
		{"bad apikey", map[string]string{"X-API-Key": "ck_x.y"}, http.StatusUnauthorized, "", ""},
		{"none", nil, http.StatusUnauthorized, "", ""},
		{"basic", map[string]string{"Authorization": "Basic Zm9vOmJhcg=="}, http.StatusUnauthorized, "", ""},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
				return
			}
			var p httpx.Principal
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			require.Equal(t, tc.subject, p.Subject)
			require.Equal(t, tc.kind, p.Kind)
		})
	}
}

func TestAuthn_CustomError(t *testing.T) {
	var got error
	h := httpx.Authn(httpx.AuthnConfig{
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		},
	})(echoPrincipal())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.ErrorIs(t, got, httpx.ErrNoCredentials)
}

func TestScopes(t *testing.T) {
	with := func(scopes ...string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(httpx.WithPrincipal(req.Context(), httpx.Principal{Subject: "s", Kind: httpx.PrincipalToken, Scopes: scopes}))
	}

	tests := []struct {
		name   string
		mw     httpx.Middleware
		req    *http.Request
		status int
	}{
		{"any match", httpx.RequireAnyScope("a", "b"), with("b"), http.StatusOK},
		{"any miss", httpx.RequireAnyScope("a", "b"), with("c"), http.StatusForbidden},
		{"any anonymous", httpx.RequireAnyScope("a"), httptest.NewRequest(http.MethodGet, "/", nil), http.StatusForbidden},
		{"all match", httpx.RequireAllScopes("a", "b"), with("a", "b", "c"), http.StatusOK},
		{"all partial", httpx.RequireAllScopes("a", "b"), with("a"), http.StatusForbidden},
		{"kind match", httpx.RequireKind(httpx.PrincipalToken), with(), http.StatusOK},
		{"kind miss", httpx.RequireKind(httpx.PrincipalAPIKey), with(), http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.mw(okHandler).ServeHTTP(rec, tc.req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestChainOrderAndRecover(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	rec := httptest.NewRecorder()
	httpx.Chain(okHandler, mark("outer"), mark("inner")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)

	var recovered any
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec = httptest.NewRecorder()
	httpx.Recover(func(_ *http.Request, v any) { recovered = v })(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "boom", recovered)
}

func TestSetRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.SetRetryAfter(rec, 1500*time.Millisecond)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	httpx.SetRetryAfter(rec, 0)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}
