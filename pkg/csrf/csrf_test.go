package csrf_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/csrf"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newIssuer(t *testing.T, c *clock) *csrf.Issuer {
	t.Helper()
	iss, err := csrf.New(csrf.Config{Key: testKey, Now: c.Now})
	require.NoError(t, err)
	return iss
}

func request(method, cookie, header string) *http.Request {
	req := httptest.NewRequest(method, "/", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: csrf.DefaultCookieName, Value: cookie})
	}
	if header != "" {
		req.Header.Set(csrf.DefaultHeaderName, header)
	}
	return req
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := csrf.New(csrf.Config{Key: []byte("short")})
	require.Error(t, err)

	iss, err := csrf.New(csrf.Config{Key: testKey})
	require.NoError(t, err)
	require.Equal(t, csrf.DefaultHeaderName, iss.HeaderName())
	require.Equal(t, csrf.DefaultCookieName, iss.CookieName())
}

func TestValidate(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(t, c)

	abc, err := iss.Generate()
	require.NoError(t, err)
	xyz, err := iss.Generate()
	require.NoError(t, err)
	require.NotEqual(t, abc.Value, xyz.Value)

	parts := strings.Split(abc.Value, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA"

	tests := []struct {
		name   string
		cookie string
		header string
		want   error
	}{
		{"matching", abc.Value, abc.Value, nil},
		{"mismatch", abc.Value, xyz.Value, csrf.ErrTokenMismatch},
		{"no cookie", "", abc.Value, csrf.ErrTokenMissing},
		{"no header", abc.Value, "", csrf.ErrTokenMissing},
		{"neither", "", "", csrf.ErrTokenMissing},
		{"forged", "abc", "abc", csrf.ErrTokenInvalid},
		{"bad mac", tampered, tampered, csrf.ErrTokenInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := iss.Validate(request(http.MethodPost, tc.cookie, tc.header))
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidate_Expiry(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(t, c)

	tok, err := iss.Generate()
	require.NoError(t, err)
	require.Equal(t, c.now.Add(csrf.DefaultTTL), tok.ExpiresAt)

	c.now = c.now.Add(csrf.DefaultTTL - time.Second)
	require.NoError(t, iss.Validate(request(http.MethodPost, tok.Value, tok.Value)))

	c.now = tok.ExpiresAt
	err = iss.Validate(request(http.MethodPost, tok.Value, tok.Value))
	require.ErrorIs(t, err, csrf.ErrTokenExpired)
}

func TestValidate_KeyBound(t *testing.T) {
	c := &clock{now: time.Now()}
	iss := newIssuer(t, c)
	other, err := csrf.New(csrf.Config{Key: []byte("another-key-of-sufficient-size!!"), Now: c.Now})
	require.NoError(t, err)

	tok, err := other.Generate()
	require.NoError(t, err)
	err = iss.Validate(request(http.MethodPost, tok.Value, tok.Value))
	require.ErrorIs(t, err, csrf.ErrTokenInvalid)
}

func TestIssueIfAbsent(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(t, c)

	t.Run("sets cookie when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		tok, err := iss.IssueIfAbsent(rec, request(http.MethodGet, "", ""))
		require.NoError(t, err)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, csrf.DefaultCookieName, cookies[0].Name)
		require.Equal(t, tok.Value, cookies[0].Value)
		require.True(t, cookies[0].HttpOnly)
		require.Equal(t, tok.Value, rec.Header().Get(csrf.DefaultHeaderName))
	})

	t.Run("keeps a valid cookie", func(t *testing.T) {
		existing, err := iss.Generate()
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		tok, err := iss.IssueIfAbsent(rec, request(http.MethodGet, existing.Value, ""))
		require.NoError(t, err)
		require.Equal(t, existing.Value, tok.Value)
		require.Empty(t, rec.Result().Cookies())
		require.Equal(t, existing.Value, rec.Header().Get(csrf.DefaultHeaderName))
	})

	t.Run("replaces an expired cookie", func(t *testing.T) {
		existing, err := iss.Generate()
		require.NoError(t, err)
		c.now = c.now.Add(csrf.DefaultTTL)

		rec := httptest.NewRecorder()
		tok, err := iss.IssueIfAbsent(rec, request(http.MethodGet, existing.Value, ""))
		require.NoError(t, err)
		require.NotEqual(t, existing.Value, tok.Value)
		require.Len(t, rec.Result().Cookies(), 1)
	})
}

func TestProtect(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(t, c)

	called := 0
	h := iss.Protect()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusNoContent)
	}))

	// GET hands out a token.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "", ""))
	require.Equal(t, http.StatusNoContent, rec.Code)
	tok := rec.Header().Get(csrf.DefaultHeaderName)
	require.NotEmpty(t, tok)

	// POST echoing it passes.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, tok, tok))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 2, called)

	tests := []struct {
		name   string
		cookie string
		header string
		code   string
	}{
		{"missing header", tok, "", "csrf_token_missing"},
		{"mismatch", tok, tok + "x", "csrf_token_mismatch"},
		{"forged", "abc", "abc", "csrf_token_invalid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, request(http.MethodPost, tc.cookie, tc.header))
			require.Equal(t, http.StatusForbidden, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.code, body["error"])
		})
	}
	require.Equal(t, 2, called)

	c.now = c.now.Add(csrf.DefaultTTL)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodDelete, tok, tok))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "csrf_token_expired")
}
