package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// ErrNoCredentials means the request carried neither a bearer token nor an
// API key.
var ErrNoCredentials = errors.New("httpx: no credentials")

// APIKeyHeader is the alternative header for API keys.
const APIKeyHeader = "X-API-Key"

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (jwtx.Claims, error)
}

// APIKeyAuthenticator resolves a raw API key to a principal.
type APIKeyAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, raw string) (Principal, error)
}

// AuthnConfig configures Authn. Either credential source may be nil.
type AuthnConfig struct {
	Tokens  TokenVerifier
	APIKeys APIKeyAuthenticator

	// OnError writes the rejection. Nil writes a bare 401.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Authn authenticates "Authorization: Bearer <jwt>", "Authorization: ApiKey
// <key>" or "X-API-Key: <key>" and stores the Principal in the context.
func Authn(cfg AuthnConfig) Middleware {
	onError := cfg.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeBearerError(w, "authentication failed")
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			p, err := authenticate(ctx, cfg, r)
			if err != nil {
				log.Warn("authentication failed", slog.Any("err", err))
				onError(w, r, err)
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = slogx.WithContext(ctx, log.With(slog.String("principal", p.Subject), slog.String("principal_kind", string(p.Kind))))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg AuthnConfig, r *http.Request) (Principal, error) {
	scheme, cred := splitAuthorization(r.Header.Get("Authorization"))
	if scheme == "" {
		if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
			scheme, cred = "apikey", key
		}
	}

	switch scheme {
	case "bearer":
		if cfg.Tokens == nil {
			return Principal{}, ErrNoCredentials
		}
		claims, err := cfg.Tokens.Verify(cred)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Subject: claims.Subject, Kind: PrincipalToken, Scopes: claims.Scopes}, nil
	case "apikey":
		if cfg.APIKeys == nil {
			return Principal{}, ErrNoCredentials
		}
		return cfg.APIKeys.AuthenticateAPIKey(ctx, cred)
	default:
		return Principal{}, ErrNoCredentials
	}
}

// splitAuthorization returns the lowercased scheme and the credential.
func splitAuthorization(h string) (scheme, cred string) {
	h = strings.TrimSpace(h)
	if h == "" {
		return "", ""
	}
	scheme, cred, ok := strings.Cut(h, " ")
	if !ok {
		return "", ""
	}
	cred = strings.TrimSpace(cred)
	if cred == "" {
		return "", ""
	}
	return strings.ToLower(scheme), cred
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}

// WriteUnauthorized writes the standard 401 for a failed authentication.
func WriteUnauthorized(w http.ResponseWriter, desc string) {
	writeBearerError(w, desc)
}
