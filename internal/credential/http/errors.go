package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/pkg/credsdk"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// unavailableRetryAfter is sent with 503 responses.
const unavailableRetryAfter = time.Second

// apiKeyAuthenticator adapts the API key service to httpx.Authn.
type apiKeyAuthenticator struct {
	svc *service.APIKeyService
}

func (a apiKeyAuthenticator) AuthenticateAPIKey(ctx context.Context, raw string) (httpx.Principal, error) {
	key, err := a.svc.Authenticate(ctx, raw)
	if err != nil {
		return httpx.Principal{}, err
	}
	return httpx.Principal{Subject: key.KeyID, Kind: httpx.PrincipalAPIKey, Scopes: key.Permissions}, nil
}

// writeAuthnError distinguishes a caller that should back off (429, 503)
// from one that presented a bad credential (401).
func writeAuthnError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *service.RateLimitError
	switch {
	case errors.As(err, &rl):
		httpx.SetRetryAfter(w, rl.RetryAfter)
		httpx.WriteError(w, http.StatusTooManyRequests, credsdk.ErrorCodeRateLimited, "api key rate limit exceeded")
	case errors.Is(err, service.ErrUnavailable):
		slogx.FromContext(r.Context()).Error("authentication backend unavailable", slog.Any("err", err))
		httpx.SetRetryAfter(w, unavailableRetryAfter)
		httpx.WriteError(w, http.StatusServiceUnavailable, credsdk.ErrorCodeUnavailable, "credential store unavailable")
	case errors.Is(err, jwtx.ErrTokenExpired), errors.Is(err, service.ErrKeyExpired):
		httpx.WriteUnauthorized(w, "credential expired")
	default:
		httpx.WriteUnauthorized(w, "invalid credentials")
	}
}

// writeServiceError maps a service error to a response. Unexpected errors
// are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *service.RateLimitError
	switch {
	case errors.As(err, &rl):
		httpx.SetRetryAfter(w, rl.RetryAfter)
		httpx.WriteError(w, http.StatusTooManyRequests, credsdk.ErrorCodeRateLimited, "rate limit exceeded")
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, jwtx.ErrNoActiveKey):
		slogx.FromContext(r.Context()).Error("store unavailable", slog.Any("err", err))
		httpx.SetRetryAfter(w, unavailableRetryAfter)
		httpx.WriteError(w, http.StatusServiceUnavailable, credsdk.ErrorCodeUnavailable, "credential store unavailable")
	case errors.Is(err, service.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, credsdk.ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrKeyNotFound), errors.Is(err, jwtx.ErrKeyNotFound):
		httpx.WriteError(w, http.StatusNotFound, credsdk.ErrorCodeNotFound, "not found")
	case errors.Is(err, service.ErrPasswordReuse):
		httpx.WriteError(w, http.StatusConflict, credsdk.ErrorCodePasswordReused, "password was used recently")
	case errors.Is(err, jwtx.ErrRotationConflict):
		httpx.SetRetryAfter(w, unavailableRetryAfter)
		httpx.WriteError(w, http.StatusConflict, credsdk.ErrorCodeRotationConflict, "another rotation completed first")
	case errors.Is(err, jwtx.ErrClaimsTooLarge):
		httpx.WriteError(w, http.StatusBadRequest, credsdk.ErrorCodeClaimsTooLarge, "claims exceed the size limit")
	default:
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, credsdk.ErrorCodeServerError, "internal server error")
	}
}

// writeBadRequest reports an undecodable request body.
func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, credsdk.ErrorCodeInvalidRequest, desc)
}
