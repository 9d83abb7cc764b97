package csrf

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// ErrorCode maps a validation error to the wire error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "csrf_token_missing"
	case errors.Is(err, ErrTokenMismatch):
		return "csrf_token_mismatch"
	case errors.Is(err, ErrTokenExpired):
		return "csrf_token_expired"
	default:
		return "csrf_token_invalid"
	}
}

// Protect issues tokens on safe methods and validates them on everything
// else. Rejections are 403 with a JSON error body.
func (i *Issuer) Protect() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := i.IssueIfAbsent(w, r); err != nil {
					slogx.FromContext(r.Context()).Error("csrf token issue failed", slog.Any("err", err))
					httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue csrf token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := i.Validate(r); err != nil {
				slogx.FromContext(r.Context()).Warn("csrf validation failed",
					slog.String("reason", ErrorCode(err)),
					slog.String("path", r.URL.Path))
				httpx.WriteError(w, http.StatusForbidden, ErrorCode(err), err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
