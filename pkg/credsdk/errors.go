package credsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidToken      = "invalid_token"
	ErrorCodeInsufficientScope = "insufficient_scope"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeRateLimited       = "rate_limit_exceeded"
	ErrorCodeUnavailable       = "temporarily_unavailable"
	ErrorCodeServerError       = "server_error"
	ErrorCodePasswordReused    = "password_reused"
	ErrorCodeClaimsTooLarge    = "claims_too_large"
	ErrorCodeRotationConflict  = "rotation_conflict"

	// Token verification verdicts.
	ErrorCodeTokenUnknownKey       = "unknown_key"
	ErrorCodeTokenSignatureInvalid = "signature_invalid"
	ErrorCodeTokenExpired          = "token_expired"
	ErrorCodeTokenMalformed        = "token_malformed"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode  int
	Code        string
	Description string

	// RetryAfter is parsed from the Retry-After header on 429 and 503.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("credcore: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Retriable reports whether the request may succeed if repeated later.
func (e *APIError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Error
		apiErr.Description = errResp.ErrorDescription
	} else {
		apiErr.Code = ErrorCodeServerError
		apiErr.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
