package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/store"
)

var (
	ErrKeyNotFound       = errors.New("api key not found")
	ErrKeyInactive       = errors.New("api key is inactive")
	ErrKeyExpired        = errors.New("api key has expired")
	ErrSecretMismatch    = errors.New("api key secret does not match")
	ErrRateLimitExceeded = errors.New("api key rate limit exceeded")

	// ErrMalformedKey is a presented key that is not ck_<id>.<secret>. It
	// matches ErrKeyNotFound.
	ErrMalformedKey = fmt.Errorf("%w: malformed api key", ErrKeyNotFound)

	ErrPasswordReuse = errors.New("password was used recently")

	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is the retriable infrastructure failure. It is the
	// store's sentinel so errors.Is works across layers.
	ErrUnavailable = store.ErrUnavailable
)

// RateLimitError is returned when a key exceeds its window. It matches
// ErrRateLimitExceeded.
type RateLimitError struct {
	KeyID      string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("api key %s exceeded %d requests per window, retry after %s", e.KeyID, e.Limit, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// withTimeout bounds one store interaction.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// unavailable normalises an infrastructure failure. A deadline hit by the
// store timeout becomes ErrUnavailable; other errors pass through.
func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// DefaultStoreTimeout bounds every store call made by the services.
const DefaultStoreTimeout = 2 * time.Second
