// Package ratelimit implements fixed-window request counters.
//
// Both limiters count the request that crosses the limit exactly once and
// stop counting for the rest of the window, so a flood of rejected calls
// cannot push the counter arbitrarily high.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("ratelimit: backend unavailable")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Count     int
	Remaining int
	ResetAt   time.Time

	// Counted is true when this call incremented the counter, which
	// includes the call that first crossed the limit.
	Counted bool
}

// RetryAfter is the time left in the window, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.After(now) {
		return d.ResetAt.Sub(now)
	}
	return 0
}

// Limiter counts hits for key within a fixed window that starts at the
// first hit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Resetter is implemented by limiters that can drop a key's window.
type Resetter interface {
	Reset(ctx context.Context, key string) error
}

func decide(count, limit int, resetAt time.Time, counted bool) Decision {
	return Decision{
		Counted:   counted,
		Allowed:   count <= limit,
		Limit:     limit,
		Count:     count,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
}
