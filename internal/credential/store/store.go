package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict reports a lost compare-and-swap or a state that forbids
	// the change.
	ErrConflict = errors.New("store: conflict")

	// ErrUnavailable wraps timeouts and connectivity failures. Callers may
	// retry with backoff.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories are reached through methods so that a Tx
// exposes the same surface bound to the transaction.
type Store interface {
	SigningKeys() SigningKeys
	APIKeys() APIKeys
	PasswordHistory() PasswordHistory

	ApplyMigrations() error

	// WithTx runs fn in a read/write transaction. fn's error rolls back;
	// nil commits.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a Store bound to one transaction. Nested transactions are not
// supported.
type Tx interface {
	SigningKeys() SigningKeys
	APIKeys() APIKeys
	PasswordHistory() PasswordHistory
}

type SigningKeys interface {
	// ListSigningKeys returns keys oldest first. Revoked keys are included
	// only when includeRevoked is set.
	ListSigningKeys(ctx context.Context, includeRevoked bool) ([]domain.SigningKey, error)

	// GetSigningKey fetches a key by kid.
	GetSigningKey(ctx context.Context, kid string) (domain.SigningKey, error)

	// RotateSigningKey demotes the active key (which must be
	// expectedActiveKid, or none when it is empty) and inserts next as
	// active. Must run inside a transaction. Returns ErrConflict when the
	// active key differs.
	RotateSigningKey(ctx context.Context, next domain.SigningKey, expectedActiveKid string, now time.Time) error

	// RevokeSigningKey moves a retiring key to revoked. Revoked keys are
	// left alone. ErrNotFound for unknown kids, ErrConflict for the
	// active key.
	RevokeSigningKey(ctx context.Context, kid string, now time.Time) error
}

type APIKeys interface {
	CreateAPIKey(ctx context.Context, k domain.APIKey) error
	GetAPIKey(ctx context.Context, keyID string) (domain.APIKey, error)

	// ListAPIKeys returns every key, newest first.
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)

	// RecordAPIKeyUse is the single atomic accounting step of a validation.
	// It increments usage_count, sets last_used_at and advances the fixed
	// window, but only while the key is active and the window has not
	// already gone past rate_limit. The request that pushes window_count to
	// rate_limit+1 is counted. Returns ErrConflict when nothing was
	// updated because the key is inactive or over its limit.
	RecordAPIKeyUse(ctx context.Context, keyID string, now time.Time, window time.Duration) (domain.APIKeyUsage, error)

	// IncrementAPIKeyUsage bumps usage_count and last_used_at only. Used
	// when rate accounting lives outside the store.
	IncrementAPIKeyUsage(ctx context.Context, keyID string, now time.Time) (int64, error)

	// RevokeAPIKey deactivates a key. Idempotent; ErrNotFound if absent.
	RevokeAPIKey(ctx context.Context, keyID string, now time.Time) error

	// DeactivateExpiredAPIKeys deactivates active keys whose expiry has
	// passed and returns how many changed.
	DeactivateExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error)

	// DeleteAPIKey physically removes a key. ErrNotFound if absent.
	DeleteAPIKey(ctx context.Context, keyID string) error
}

type PasswordHistory interface {
	// LockPasswordHistory takes the per-user write lock for the rest of the
	// transaction.
	LockPasswordHistory(ctx context.Context, userID string, now time.Time) error

	// ListPasswordHistory returns up to limit entries, newest first.
	ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error)

	InsertPasswordHistory(ctx context.Context, e domain.PasswordHistoryEntry) error

	// PrunePasswordHistory keeps the newest keep entries and deletes the rest.
	PrunePasswordHistory(ctx context.Context, userID string, keep int) (int64, error)

	CountPasswordHistory(ctx context.Context, userID string) (int, error)

	// DeletePasswordHistory drops every entry and the lock row for userID.
	DeletePasswordHistory(ctx context.Context, userID string) error
}
