package domain

import (
	"slices"
	"time"
)

// APIKeyPrefix starts every plaintext API key.
const APIKeyPrefix = "ck_"

// APIKey is a stored API key. Only the hash of the secret is kept.
type APIKey struct {
	KeyID       string
	SecretHash  string
	ClientName  string
	Permissions []string
	RateLimit   int // requests per window
	IsActive    bool
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	UsageCount  int64
	RevokedAt   *time.Time
	Metadata    map[string]string

	// Fixed window accounting for the store-backed limiter.
	WindowStart time.Time
	WindowCount int
}

// IsExpired reports whether the key has an expiry at or before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// HasPermission reports whether the key grants perm.
func (k *APIKey) HasPermission(perm string) bool {
	return slices.Contains(k.Permissions, perm)
}

// APIKeyUsage is the outcome of recording one use of an API key.
type APIKeyUsage struct {
	UsageCount  int64
	WindowStart time.Time
	WindowCount int
	RateLimit   int
}
