package domain

import "time"

// PasswordHistoryEntry is one prior password hash for a user.
type PasswordHistoryEntry struct {
	ID           string // ULID, orders entries created in the same millisecond
	UserID       string
	PasswordHash string // argon2id PHC string
	CreatedAt    time.Time
}
