package domain

import "time"

// SigningKeyStatus is the lifecycle state of a signing key.
type SigningKeyStatus string

const (
	SigningKeyActive   SigningKeyStatus = "active"
	SigningKeyRetiring SigningKeyStatus = "retiring"
	SigningKeyRevoked  SigningKeyStatus = "revoked"
)

// SigningKey is a JWT signing key at rest. The private key PEM is sealed
// with the server key cipher.
type SigningKey struct {
	ID                  string // ULID
	Kid                 string
	Algorithm           string // RS256, ES256 or EdDSA
	PrivateKeyEncrypted []byte
	Status              SigningKeyStatus
	CreatedAt           time.Time
	RetiredAt           *time.Time // set when demoted from active
	RevokedAt           *time.Time
	NotAfter            *time.Time // optional hard expiry
}
