package credsdk

import (
	"time"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Database    string `json:"database"`
	Signer      string `json:"signer"`
	RateLimiter string `json:"rate_limiter,omitempty"`
}

// JWKSResponse is the published verification key set.
type JWKSResponse jwtx.JWKS

// CSRFResponse carries the double-submit token. The same value is set in
// the cookie named by the server.
type CSRFResponse struct {
	Token      string    `json:"token"`
	HeaderName string    `json:"header_name"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ============================================================================
// Signing keys
// ============================================================================

// SigningKeyInfo describes one signing key. Private material is never sent.
type SigningKeyInfo struct {
	Kid       string     `json:"kid"`
	Algorithm string     `json:"alg"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
}

// RotateKeyResponse reports a rotation.
type RotateKeyResponse struct {
	Kid         string `json:"kid"`
	PreviousKid string `json:"previous_kid,omitempty"`
	Algorithm   string `json:"alg"`
}

// SweepKeysResponse lists the kids revoked by a sweep.
type SweepKeysResponse struct {
	Revoked []string `json:"revoked"`
}

// ============================================================================
// Tokens
// ============================================================================

// IssueTokenRequest asks the server to mint a JWT.
type IssueTokenRequest struct {
	Subject    string         `json:"sub"`
	Audience   []string       `json:"aud,omitempty"`
	Scopes     []string       `json:"scopes,omitempty"`
	SessionID  string         `json:"sid,omitempty"`
	TTLSeconds int            `json:"ttl_seconds,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// TokenResponse carries a minted JWT.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// VerifyTokenRequest asks the server to verify a JWT.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse is the verdict. Error is one of the ErrorCodeToken*
// codes when Valid is false.
type VerifyTokenResponse struct {
	Valid  bool         `json:"valid"`
	Error  string       `json:"error,omitempty"`
	Claims *TokenClaims `json:"claims,omitempty"`
}

// TokenClaims is the decoded claim set of a verified token.
type TokenClaims struct {
	Subject   string         `json:"sub,omitempty"`
	Issuer    string         `json:"iss,omitempty"`
	Audience  []string       `json:"aud,omitempty"`
	IssuedAt  int64          `json:"iat,omitempty"`
	ExpiresAt int64          `json:"exp,omitempty"`
	ID        string         `json:"jti,omitempty"`
	Scopes    []string       `json:"scopes,omitempty"`
	SessionID string         `json:"sid,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// ============================================================================
// API keys
// ============================================================================

// IssueAPIKeyRequest describes a new API key.
type IssueAPIKeyRequest struct {
	ClientName  string            `json:"client_name"`
	Permissions []string          `json:"permissions,omitempty"`
	RateLimit   int               `json:"rate_limit,omitempty"`
	TTLSeconds  int               `json:"ttl_seconds,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IssueAPIKeyResponse carries the plaintext key. It is shown only once.
type IssueAPIKeyResponse struct {
	Key    string     `json:"key"`
	APIKey APIKeyInfo `json:"api_key"`
}

// APIKeyInfo describes a stored key. The secret is never returned.
type APIKeyInfo struct {
	KeyID       string            `json:"key_id"`
	ClientName  string            `json:"client_name"`
	Permissions []string          `json:"permissions"`
	RateLimit   int               `json:"rate_limit"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time        `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time        `json:"revoked_at,omitempty"`
	UsageCount  int64             `json:"usage_count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// APIKeySelfResponse identifies the API key making the request.
type APIKeySelfResponse struct {
	KeyID       string   `json:"key_id"`
	ClientName  string   `json:"client_name"`
	Permissions []string `json:"permissions"`
}

// ============================================================================
// Password history
// ============================================================================

// PasswordHistoryRequest submits a new password for the reuse check.
type PasswordHistoryRequest struct {
	Password string `json:"password"`
}
