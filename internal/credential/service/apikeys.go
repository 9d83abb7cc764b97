package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/aussiebroadwan/credcore/pkg/ratelimit"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

const (
	DefaultAPIKeyRateLimit = 1000
	DefaultRateWindow      = time.Minute

	maxClientNameLength = 128
	maxPermissions      = 64
)

// APIKeyConfig configures an APIKeyService.
type APIKeyConfig struct {
	// DefaultRateLimit applies when an issue request leaves RateLimit at 0.
	DefaultRateLimit int
	Window           time.Duration
	StoreTimeout     time.Duration

	// Limiter moves window accounting out of the store, typically to a
	// Redis limiter shared by every instance. Usage counters stay in the
	// store. Nil uses the store's conditional update.
	Limiter ratelimit.Limiter

	Now func() time.Time
}

// APIKeyService issues, validates and revokes API keys.
type APIKeyService struct {
	store  store.Store
	hasher *cryptox.SecretHasher
	cfg    APIKeyConfig
}

// NewAPIKeyService fills cfg defaults and returns the service.
func NewAPIKeyService(s store.Store, hasher *cryptox.SecretHasher, cfg APIKeyConfig) *APIKeyService {
	if cfg.DefaultRateLimit <= 0 {
		cfg.DefaultRateLimit = DefaultAPIKeyRateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateWindow
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &APIKeyService{store: s, hasher: hasher, cfg: cfg}
}

// Window returns the rate accounting window.
func (s *APIKeyService) Window() time.Duration { return s.cfg.Window }

// IssueAPIKeyRequest describes a new key.
type IssueAPIKeyRequest struct {
	ClientName  string
	Permissions []string
	RateLimit   int           // requests per window, 0 for the default
	TTL         time.Duration // 0 never expires
	Metadata    map[string]string
}

// IssuedAPIKey carries the plaintext key. It is never available again.
type IssuedAPIKey struct {
	Key    string
	KeyID  string
	Record domain.APIKey
}

// AuthenticatedKey is the caller identity resolved from a presented key.
type AuthenticatedKey struct {
	KeyID       string
	ClientName  string
	Permissions []string
}

// Issue creates a key and returns "ck_<key_id>.<secret>". Only the secret's
// HMAC is stored.
func (s *APIKeyService) Issue(ctx context.Context, req IssueAPIKeyRequest) (IssuedAPIKey, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" || len(name) > maxClientNameLength {
		return IssuedAPIKey{}, fmt.Errorf("%w: client name must be 1-%d characters", ErrInvalidInput, maxClientNameLength)
	}
	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return IssuedAPIKey{}, err
	}
	if req.RateLimit < 0 {
		return IssuedAPIKey{}, fmt.Errorf("%w: rate limit must not be negative", ErrInvalidInput)
	}
	if req.TTL < 0 {
		return IssuedAPIKey{}, fmt.Errorf("%w: ttl must not be negative", ErrInvalidInput)
	}
	limit := req.RateLimit
	if limit == 0 {
		limit = s.cfg.DefaultRateLimit
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return IssuedAPIKey{}, err
	}
	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return IssuedAPIKey{}, err
	}

	now := s.cfg.Now().UTC()
	rec := domain.APIKey{
		SecretHash:  secretHash,
		ClientName:  name,
		Permissions: perms,
		RateLimit:   limit,
		IsActive:    true,
		CreatedAt:   now,
		Metadata:    maps.Clone(req.Metadata),
		WindowStart: now,
	}
	if req.TTL > 0 {
		exp := now.Add(req.TTL)
		rec.ExpiresAt = &exp
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	// Key ids are 64 random bits; a collision is retried with a fresh id.
	for attempt := 0; ; attempt++ {
		rec.KeyID, err = cryptox.GenerateToken(cryptox.TokenSize64)
		if err != nil {
			return IssuedAPIKey{}, err
		}
		err = s.store.APIKeys().CreateAPIKey(ctx, rec)
		if !errors.Is(err, store.ErrAlreadyExists) || attempt == 2 {
			break
		}
	}
	if err != nil {
		return IssuedAPIKey{}, fmt.Errorf("create api key: %w", unavailable(err))
	}

	slogx.FromContext(ctx).InfoContext(ctx, "api key issued",
		slog.String("key_id", rec.KeyID),
		slog.String("client_name", rec.ClientName),
		slog.Int("rate_limit", rec.RateLimit))

	rec.SecretHash = ""
	return IssuedAPIKey{
		Key:    domain.APIKeyPrefix + rec.KeyID + "." + secret,
		KeyID:  rec.KeyID,
		Record: rec,
	}, nil
}

// ParseAPIKey splits "ck_<key_id>.<secret>".
func ParseAPIKey(raw string) (keyID, secret string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), domain.APIKeyPrefix)
	if !ok {
		return "", "", ErrMalformedKey
	}
	keyID, secret, ok = strings.Cut(rest, ".")
	if !ok || keyID == "" || secret == "" {
		return "", "", ErrMalformedKey
	}
	return keyID, secret, nil
}

// Authenticate parses a presented key and validates it.
func (s *APIKeyService) Authenticate(ctx context.Context, raw string) (AuthenticatedKey, error) {
	keyID, secret, err := ParseAPIKey(raw)
	if err != nil {
		return AuthenticatedKey{}, err
	}
	rec, err := s.validate(ctx, keyID, secret)
	if err != nil {
		return AuthenticatedKey{}, err
	}
	return AuthenticatedKey{KeyID: rec.KeyID, ClientName: rec.ClientName, Permissions: rec.Permissions}, nil
}

// Validate checks a key id and secret and records the use. Failures are, in
// order: ErrKeyNotFound, ErrKeyInactive, ErrKeyExpired, ErrSecretMismatch
// and *RateLimitError. The request that first exceeds the limit is counted;
// later ones in the same window are not.
func (s *APIKeyService) Validate(ctx context.Context, keyID, secret string) ([]string, error) {
	rec, err := s.validate(ctx, keyID, secret)
	if err != nil {
		return nil, err
	}
	return rec.Permissions, nil
}

func (s *APIKeyService) validate(ctx context.Context, keyID, secret string) (domain.APIKey, error) {
	log := slogx.FromContext(ctx)
	now := s.cfg.Now().UTC()

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	rec, err := s.store.APIKeys().GetAPIKey(ctx, keyID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.APIKey{}, ErrKeyNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("get api key: %w", unavailable(err))
	}
	if !rec.IsActive {
		return domain.APIKey{}, ErrKeyInactive
	}
	if rec.IsExpired(now) {
		return domain.APIKey{}, ErrKeyExpired
	}
	if err := s.hasher.Verify(secret, rec.SecretHash); err != nil {
		log.WarnContext(ctx, "api key secret mismatch", slog.String("key_id", keyID))
		return domain.APIKey{}, ErrSecretMismatch
	}

	if s.cfg.Limiter != nil {
		err = s.recordWithLimiter(ctx, &rec, now)
	} else {
		err = s.recordInStore(ctx, &rec, now)
	}
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			log.WarnContext(ctx, "api key rate limited",
				slog.String("key_id", keyID),
				slog.Int("limit", rl.Limit),
				slog.Duration("retry_after", rl.RetryAfter))
		}
		return domain.APIKey{}, err
	}
	return rec, nil
}

func (s *APIKeyService) recordInStore(ctx context.Context, rec *domain.APIKey, now time.Time) error {
	usage, err := s.store.APIKeys().RecordAPIKeyUse(ctx, rec.KeyID, now, s.cfg.Window)
	if errors.Is(err, store.ErrConflict) {
		// Nothing was updated. Re-read to tell a revocation that raced the
		// check apart from a window already past its limit.
		cur, gerr := s.store.APIKeys().GetAPIKey(ctx, rec.KeyID)
		switch {
		case errors.Is(gerr, store.ErrNotFound):
			return ErrKeyNotFound
		case gerr != nil:
			return fmt.Errorf("get api key: %w", unavailable(gerr))
		case !cur.IsActive:
			return ErrKeyInactive
		}
		return s.limited(cur.KeyID, cur.RateLimit, cur.WindowStart, now)
	}
	if err != nil {
		return fmt.Errorf("record api key use: %w", unavailable(err))
	}

	rec.UsageCount = usage.UsageCount
	rec.WindowStart = usage.WindowStart
	rec.WindowCount = usage.WindowCount
	rec.LastUsedAt = &now
	if usage.WindowCount > usage.RateLimit {
		return s.limited(rec.KeyID, usage.RateLimit, usage.WindowStart, now)
	}
	return nil
}

func (s *APIKeyService) recordWithLimiter(ctx context.Context, rec *domain.APIKey, now time.Time) error {
	d, err := s.cfg.Limiter.Allow(ctx, "apikey:"+rec.KeyID, rec.RateLimit, s.cfg.Window)
	if err != nil {
		if errors.Is(err, ratelimit.ErrUnavailable) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("rate limit api key: %w", unavailable(err))
	}
	if d.Counted {
		count, err := s.store.APIKeys().IncrementAPIKeyUsage(ctx, rec.KeyID, now)
		if errors.Is(err, store.ErrNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("record api key use: %w", unavailable(err))
		}
		rec.UsageCount = count
		rec.LastUsedAt = &now
	}
	if !d.Allowed {
		return &RateLimitError{KeyID: rec.KeyID, Limit: rec.RateLimit, RetryAfter: d.RetryAfter(now)}
	}
	return nil
}

func (s *APIKeyService) limited(keyID string, limit int, windowStart, now time.Time) error {
	retry := windowStart.Add(s.cfg.Window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return &RateLimitError{KeyID: keyID, Limit: limit, RetryAfter: retry}
}

// Revoke deactivates a key. Revoking a revoked key succeeds.
func (s *APIKeyService) Revoke(ctx context.Context, keyID string) error {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err := s.store.APIKeys().RevokeAPIKey(ctx, keyID, s.cfg.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("revoke api key: %w", unavailable(err))
	}
	slogx.FromContext(ctx).InfoContext(ctx, "api key revoked", slog.String("key_id", keyID))
	return nil
}

// Purge deletes a key record outright.
func (s *APIKeyService) Purge(ctx context.Context, keyID string) error {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err := s.store.APIKeys().DeleteAPIKey(ctx, keyID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("delete api key: %w", unavailable(err))
	}
	if r, ok := s.cfg.Limiter.(ratelimit.Resetter); ok {
		if err := r.Reset(ctx, "apikey:"+keyID); err != nil {
			slogx.FromContext(ctx).WarnContext(ctx, "api key rate window not reset",
				slog.String("key_id", keyID), slog.Any("err", err))
		}
	}
	slogx.FromContext(ctx).InfoContext(ctx, "api key purged", slog.String("key_id", keyID))
	return nil
}

// Get returns a key without its secret hash.
func (s *APIKeyService) Get(ctx context.Context, keyID string) (domain.APIKey, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	rec, err := s.store.APIKeys().GetAPIKey(ctx, keyID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.APIKey{}, ErrKeyNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("get api key: %w", unavailable(err))
	}
	rec.SecretHash = ""
	return rec, nil
}

// List returns every key, newest first, without secret hashes.
func (s *APIKeyService) List(ctx context.Context) ([]domain.APIKey, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	keys, err := s.store.APIKeys().ListAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", unavailable(err))
	}
	for i := range keys {
		keys[i].SecretHash = ""
	}
	return keys, nil
}

// DeactivateExpired marks expired keys inactive and returns how many.
func (s *APIKeyService) DeactivateExpired(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	n, err := s.store.APIKeys().DeactivateExpiredAPIKeys(ctx, s.cfg.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired api keys: %w", unavailable(err))
	}
	return n, nil
}

// normalizePermissions trims, dedupes and sorts perms.
func normalizePermissions(perms []string) ([]string, error) {
	if len(perms) > maxPermissions {
		return nil, fmt.Errorf("%w: at most %d permissions", ErrInvalidInput, maxPermissions)
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" || strings.ContainsAny(p, " \t\r\n") {
			return nil, fmt.Errorf("%w: invalid permission %q", ErrInvalidInput, p)
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
