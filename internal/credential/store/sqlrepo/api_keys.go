package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
)

const apiKeyColumns = `key_id, secret_hash, client_name, permissions, rate_limit, is_active, created_at,
	expires_at, last_used_at, usage_count, revoked_at, metadata, window_start, window_count`

type apiKeysRepo struct {
	q querier
}

func (r *apiKeysRepo) CreateAPIKey(ctx context.Context, k domain.APIKey) error {
	perms, err := json.Marshal(nonNil(k.Permissions))
	if err != nil {
		return fmt.Errorf("sqlrepo: encode permissions: %w", err)
	}
	meta, err := json.Marshal(nonNilMap(k.Metadata))
	if err != nil {
		return fmt.Errorf("sqlrepo: encode metadata: %w", err)
	}

	_, err = r.q.exec(ctx,
		`INSERT INTO api_keys (`+apiKeyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.KeyID, k.SecretHash, k.ClientName, string(perms), k.RateLimit, k.IsActive, toMillis(k.CreatedAt),
		toNullMillis(k.ExpiresAt), toNullMillis(k.LastUsedAt), k.UsageCount, toNullMillis(k.RevokedAt),
		string(meta), toMillis(k.WindowStart), k.WindowCount)
	return err
}

func (r *apiKeysRepo) GetAPIKey(ctx context.Context, keyID string) (domain.APIKey, error) {
	rows, err := r.q.query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_id = ?`, keyID)
	if err != nil {
		return domain.APIKey{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.APIKey{}, r.q.d.mapErr(err)
		}
		return domain.APIKey{}, store.ErrNotFound
	}
	k, err := scanAPIKey(rows)
	return k, r.q.d.mapErr(err)
}

func (r *apiKeysRepo) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := r.q.query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC, key_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, r.q.d.mapErr(err)
		}
		keys = append(keys, k)
	}
	return keys, r.q.d.mapErr(rows.Err())
}

// recordUseQuery is one conditional UPDATE: the window resets when it has
// elapsed, otherwise the count grows until it first exceeds rate_limit.
// Rows already past the limit are not touched.
const recordUseQuery = `UPDATE api_keys SET
	usage_count  = usage_count + 1,
	last_used_at = ?,
	window_start = CASE WHEN window_start + ? <= ? THEN CAST(? AS BIGINT) ELSE window_start END,
	window_count = CASE WHEN window_start + ? <= ? THEN 1 ELSE window_count + 1 END
WHERE key_id = ? AND is_active = ?
	AND (window_start + ? <= ? OR window_count <= rate_limit)
RETURNING usage_count, window_start, window_count, rate_limit`

func (r *apiKeysRepo) RecordAPIKeyUse(ctx context.Context, keyID string, now time.Time, window time.Duration) (domain.APIKeyUsage, error) {
	nowMs, winMs := toMillis(now), window.Milliseconds()

	var (
		u           domain.APIKeyUsage
		windowStart int64
	)
	err := r.q.scanRow(ctx, recordUseQuery,
		[]any{nowMs, winMs, nowMs, nowMs, winMs, nowMs, keyID, true, winMs, nowMs},
		&u.UsageCount, &windowStart, &u.WindowCount, &u.RateLimit)
	if errors.Is(err, store.ErrNotFound) {
		return domain.APIKeyUsage{}, store.ErrConflict
	}
	if err != nil {
		return domain.APIKeyUsage{}, err
	}
	u.WindowStart = fromMillis(windowStart)
	return u, nil
}

func (r *apiKeysRepo) IncrementAPIKeyUsage(ctx context.Context, keyID string, now time.Time) (int64, error) {
	var count int64
	err := r.q.scanRow(ctx,
		`UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE key_id = ? RETURNING usage_count`,
		[]any{toMillis(now), keyID}, &count)
	return count, err
}

func (r *apiKeysRepo) RevokeAPIKey(ctx context.Context, keyID string, now time.Time) error {
	n, err := r.q.execAffected(ctx,
		`UPDATE api_keys SET is_active = ?, revoked_at = COALESCE(revoked_at, ?) WHERE key_id = ?`,
		false, toMillis(now), keyID)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *apiKeysRepo) DeactivateExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error) {
	return r.q.execAffected(ctx,
		`UPDATE api_keys SET is_active = ? WHERE is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		false, true, toMillis(now))
}

func (r *apiKeysRepo) DeleteAPIKey(ctx context.Context, keyID string) error {
	n, err := r.q.execAffected(ctx, `DELETE FROM api_keys WHERE key_id = ?`, keyID)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanAPIKey(rows *sql.Rows) (domain.APIKey, error) {
	var (
		k                                domain.APIKey
		perms, meta                      string
		createdAt, windowStart           int64
		expiresAt, lastUsedAt, revokedAt sql.NullInt64
	)
	if err := rows.Scan(&k.KeyID, &k.SecretHash, &k.ClientName, &perms, &k.RateLimit, &k.IsActive,
		&createdAt, &expiresAt, &lastUsedAt, &k.UsageCount, &revokedAt, &meta, &windowStart, &k.WindowCount); err != nil {
		return domain.APIKey{}, err
	}
	if err := json.Unmarshal([]byte(perms), &k.Permissions); err != nil {
		return domain.APIKey{}, fmt.Errorf("sqlrepo: decode permissions for %s: %w", k.KeyID, err)
	}
	if err := json.Unmarshal([]byte(meta), &k.Metadata); err != nil {
		return domain.APIKey{}, fmt.Errorf("sqlrepo: decode metadata for %s: %w", k.KeyID, err)
	}
	k.CreatedAt = fromMillis(createdAt)
	k.ExpiresAt = fromNullMillis(expiresAt)
	k.LastUsedAt = fromNullMillis(lastUsedAt)
	k.RevokedAt = fromNullMillis(revokedAt)
	k.WindowStart = fromMillis(windowStart)
	return k, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
