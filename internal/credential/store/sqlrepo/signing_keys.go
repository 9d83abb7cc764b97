package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
)

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, status, created_at, retired_at, revoked_at, not_after`

type signingKeysRepo struct {
	q querier
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context, includeRevoked bool) ([]domain.SigningKey, error) {
	query := `SELECT ` + signingKeyColumns + ` FROM signing_keys`
	var args []any
	if !includeRevoked {
		query += ` WHERE status <> ?`
		args = append(args, string(domain.SigningKeyRevoked))
	}
	query += ` ORDER BY created_at ASC, kid ASC`

	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, r.q.d.mapErr(err)
		}
		keys = append(keys, k)
	}
	return keys, r.q.d.mapErr(rows.Err())
}

func (r *signingKeysRepo) GetSigningKey(ctx context.Context, kid string) (domain.SigningKey, error) {
	rows, err := r.q.query(ctx, `SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)
	if err != nil {
		return domain.SigningKey{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.SigningKey{}, r.q.d.mapErr(err)
		}
		return domain.SigningKey{}, store.ErrNotFound
	}
	k, err := scanSigningKey(rows)
	return k, r.q.d.mapErr(err)
}

func (r *signingKeysRepo) RotateSigningKey(ctx context.Context, next domain.SigningKey, expectedActiveKid string, now time.Time) error {
	if expectedActiveKid == "" {
		var active int
		if err := r.q.scanRow(ctx, `SELECT COUNT(*) FROM signing_keys WHERE status = ?`,
			[]any{string(domain.SigningKeyActive)}, &active); err != nil {
			return err
		}
		if active > 0 {
			return store.ErrConflict
		}
	} else {
		n, err := r.q.execAffected(ctx,
			`UPDATE signing_keys SET status = ?, retired_at = ? WHERE kid = ? AND status = ?`,
			string(domain.SigningKeyRetiring), toMillis(now), expectedActiveKid, string(domain.SigningKeyActive))
		if err != nil {
			return err
		}
		if n != 1 {
			return store.ErrConflict
		}
	}

	_, err := r.q.exec(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		next.ID, next.Kid, next.Algorithm, next.PrivateKeyEncrypted, string(domain.SigningKeyActive),
		toMillis(next.CreatedAt), sql.NullInt64{}, sql.NullInt64{}, toNullMillis(next.NotAfter))
	if errors.Is(err, store.ErrAlreadyExists) {
		// The one-active index lost a race with another rotation.
		return store.ErrConflict
	}
	return err
}

func (r *signingKeysRepo) RevokeSigningKey(ctx context.Context, kid string, now time.Time) error {
	var status string
	if err := r.q.scanRow(ctx, `SELECT status FROM signing_keys WHERE kid = ?`, []any{kid}, &status); err != nil {
		return err
	}
	switch domain.SigningKeyStatus(status) {
	case domain.SigningKeyRevoked:
		return nil
	case domain.SigningKeyActive:
		return store.ErrConflict
	}

	_, err := r.q.exec(ctx,
		`UPDATE signing_keys SET status = ?, revoked_at = ? WHERE kid = ? AND status = ?`,
		string(domain.SigningKeyRevoked), toMillis(now), kid, string(domain.SigningKeyRetiring))
	return err
}

func scanSigningKey(rows *sql.Rows) (domain.SigningKey, error) {
	var (
		k                              domain.SigningKey
		status                         string
		createdAt                      int64
		retiredAt, revokedAt, notAfter sql.NullInt64
	)
	if err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &status,
		&createdAt, &retiredAt, &revokedAt, &notAfter); err != nil {
		return domain.SigningKey{}, err
	}
	k.Status = domain.SigningKeyStatus(status)
	k.CreatedAt = fromMillis(createdAt)
	k.RetiredAt = fromNullMillis(retiredAt)
	k.RevokedAt = fromNullMillis(revokedAt)
	k.NotAfter = fromNullMillis(notAfter)
	return k, nil
}
