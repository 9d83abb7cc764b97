package sqlrepo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
)

type passwordHistoryRepo struct {
	q querier
}

// LockPasswordHistory upserts the user's head row. The row lock (postgres)
// or the immediate write transaction (sqlite) serialises concurrent changes
// for the user until commit.
func (r *passwordHistoryRepo) LockPasswordHistory(ctx context.Context, userID string, now time.Time) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO password_history_heads (user_id, updated_at) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, toMillis(now))
	return err
}

func (r *passwordHistoryRepo) ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	rows, err := r.q.query(ctx,
		`SELECT id, user_id, password_hash, created_at FROM password_history
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var (
			e         domain.PasswordHistoryEntry
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.PasswordHash, &createdAt); err != nil {
			return nil, r.q.d.mapErr(err)
		}
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	return entries, r.q.d.mapErr(rows.Err())
}

func (r *passwordHistoryRepo) InsertPasswordHistory(ctx context.Context, e domain.PasswordHistoryEntry) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO password_history (id, user_id, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.UserID, e.PasswordHash, toMillis(e.CreatedAt))
	return err
}

func (r *passwordHistoryRepo) PrunePasswordHistory(ctx context.Context, userID string, keep int) (int64, error) {
	return r.q.execAffected(ctx,
		`DELETE FROM password_history WHERE user_id = ? AND id NOT IN (
			SELECT id FROM password_history WHERE user_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?)`,
		userID, userID, keep)
}

func (r *passwordHistoryRepo) CountPasswordHistory(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.scanRow(ctx, `SELECT COUNT(*) FROM password_history WHERE user_id = ?`, []any{userID}, &n)
	return n, err
}

func (r *passwordHistoryRepo) DeletePasswordHistory(ctx context.Context, userID string) error {
	if _, err := r.q.exec(ctx, `DELETE FROM password_history WHERE user_id = ?`, userID); err != nil {
		return err
	}
	_, err := r.q.exec(ctx, `DELETE FROM password_history_heads WHERE user_id = ?`, userID)
	return err
}
