// Package storetest is a behavioural suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/pkg/idx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// Factory returns a migrated, empty store.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("SigningKeys", func(t *testing.T) { testSigningKeys(t, newStore(t)) })
	t.Run("SigningKeysAdapter", func(t *testing.T) { testAdapter(t, newStore(t)) })
	t.Run("APIKeys", func(t *testing.T) { testAPIKeys(t, newStore(t)) })
	t.Run("APIKeyWindow", func(t *testing.T) { testAPIKeyWindow(t, newStore(t)) })
	t.Run("APIKeyConcurrentUse", func(t *testing.T) { testAPIKeyConcurrentUse(t, newStore(t)) })
	t.Run("PasswordHistory", func(t *testing.T) { testPasswordHistory(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

func signingKey(kid string, at time.Time) domain.SigningKey {
	return domain.SigningKey{
		ID:                  idx.NewAt(at).String(),
		Kid:                 kid,
		Algorithm:           jwtx.AlgorithmEdDSA,
		PrivateKeyEncrypted: []byte("sealed-" + kid),
		CreatedAt:           at,
	}
}

func rotate(ctx context.Context, s store.Store, next domain.SigningKey, expected string, now time.Time) error {
	return s.WithTx(ctx, func(tx store.Tx) error {
		return tx.SigningKeys().RotateSigningKey(ctx, next, expected, now)
	})
}

func testSigningKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.SigningKeys()

	keys, err := repo.ListSigningKeys(ctx, true)
	require.NoError(t, err)
	require.Empty(t, keys)

	notAfter := base.Add(48 * time.Hour)
	first := signingKey("k1", base)
	first.NotAfter = &notAfter
	require.NoError(t, rotate(ctx, s, first, "", base))

	// A second "first" rotation loses.
	require.ErrorIs(t, rotate(ctx, s, signingKey("k-lost", base), "", base), store.ErrConflict)
	// So does a rotation expecting the wrong active key.
	require.ErrorIs(t, rotate(ctx, s, signingKey("k-lost", base), "nope", base), store.ErrConflict)

	t1 := base.Add(time.Hour)
	require.NoError(t, rotate(ctx, s, signingKey("k2", t1), "k1", t1))

	keys, err = repo.ListSigningKeys(ctx, false)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, "k1", keys[0].Kid)
	require.Equal(t, domain.SigningKeyRetiring, keys[0].Status)
	require.NotNil(t, keys[0].RetiredAt)
	require.True(t, keys[0].RetiredAt.Equal(t1))
	require.NotNil(t, keys[0].NotAfter)
	require.True(t, keys[0].NotAfter.Equal(notAfter))
	require.Equal(t, []byte("sealed-k1"), keys[0].PrivateKeyEncrypted)
	require.Equal(t, "k2", keys[1].Kid)
	require.Equal(t, domain.SigningKeyActive, keys[1].Status)
	require.Nil(t, keys[1].RetiredAt)

	require.ErrorIs(t, repo.RevokeSigningKey(ctx, "k2", t1), store.ErrConflict)
	require.ErrorIs(t, repo.RevokeSigningKey(ctx, "missing", t1), store.ErrNotFound)

	t2 := base.Add(2 * time.Hour)
	require.NoError(t, repo.RevokeSigningKey(ctx, "k1", t2))
	require.NoError(t, repo.RevokeSigningKey(ctx, "k1", t2.Add(time.Hour)), "idempotent")

	got, err := repo.GetSigningKey(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, domain.SigningKeyRevoked, got.Status)
	require.True(t, got.RevokedAt.Equal(t2), "first revocation time is kept")

	keys, err = repo.ListSigningKeys(ctx, false)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	keys, err = repo.ListSigningKeys(ctx, true)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	_, err = repo.GetSigningKey(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testAdapter(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := store.NewKeyStoreAdapter(s)

	next := jwtx.KeyRecord{ID: idx.NewAt(base).String(), Kid: "a1", Algorithm: jwtx.AlgorithmEdDSA, PrivateKeyEncrypted: []byte("x"), CreatedAt: base}
	require.NoError(t, a.RotateSigningKey(ctx, next, "", base))
	require.ErrorIs(t, a.RotateSigningKey(ctx, next, "", base), jwtx.ErrRotationConflict)
	require.ErrorIs(t, a.RevokeSigningKey(ctx, "a1", base), jwtx.ErrKeyActive)
	require.ErrorIs(t, a.RevokeSigningKey(ctx, "zz", base), jwtx.ErrKeyNotFound)

	recs, err := a.ListSigningKeys(ctx, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, jwtx.KeyStatusActive, recs[0].Status)
}

func apiKey(id string, limit int) domain.APIKey {
	return domain.APIKey{
		KeyID:       id,
		SecretHash:  "$hmac-sha256$salt$mac",
		ClientName:  "client-" + id,
		Permissions: []string{"read", "write"},
		RateLimit:   limit,
		IsActive:    true,
		CreatedAt:   base,
		Metadata:    map[string]string{"team": "core"},
	}
}

func testAPIKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.APIKeys()

	exp := base.Add(time.Hour)
	k := apiKey("key1", 10)
	k.ExpiresAt = &exp
	require.NoError(t, repo.CreateAPIKey(ctx, k))
	require.ErrorIs(t, repo.CreateAPIKey(ctx, k), store.ErrAlreadyExists)

	older := apiKey("key0", 10)
	older.CreatedAt = base.Add(-time.Hour)
	older.Permissions = nil
	older.Metadata = nil
	require.NoError(t, repo.CreateAPIKey(ctx, older))

	got, err := repo.GetAPIKey(ctx, "key1")
	require.NoError(t, err)
	require.Equal(t, "client-key1", got.ClientName)
	require.Equal(t, []string{"read", "write"}, got.Permissions)
	require.Equal(t, map[string]string{"team": "core"}, got.Metadata)
	require.True(t, got.IsActive)
	require.True(t, got.ExpiresAt.Equal(exp))
	require.Nil(t, got.LastUsedAt)
	require.Zero(t, got.UsageCount)

	_, err = repo.GetAPIKey(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	list, err := repo.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "key1", list[0].KeyID, "newest first")
	require.Empty(t, list[1].Permissions)

	n, err := repo.IncrementAPIKeyUsage(ctx, "key1", base)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, err = repo.IncrementAPIKeyUsage(ctx, "missing", base)
	require.ErrorIs(t, err, store.ErrNotFound)

	changed, err := repo.DeactivateExpiredAPIKeys(ctx, exp)
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)
	got, err = repo.GetAPIKey(ctx, "key1")
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.NoError(t, repo.RevokeAPIKey(ctx, "key0", base))
	require.NoError(t, repo.RevokeAPIKey(ctx, "key0", base.Add(time.Minute)))
	got, err = repo.GetAPIKey(ctx, "key0")
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.True(t, got.RevokedAt.Equal(base))
	require.ErrorIs(t, repo.RevokeAPIKey(ctx, "missing", base), store.ErrNotFound)

	_, err = repo.RecordAPIKeyUse(ctx, "key0", base, time.Minute)
	require.ErrorIs(t, err, store.ErrConflict, "inactive keys are not counted")

	require.NoError(t, repo.DeleteAPIKey(ctx, "key0"))
	require.ErrorIs(t, repo.DeleteAPIKey(ctx, "key0"), store.ErrNotFound)
}

func testAPIKeyWindow(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.APIKeys()
	require.NoError(t, repo.CreateAPIKey(ctx, apiKey("rl", 3)))

	now := base
	for i := 1; i <= 3; i++ {
		u, err := repo.RecordAPIKeyUse(ctx, "rl", now, time.Minute)
		require.NoError(t, err)
		require.EqualValues(t, i, u.UsageCount)
		require.Equal(t, i, u.WindowCount)
		require.True(t, u.WindowStart.Equal(base))
		now = now.Add(time.Second)
	}

	// The tripping request is counted once.
	u, err := repo.RecordAPIKeyUse(ctx, "rl", now, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, u.WindowCount)
	require.EqualValues(t, 4, u.UsageCount)
	require.Equal(t, 3, u.RateLimit)

	// Later ones are not.
	_, err = repo.RecordAPIKeyUse(ctx, "rl", now, time.Minute)
	require.ErrorIs(t, err, store.ErrConflict)
	got, err := repo.GetAPIKey(ctx, "rl")
	require.NoError(t, err)
	require.EqualValues(t, 4, got.UsageCount)

	// The window is [start, start+window).
	u, err = repo.RecordAPIKeyUse(ctx, "rl", base.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, u.WindowCount)
	require.EqualValues(t, 5, u.UsageCount)
	require.True(t, u.WindowStart.Equal(base.Add(time.Minute)))
}

func testAPIKeyConcurrentUse(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.APIKeys()
	require.NoError(t, repo.CreateAPIKey(ctx, apiKey("hot", 1000)))

	const workers, each = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				if _, err := repo.RecordAPIKeyUse(ctx, "hot", base, time.Minute); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetAPIKey(ctx, "hot")
	require.NoError(t, err)
	require.EqualValues(t, workers*each, got.UsageCount)
	require.Equal(t, workers*each, got.WindowCount)
}

func testPasswordHistory(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i := range 7 {
		at := base.Add(time.Duration(i) * time.Minute)
		err := s.WithTx(ctx, func(tx store.Tx) error {
			repo := tx.PasswordHistory()
			if err := repo.LockPasswordHistory(ctx, "u1", at); err != nil {
				return err
			}
			if err := repo.InsertPasswordHistory(ctx, domain.PasswordHistoryEntry{
				ID: idx.NewAt(at).String(), UserID: "u1", PasswordHash: fmt.Sprintf("h%d", i), CreatedAt: at,
			}); err != nil {
				return err
			}
			_, err := repo.PrunePasswordHistory(ctx, "u1", 5)
			return err
		})
		require.NoError(t, err)
	}

	repo := s.PasswordHistory()
	n, err := repo.CountPasswordHistory(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 5, n)

	entries, err := repo.ListPasswordHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.Equal(t, "h6", entries[0].PasswordHash)
	require.Equal(t, "h2", entries[4].PasswordHash)

	entries, err = repo.ListPasswordHistory(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Same millisecond entries are ordered by id.
	err = s.WithTx(ctx, func(tx store.Tx) error {
		r := tx.PasswordHistory()
		if err := r.LockPasswordHistory(ctx, "u2", base); err != nil {
			return err
		}
		for _, h := range []string{"a", "b"} {
			if err := r.InsertPasswordHistory(ctx, domain.PasswordHistoryEntry{
				ID: idx.NewAt(base).String(), UserID: "u2", PasswordHash: h, CreatedAt: base,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	entries, err = repo.ListPasswordHistory(ctx, "u2", 5)
	require.NoError(t, err)
	require.Equal(t, "b", entries[0].PasswordHash)

	require.NoError(t, repo.DeletePasswordHistory(ctx, "u1"))
	n, err = repo.CountPasswordHistory(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = repo.CountPasswordHistory(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.APIKeys().CreateAPIKey(ctx, apiKey("tx", 1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.APIKeys().GetAPIKey(ctx, "tx")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, s.Ping(ctx))
}
