package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
)

// KeyStoreAdapter exposes a Store as a jwtx.KeyStore so the key ring can
// persist keys without knowing about the domain package.
type KeyStoreAdapter struct {
	store Store
}

var _ jwtx.KeyStore = (*KeyStoreAdapter)(nil)

// NewKeyStoreAdapter wraps s.
func NewKeyStoreAdapter(s Store) *KeyStoreAdapter {
	return &KeyStoreAdapter{store: s}
}

func (a *KeyStoreAdapter) ListSigningKeys(ctx context.Context, includeRevoked bool) ([]jwtx.KeyRecord, error) {
	keys, err := a.store.SigningKeys().ListSigningKeys(ctx, includeRevoked)
	if err != nil {
		return nil, err
	}
	records := make([]jwtx.KeyRecord, len(keys))
	for i, k := range keys {
		records[i] = toKeyRecord(k)
	}
	return records, nil
}

// RotateSigningKey runs the compare-and-swap in one transaction.
func (a *KeyStoreAdapter) RotateSigningKey(ctx context.Context, next jwtx.KeyRecord, expectedActiveKid string, now time.Time) error {
	err := a.store.WithTx(ctx, func(tx Tx) error {
		return tx.SigningKeys().RotateSigningKey(ctx, fromKeyRecord(next), expectedActiveKid, now)
	})
	if errors.Is(err, ErrConflict) {
		return jwtx.ErrRotationConflict
	}
	return err
}

func (a *KeyStoreAdapter) RevokeSigningKey(ctx context.Context, kid string, now time.Time) error {
	err := a.store.SigningKeys().RevokeSigningKey(ctx, kid, now)
	switch {
	case errors.Is(err, ErrNotFound):
		return jwtx.ErrKeyNotFound
	case errors.Is(err, ErrConflict):
		return jwtx.ErrKeyActive
	}
	return err
}

func toKeyRecord(k domain.SigningKey) jwtx.KeyRecord {
	return jwtx.KeyRecord{
		ID:                  k.ID,
		Kid:                 k.Kid,
		Algorithm:           k.Algorithm,
		PrivateKeyEncrypted: k.PrivateKeyEncrypted,
		Status:              jwtx.KeyStatus(k.Status),
		CreatedAt:           k.CreatedAt,
		RetiredAt:           k.RetiredAt,
		RevokedAt:           k.RevokedAt,
		NotAfter:            k.NotAfter,
	}
}

func fromKeyRecord(r jwtx.KeyRecord) domain.SigningKey {
	return domain.SigningKey{
		ID:                  r.ID,
		Kid:                 r.Kid,
		Algorithm:           r.Algorithm,
		PrivateKeyEncrypted: r.PrivateKeyEncrypted,
		Status:              domain.SigningKeyStatus(r.Status),
		CreatedAt:           r.CreatedAt,
		RetiredAt:           r.RetiredAt,
		RevokedAt:           r.RevokedAt,
		NotAfter:            r.NotAfter,
	}
}
