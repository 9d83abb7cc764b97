package jwtx

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryKeyStore is a KeyStore for ephemeral mode and tests. Keys are lost
// on restart.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys []KeyRecord
}

// NewMemoryKeyStore returns an empty store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

func (m *MemoryKeyStore) ListSigningKeys(_ context.Context, includeRevoked bool) ([]KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]KeyRecord, 0, len(m.keys))
	for _, k := range m.keys {
		if k.Status == KeyStatusRevoked && !includeRevoked {
			continue
		}
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b KeyRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Kid, b.Kid)
	})
	return out, nil
}

func (m *MemoryKeyStore) RotateSigningKey(_ context.Context, next KeyRecord, expectedActiveKid string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := -1
	for i, k := range m.keys {
		if k.Status == KeyStatusActive {
			active = i
			break
		}
	}

	switch {
	case active < 0 && expectedActiveKid != "":
		return ErrRotationConflict
	case active >= 0 && m.keys[active].Kid != expectedActiveKid:
		return ErrRotationConflict
	}

	if active >= 0 {
		m.keys[active].Status = KeyStatusRetiring
		m.keys[active].RetiredAt = &now
	}
	next.Status = KeyStatusActive
	m.keys = append(m.keys, next)
	return nil
}

func (m *MemoryKeyStore) RevokeSigningKey(_ context.Context, kid string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, k := range m.keys {
		if k.Kid != kid {
			continue
		}
		switch k.Status {
		case KeyStatusRevoked:
			return nil
		case KeyStatusActive:
			return ErrKeyActive
		}
		m.keys[i].Status = KeyStatusRevoked
		m.keys[i].RevokedAt = &now
		return nil
	}
	return ErrKeyNotFound
}
