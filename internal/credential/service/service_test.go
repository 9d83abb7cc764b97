package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/internal/credential/store/drivers/sqlite"
	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "cred.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

// Cheap argon2 parameters keep the tests fast.
func testPasswordHasher() *cryptox.PasswordHasher {
	return cryptox.NewPasswordHasher("test-pepper", cryptox.Argon2Params{Memory: 1024, Iterations: 1})
}

func newTestRing(t *testing.T, s store.Store, clock *testClock, mutate ...func(*jwtx.KeyRingOptions)) *jwtx.KeyRing {
	t.Helper()
	kc, err := cryptox.NewKeyCipher([]byte("test-master-key"))
	require.NoError(t, err)
	opts := jwtx.KeyRingOptions{
		Store:       store.NewKeyStoreAdapter(s),
		Sealer:      kc,
		Algorithm:   jwtx.AlgorithmEdDSA,
		GracePeriod: time.Hour,
		Now:         clock.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	ring, err := jwtx.NewKeyRing(context.Background(), opts)
	require.NoError(t, err)
	return ring
}
