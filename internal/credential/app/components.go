package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/internal/credential/store/drivers/postgres"
	"github.com/aussiebroadwan/credcore/internal/credential/store/drivers/sqlite"
	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/aussiebroadwan/credcore/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		db  store.Store
		err error
	)
	switch cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	default:
		db, err = sqlite.NewStore(cfg.DatabaseFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	logger.Info("database migrations applied", slog.String("driver", cfg.DatabaseDriver))
	return db, nil
}

// Hashers holds the peppered hashers derived from the pepper file.
type Hashers struct {
	Secrets   *cryptox.SecretHasher
	Passwords *cryptox.PasswordHasher
}

// LoadHashers reads or creates the pepper and builds both hashers.
func LoadHashers(cfg Config) (Hashers, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return Hashers{}, err
	}
	return Hashers{
		Secrets:   cryptox.NewSecretHasher(pepper),
		Passwords: cryptox.NewPasswordHasher(pepper, cryptox.DefaultArgon2Params),
	}, nil
}

// InitKeyRing opens the key ring over db. Private keys are sealed with the
// master key from CRED_MASTER_KEY_FILE or CRED_MASTER_KEY. Without either an
// ephemeral master key is used and sealed keys are unreadable after a
// restart.
func InitKeyRing(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyRing, error) {
	kc, ephemeral, err := cryptox.LoadKeyCipher(cfg.MasterKeyFile, cfg.MasterKey)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		logger.Warn("no master key configured, using an ephemeral one; signing keys will not survive a restart")
	}

	ring, err := jwtx.NewKeyRing(ctx, jwtx.KeyRingOptions{
		Store:       store.NewKeyStoreAdapter(db),
		Sealer:      kc,
		Algorithm:   cfg.Algorithm,
		RSABits:     cfg.RSABits,
		GracePeriod: cfg.KeyGracePeriod,
		MaxKeyAge:   cfg.MaxKeyAge,
		KeyLifetime: cfg.KeyLifetime,
		Logger:      logger,

		RefreshInterval: cfg.KeyRefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	logger.Info("key ring ready",
		slog.String("algorithm", cfg.Algorithm),
		slog.String("active_kid", ring.ActiveKid()))
	return ring, nil
}

// NewIssuer binds the token issuer to ring.
func NewIssuer(cfg Config, ring *jwtx.KeyRing) *jwtx.Issuer {
	return jwtx.NewIssuer(ring, jwtx.IssuerOptions{
		Issuer:         cfg.Issuer,
		Audience:       cfg.Audience,
		MaxClaimsBytes: cfg.MaxClaimsBytes,
		DefaultTTL:     cfg.DefaultTokenTTL,
	})
}

// rateLimitBackend is the API key limiter selected by configuration. The
// store backend needs no limiter, so limiter is nil for it.
type rateLimitBackend struct {
	limiter ratelimit.Limiter
	ping    func(ctx context.Context) error
	close   func() error
}

func newRateLimitBackend(cfg Config) (rateLimitBackend, error) {
	switch cfg.RateLimitBackend {
	case RateLimitRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rl, err := ratelimit.NewRedis(client, cfg.RedisPrefix, nil)
		if err != nil {
			_ = client.Close()
			return rateLimitBackend{}, err
		}
		return rateLimitBackend{
			limiter: rl,
			ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:   client.Close,
		}, nil
	case RateLimitMemory:
		return rateLimitBackend{limiter: ratelimit.NewMemory(nil, 0)}, nil
	default:
		return rateLimitBackend{}, nil
	}
}
