package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, jwtx.AlgorithmEdDSA, cfg.Algorithm)
	require.Equal(t, 5, cfg.PasswordHistoryDepth)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
issuer: file-issuer
audience: [web, cli]
algorithm: ES256
key_grace_period: 48h
database_file: /var/lib/credcore/cred.db
password_history_depth: 8
rate_limit_backend: redis
redis_addr: redis:6379
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("CRED_ISSUER", "env-issuer")
	t.Setenv("CRED_API_KEY_RATE_WINDOW", "30s")
	t.Setenv("CRED_CSRF_SECURE", "true")
	t.Setenv("CRED_KEY_REFRESH_INTERVAL", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "env-issuer", cfg.Issuer)
	require.Equal(t, []string{"web", "cli"}, cfg.Audience)
	require.Equal(t, jwtx.AlgorithmES256, cfg.Algorithm)
	require.Equal(t, 48*time.Hour, cfg.KeyGracePeriod)
	require.Equal(t, 5*time.Second, cfg.KeyRefreshInterval)
	require.Equal(t, "/var/lib/credcore/cred.db", cfg.DatabaseFile)
	require.Equal(t, 8, cfg.PasswordHistoryDepth)
	require.Equal(t, RateLimitRedis, cfg.RateLimitBackend)
	require.Equal(t, 30*time.Second, cfg.APIKeyRateWindow)
	require.True(t, cfg.CSRFSecure)
}

func TestLoadConfig_UnknownFileField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("isuer: typo\n"), 0o600))
	t.Setenv(ConfigFileEnv, path)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty issuer", func(c *Config) { c.Issuer = "" }, false},
		{"bad algorithm", func(c *Config) { c.Algorithm = "HS256" }, false},
		{"weak rsa", func(c *Config) { c.Algorithm = jwtx.AlgorithmRS256; c.RSABits = 1024 }, false},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = DriverPostgres }, false},
		{"postgres with url", func(c *Config) {
			c.DatabaseDriver = DriverPostgres
			c.DatabaseURL = "postgres://localhost/cred"
		}, true},
		{"redis without addr", func(c *Config) { c.RateLimitBackend = RateLimitRedis }, false},
		{"unknown backend", func(c *Config) { c.RateLimitBackend = "etcd" }, false},
		{"zero depth", func(c *Config) { c.PasswordHistoryDepth = 0 }, false},
		{"short csrf key", func(c *Config) { c.CSRFKey = "short" }, false},
		{"default ttl above max", func(c *Config) { c.DefaultTokenTTL = 48 * time.Hour }, false},
		{"zero grace", func(c *Config) { c.KeyGracePeriod = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Hour},
		{"90s", 90 * time.Second},
		{"15", 15 * time.Minute},
		{"soon", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CRED_TEST_DURATION", tt.value)
			require.Equal(t, tt.want, getEnvDurationOrDefault("CRED_TEST_DURATION", time.Hour))
		})
	}
}
