package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML file read before the environment.
const ConfigFileEnv = "CRED_CONFIG_FILE"

// Storage and rate limit backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	RateLimitStore  = "store"
	RateLimitRedis  = "redis"
	RateLimitMemory = "memory"
)

// Config is the complete service configuration. It is built once by
// LoadConfig and passed to constructors.
type Config struct {
	Env                  string        `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel             string        `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat            string        `yaml:"log_format"` // json, text (default: json)
	Port                 int           `yaml:"port"`       // default: 8080
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"`

	// Tokens
	Issuer          string        `yaml:"issuer"`
	Audience        []string      `yaml:"audience"`
	DefaultTokenTTL time.Duration `yaml:"default_token_ttl"`
	MaxTokenTTL     time.Duration `yaml:"max_token_ttl"`
	MaxClaimsBytes  int           `yaml:"max_claims_bytes"`

	// Signing keys
	Algorithm      string        `yaml:"algorithm"` // RS256, ES256, EdDSA (default: EdDSA)
	RSABits        int           `yaml:"rsa_bits"`
	KeyGracePeriod time.Duration `yaml:"key_grace_period"`
	MaxKeyAge      time.Duration `yaml:"max_key_age"`  // 0 disables automatic rotation
	KeyLifetime    time.Duration `yaml:"key_lifetime"` // 0 means no hard expiry
	MasterKeyFile  string        `yaml:"master_key_file"`
	MasterKey      string        `yaml:"-"` // CRED_MASTER_KEY only

	// KeyRefreshInterval bounds how stale this instance's view of keys
	// rotated or revoked by other instances may get. Negative disables.
	KeyRefreshInterval time.Duration `yaml:"key_refresh_interval"`

	// Storage
	DatabaseDriver string        `yaml:"database_driver"` // sqlite, postgres
	DatabaseFile   string        `yaml:"database_file"`
	DatabaseURL    string        `yaml:"-"` // CRED_DATABASE_URL only
	DBMaxOpenConns int           `yaml:"db_max_open_conns"`
	StoreTimeout   time.Duration `yaml:"store_timeout"`
	PepperFile     string        `yaml:"pepper_file"`

	// API keys
	APIKeyRateLimit  int           `yaml:"api_key_rate_limit"`
	APIKeyRateWindow time.Duration `yaml:"api_key_rate_window"`
	RateLimitBackend string        `yaml:"rate_limit_backend"` // store, redis, memory
	RedisAddr        string        `yaml:"redis_addr"`
	RedisPassword    string        `yaml:"-"` // CRED_REDIS_PASSWORD only
	RedisDB          int           `yaml:"redis_db"`
	RedisPrefix      string        `yaml:"redis_prefix"`

	// Password history
	PasswordHistoryDepth int `yaml:"password_history_depth"`

	// CSRF
	CSRFKey    string        `yaml:"-"` // CRED_CSRF_KEY only
	CSRFTTL    time.Duration `yaml:"csrf_ttl"`
	CSRFSecure bool          `yaml:"csrf_secure"`

	// Per-IP HTTP limits, requests per minute.
	PublicRateLimit int `yaml:"public_rate_limit"`
	StrictRateLimit int `yaml:"strict_rate_limit"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: time.Hour,

		Issuer:          "credcore",
		DefaultTokenTTL: jwtx.DefaultAccessTokenTTL,
		MaxTokenTTL:     24 * time.Hour,
		MaxClaimsBytes:  jwtx.DefaultMaxClaimsBytes,

		Algorithm:      jwtx.AlgorithmEdDSA,
		KeyGracePeriod: jwtx.DefaultGracePeriod,

		KeyRefreshInterval: jwtx.DefaultRefreshInterval,

		DatabaseDriver: DriverSQLite,
		DatabaseFile:   "credcore.db",
		StoreTimeout:   2 * time.Second,
		PepperFile:     "pepper",

		APIKeyRateLimit:  1000,
		APIKeyRateWindow: time.Minute,
		RateLimitBackend: RateLimitStore,
		RedisPrefix:      "credcore:rl:",

		PasswordHistoryDepth: 5,

		CSRFTTL: 4 * time.Hour,

		PublicRateLimit: 1000,
		StrictRateLimit: 20,
	}
}

// LoadConfig applies defaults, then the YAML file named by CRED_CONFIG_FILE,
// then environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.Port = getEnvIntOrDefault("PORT", c.Port)
	c.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod)
	c.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", c.HousekeepingInterval)

	c.Issuer = getEnvOrDefault("CRED_ISSUER", c.Issuer)
	if aud := os.Getenv("CRED_AUDIENCE"); aud != "" {
		c.Audience = splitList(aud)
	}
	c.DefaultTokenTTL = getEnvDurationOrDefault("CRED_DEFAULT_TOKEN_TTL", c.DefaultTokenTTL)
	c.MaxTokenTTL = getEnvDurationOrDefault("CRED_MAX_TOKEN_TTL", c.MaxTokenTTL)
	c.MaxClaimsBytes = getEnvIntOrDefault("CRED_MAX_CLAIMS_BYTES", c.MaxClaimsBytes)

	c.Algorithm = getEnvOrDefault("CRED_ALGORITHM", c.Algorithm)
	c.RSABits = getEnvIntOrDefault("CRED_RSA_BITS", c.RSABits)
	c.KeyGracePeriod = getEnvDurationOrDefault("CRED_KEY_GRACE_PERIOD", c.KeyGracePeriod)
	c.MaxKeyAge = getEnvDurationOrDefault("CRED_MAX_KEY_AGE", c.MaxKeyAge)
	c.KeyLifetime = getEnvDurationOrDefault("CRED_KEY_LIFETIME", c.KeyLifetime)
	c.KeyRefreshInterval = getEnvDurationOrDefault("CRED_KEY_REFRESH_INTERVAL", c.KeyRefreshInterval)
	c.MasterKeyFile = getEnvOrDefault("CRED_MASTER_KEY_FILE", c.MasterKeyFile)
	c.MasterKey = getEnvOrDefault("CRED_MASTER_KEY", c.MasterKey)

	c.DatabaseDriver = getEnvOrDefault("CRED_DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseFile = getEnvOrDefault("CRED_DATABASE_FILE", c.DatabaseFile)
	c.DatabaseURL = getEnvOrDefault("CRED_DATABASE_URL", c.DatabaseURL)
	c.DBMaxOpenConns = getEnvIntOrDefault("CRED_DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)
	c.StoreTimeout = getEnvDurationOrDefault("CRED_STORE_TIMEOUT", c.StoreTimeout)
	c.PepperFile = getEnvOrDefault("CRED_PEPPER_FILE", c.PepperFile)

	c.APIKeyRateLimit = getEnvIntOrDefault("CRED_API_KEY_RATE_LIMIT", c.APIKeyRateLimit)
	c.APIKeyRateWindow = getEnvDurationOrDefault("CRED_API_KEY_RATE_WINDOW", c.APIKeyRateWindow)
	c.RateLimitBackend = getEnvOrDefault("CRED_RATE_LIMIT_BACKEND", c.RateLimitBackend)
	c.RedisAddr = getEnvOrDefault("CRED_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnvOrDefault("CRED_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvIntOrDefault("CRED_REDIS_DB", c.RedisDB)
	c.RedisPrefix = getEnvOrDefault("CRED_REDIS_PREFIX", c.RedisPrefix)

	c.PasswordHistoryDepth = getEnvIntOrDefault("CRED_PASSWORD_HISTORY_DEPTH", c.PasswordHistoryDepth)

	c.CSRFKey = getEnvOrDefault("CRED_CSRF_KEY", c.CSRFKey)
	c.CSRFTTL = getEnvDurationOrDefault("CRED_CSRF_TTL", c.CSRFTTL)
	c.CSRFSecure = getEnvBoolOrDefault("CRED_CSRF_SECURE", c.CSRFSecure)

	c.PublicRateLimit = getEnvIntOrDefault("CRED_PUBLIC_RATE_LIMIT", c.PublicRateLimit)
	c.StrictRateLimit = getEnvIntOrDefault("CRED_STRICT_RATE_LIMIT", c.StrictRateLimit)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer is required"))
	}
	switch c.Algorithm {
	case jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA:
	default:
		errs = append(errs, fmt.Errorf("unsupported algorithm %q", c.Algorithm))
	}
	if c.Algorithm == jwtx.AlgorithmRS256 && c.RSABits != 0 && c.RSABits < 2048 {
		errs = append(errs, fmt.Errorf("rsa_bits must be at least 2048, got %d", c.RSABits))
	}
	if c.KeyGracePeriod <= 0 {
		errs = append(errs, errors.New("key_grace_period must be positive"))
	}
	if c.MaxKeyAge < 0 || c.KeyLifetime < 0 {
		errs = append(errs, errors.New("max_key_age and key_lifetime must not be negative"))
	}
	if c.DefaultTokenTTL <= 0 || c.MaxTokenTTL < c.DefaultTokenTTL {
		errs = append(errs, errors.New("default_token_ttl must be positive and not exceed max_token_ttl"))
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("database_file is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CRED_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DatabaseDriver))
	}
	if c.PepperFile == "" {
		errs = append(errs, errors.New("pepper_file is required"))
	}

	switch c.RateLimitBackend {
	case RateLimitStore, RateLimitMemory:
	case RateLimitRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported rate limit backend %q", c.RateLimitBackend))
	}
	if c.APIKeyRateLimit <= 0 || c.APIKeyRateWindow <= 0 {
		errs = append(errs, errors.New("api_key_rate_limit and api_key_rate_window must be positive"))
	}
	if c.PasswordHistoryDepth <= 0 {
		errs = append(errs, errors.New("password_history_depth must be positive"))
	}
	if c.CSRFKey != "" && len(c.CSRFKey) < 16 {
		errs = append(errs, errors.New("CRED_CSRF_KEY must be at least 16 bytes"))
	}
	if c.PublicRateLimit <= 0 || c.StrictRateLimit <= 0 {
		errs = append(errs, errors.New("public_rate_limit and strict_rate_limit must be positive"))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
