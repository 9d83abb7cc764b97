package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/credcore/internal/credential/http"
	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/pkg/csrf"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application owns the service's dependencies and HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	ring    *jwtx.KeyRing
	issuer  *jwtx.Issuer
	limiter rateLimitBackend

	apiKeyService       *service.APIKeyService
	passwordService     *service.PasswordHistoryService
	keyRotationService  *service.KeyRotationService
	housekeepingService *service.HousekeepingService
	csrfIssuer          *csrf.Issuer

	server *http.Server
	router *httpapi.Router
}

// New builds an Application from cfg. Nothing is started until Run.
func New(cfg Config) (*Application, error) {
	logger, err := slogx.New(slogx.Config{
		Service: "credcore",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}
	ctx := context.Background()

	db, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := app.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func (app *Application) init(ctx context.Context) error {
	ring, err := InitKeyRing(ctx, app.cfg, app.db, app.logger)
	if err != nil {
		return err
	}
	app.ring = ring
	app.issuer = NewIssuer(app.cfg, ring)

	if err := app.initServices(); err != nil {
		return err
	}
	app.initHTTP()
	return nil
}

func (app *Application) initServices() error {
	hashers, err := LoadHashers(app.cfg)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.limiter, err = newRateLimitBackend(app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	app.apiKeyService = service.NewAPIKeyService(app.db, hashers.Secrets, service.APIKeyConfig{
		DefaultRateLimit: app.cfg.APIKeyRateLimit,
		Window:           app.cfg.APIKeyRateWindow,
		StoreTimeout:     app.cfg.StoreTimeout,
		Limiter:          app.limiter.limiter,
	})
	app.passwordService = service.NewPasswordHistoryService(app.db, hashers.Passwords, service.PasswordHistoryConfig{
		Depth:        app.cfg.PasswordHistoryDepth,
		StoreTimeout: app.cfg.StoreTimeout,
	})
	app.keyRotationService = service.NewKeyRotationService(app.ring, 0)
	app.housekeepingService = service.NewHousekeepingService(
		app.ring,
		app.apiKeyService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	csrfKey := []byte(app.cfg.CSRFKey)
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			return err
		}
		app.logger.Warn("no CSRF key configured, using an ephemeral one; tokens are not valid across instances")
	}
	app.csrfIssuer, err = csrf.New(csrf.Config{
		Key:    csrfKey,
		TTL:    app.cfg.CSRFTTL,
		Secure: app.cfg.CSRFSecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize csrf: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(httpapi.Config{
		Issuer:          app.issuer,
		Keys:            app.keyRotationService,
		APIKeys:         app.apiKeyService,
		Passwords:       app.passwordService,
		CSRF:            app.csrfIssuer,
		Store:           app.db,
		PingRateLimiter: app.limiter.ping,
		Logger:          app.logger,
		Version:         BuildVersion,
		MaxTokenTTL:     app.cfg.MaxTokenTTL,
		PublicLimit:     perMinute(app.cfg.PublicRateLimit),
		StrictLimit:     perMinute(app.cfg.StrictRateLimit),
	})

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func perMinute(n int) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: n, Window: time.Minute, Burst: n}
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Issuer returns the token issuer.
func (app *Application) Issuer() *jwtx.Issuer { return app.issuer }

// Run starts the housekeeper and the HTTP server and blocks until a signal
// or a server failure.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("credcore starting", slog.Int("port", app.cfg.Port), slog.String("version", BuildVersion))

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains the HTTP server, stops the housekeeper and closes the
// rate limit backend and the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down credcore...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", slog.Any("err", err))
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", slog.Any("err", err))
		}
	}

	app.housekeepingService.Stop()

	if app.limiter.close != nil {
		if err := app.limiter.close(); err != nil {
			app.logger.Error("error closing rate limit backend", slog.Any("err", err))
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", slog.Any("err", err))
		return err
	}

	app.logger.Info("credcore stopped")
	return nil
}

// Close releases resources without serving. Used by tests that never call
// Run.
func (app *Application) Close() error {
	if app.limiter.close != nil {
		_ = app.limiter.close()
	}
	return app.db.Close()
}
