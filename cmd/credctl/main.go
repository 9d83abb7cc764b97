// Command credctl administers a credcore deployment. Key, API key and
// password history commands open the configured store directly; jwks and
// health can instead query a running server with --server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/credcore/internal/credential/app"
	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "credctl",
	Short:         "credcore admin CLI",
	Long:          "Administer signing keys, API keys and password history for credcore.\nConfiguration is read the same way as the server (CRED_CONFIG_FILE, then CRED_* variables).",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(jwksCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(tokensCmd())
	rootCmd.AddCommand(apikeysCmd())
	rootCmd.AddCommand(passwordsCmd())
}

// local is the set of components a command opens against the store.
type local struct {
	cfg    app.Config
	logger *slog.Logger
	db     store.Store
	ring   *jwtx.KeyRing
}

func openLocal(ctx context.Context) (*local, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var out io.Writer = io.Discard
	if verbose {
		out = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, nil))

	db, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	ring, err := app.InitKeyRing(ctx, cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &local{cfg: cfg, logger: logger, db: db, ring: ring}, nil
}

func (l *local) Close() error { return l.db.Close() }

func (l *local) keys() *service.KeyRotationService {
	return service.NewKeyRotationService(l.ring, 0)
}

func (l *local) apiKeys() (*service.APIKeyService, error) {
	h, err := app.LoadHashers(l.cfg)
	if err != nil {
		return nil, err
	}
	return service.NewAPIKeyService(l.db, h.Secrets, service.APIKeyConfig{
		DefaultRateLimit: l.cfg.APIKeyRateLimit,
		Window:           l.cfg.APIKeyRateWindow,
		StoreTimeout:     l.cfg.StoreTimeout,
	}), nil
}

func (l *local) passwords() (*service.PasswordHistoryService, error) {
	h, err := app.LoadHashers(l.cfg)
	if err != nil {
		return nil, err
	}
	return service.NewPasswordHistoryService(l.db, h.Passwords, service.PasswordHistoryConfig{
		Depth:        l.cfg.PasswordHistoryDepth,
		StoreTimeout: l.cfg.StoreTimeout,
	}), nil
}

// withLocal opens the store for the duration of fn.
func withLocal(cmd *cobra.Command, fn func(ctx context.Context, l *local) error) error {
	ctx := cmd.Context()
	l, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(ctx, l)
}
