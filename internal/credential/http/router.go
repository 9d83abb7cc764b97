package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/credcore/api/credential" // Swagger docs
	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/pkg/csrf"
	"github.com/aussiebroadwan/credcore/pkg/httpx"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Scopes checked by the router.
const (
	ScopeAdminRead      = "admin:read"
	ScopeAdminWrite     = "admin:write"
	ScopeTokensIssue    = "tokens:issue"
	ScopePasswordsWrite = "passwords:write"
)

// DefaultMaxTokenTTL caps the lifetime a caller may request for a token.
const DefaultMaxTokenTTL = 24 * time.Hour

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// Config carries the router's dependencies.
type Config struct {
	Issuer    *jwtx.Issuer
	Keys      *service.KeyRotationService
	APIKeys   *service.APIKeyService
	Passwords *service.PasswordHistoryService
	CSRF      *csrf.Issuer
	Store     store.Store

	// PingRateLimiter is checked by /readyz when rate windows live outside
	// the store. Optional.
	PingRateLimiter func(ctx context.Context) error

	Logger      *slog.Logger
	Version     string
	MaxTokenTTL time.Duration

	// Per-IP limits. Zero values use httpx.PublicLimit and httpx.StrictLimit.
	PublicLimit httpx.RateLimitConfig
	StrictLimit httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	cfg       Config
	startTime time.Time
	authn     httpx.Middleware
}

// NewRouter builds the router and registers every route.
func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxTokenTTL <= 0 {
		cfg.MaxTokenTTL = DefaultMaxTokenTTL
	}
	if !cfg.PublicLimit.Valid() {
		cfg.PublicLimit = httpx.PublicLimit
	}
	if !cfg.StrictLimit.Valid() {
		cfg.StrictLimit = httpx.StrictLimit
	}

	r := &Router{
		Mux:       http.NewServeMux(),
		cfg:       cfg,
		startTime: time.Now(),
	}
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(cfg.Logger),
		httpx.Recover(func(req *http.Request, v any) {
			slogx.FromContext(req.Context()).Error("handler panic", slog.Any("panic", v))
		}),
	}

	authnCfg := httpx.AuthnConfig{
		Tokens:  cfg.Issuer,
		OnError: writeAuthnError,
	}
	if cfg.APIKeys != nil {
		authnCfg.APIKeys = apiKeyAuthenticator{svc: cfg.APIKeys}
	}
	r.authn = httpx.Authn(authnCfg)

	r.applyRoutes()
	return r
}

func (r *Router) applyRoutes() {
	r.registerPublic()
	r.registerKeys()
	r.registerTokens()
	r.registerAPIKeys()
	r.registerPasswords()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						credcore API
//	@version					0.1.0
//	@description				Credential lifecycle service: signing keys, JWTs, API keys, password history and CSRF tokens.
//	@description				Tokens are verified against the key set published at /.well-known/jwks.json.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
//
//	@securityDefinitions.apikey	APIKeyAuth
//	@in							header
//	@name						X-API-Key
//	@description				API key. Format: "ck_{key_id}.{secret}". May also be sent as "Authorization: ApiKey {key}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured authenticates the caller, then applies extra middleware in order.
func (r *Router) secured(h http.Handler, mws ...httpx.Middleware) http.Handler {
	chain := append([]httpx.Middleware{r.authn}, mws...)
	return httpx.Chain(h, chain...)
}

func (r *Router) registerPublic() {
	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.cfg.Issuer),
			httpx.RateLimitByIP(r.cfg.PublicLimit),
		),
	)

	if r.cfg.CSRF != nil {
		r.Mux.Handle("GET /v1/csrf",
			httpx.Chain(CSRFHandler(r.cfg.CSRF),
				httpx.RateLimitByIP(r.cfg.PublicLimit),
			),
		)
	}
}

func (r *Router) registerKeys() {
	if r.cfg.Keys == nil {
		return
	}
	h := &KeysHandler{Keys: r.cfg.Keys}

	r.Mux.Handle("POST /v1/keys/rotate", r.secured(http.HandlerFunc(h.HandleRotate),
		httpx.RequireAnyScope(ScopeAdminWrite),
		httpx.RateLimitByPrincipal(r.cfg.StrictLimit),
	))
	r.Mux.Handle("GET /v1/keys", r.secured(http.HandlerFunc(h.HandleList),
		httpx.RequireAnyScope(ScopeAdminRead, ScopeAdminWrite),
	))
	r.Mux.Handle("POST /v1/keys/sweep", r.secured(http.HandlerFunc(h.HandleSweep),
		httpx.RequireAnyScope(ScopeAdminWrite),
		httpx.RateLimitByPrincipal(r.cfg.StrictLimit),
	))
	r.Mux.Handle("POST /v1/keys/{kid}/revoke", r.secured(http.HandlerFunc(h.HandleRevoke),
		httpx.RequireAnyScope(ScopeAdminWrite),
		httpx.RateLimitByPrincipal(r.cfg.StrictLimit),
	))
}

func (r *Router) registerTokens() {
	h := &TokensHandler{Issuer: r.cfg.Issuer, MaxTTL: r.cfg.MaxTokenTTL}

	r.Mux.Handle("POST /v1/tokens", r.secured(http.HandlerFunc(h.HandleIssue),
		httpx.RequireAnyScope(ScopeTokensIssue),
	))
	r.Mux.Handle("POST /v1/tokens/verify", r.secured(http.HandlerFunc(h.HandleVerify)))
}

func (r *Router) registerAPIKeys() {
	if r.cfg.APIKeys == nil {
		return
	}
	h := &APIKeysHandler{APIKeys: r.cfg.APIKeys}

	r.Mux.Handle("POST /v1/apikeys", r.secured(http.HandlerFunc(h.HandleIssue),
		httpx.RequireAnyScope(ScopeAdminWrite),
		httpx.RateLimitByPrincipal(r.cfg.StrictLimit),
	))
	r.Mux.Handle("GET /v1/apikeys", r.secured(http.HandlerFunc(h.HandleList),
		httpx.RequireAnyScope(ScopeAdminRead, ScopeAdminWrite),
	))
	r.Mux.Handle("GET /v1/apikeys/self", r.secured(http.HandlerFunc(h.HandleSelf),
		httpx.RequireKind(httpx.PrincipalAPIKey),
	))
	r.Mux.Handle("POST /v1/apikeys/{id}/revoke", r.secured(http.HandlerFunc(h.HandleRevoke),
		httpx.RequireAnyScope(ScopeAdminWrite),
	))
	r.Mux.Handle("DELETE /v1/apikeys/{id}", r.secured(http.HandlerFunc(h.HandlePurge),
		httpx.RequireAnyScope(ScopeAdminWrite),
	))
}

func (r *Router) registerPasswords() {
	if r.cfg.Passwords == nil {
		return
	}
	h := &PasswordsHandler{Passwords: r.cfg.Passwords}

	record := []httpx.Middleware{
		httpx.RequireAnyScope(ScopePasswordsWrite),
		httpx.RateLimitByPrincipal(r.cfg.StrictLimit),
	}
	if r.cfg.CSRF != nil {
		record = append(record, r.cfg.CSRF.Protect())
	}
	r.Mux.Handle("POST /v1/users/{id}/password-history", r.secured(http.HandlerFunc(h.HandleRecord), record...))
	r.Mux.Handle("DELETE /v1/users/{id}/password-history", r.secured(http.HandlerFunc(h.HandleForget),
		httpx.RequireAnyScope(ScopePasswordsWrite),
	))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.cfg.Version))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.cfg.Version, r.cfg.Store, r.cfg.Issuer.Ring(), r.cfg.PingRateLimiter))
}
