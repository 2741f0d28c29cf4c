// Package gateway assembles the request pipeline: request ID,
// logging, recovery, rate limiting, authentication, and role checks
// in front of a frozen route table.
package gateway

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/onestopcrm/crmgate/internal/account"
	"github.com/onestopcrm/crmgate/internal/auth"
	"github.com/onestopcrm/crmgate/internal/config"
	"github.com/onestopcrm/crmgate/internal/middleware"
	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/ratelimit"
	ratelimitstore "github.com/onestopcrm/crmgate/internal/ratelimit/store"
	"github.com/onestopcrm/crmgate/internal/reset"
	"github.com/onestopcrm/crmgate/internal/router"
	"github.com/onestopcrm/crmgate/internal/session"
	"github.com/onestopcrm/crmgate/internal/token"
)

// APIVersionPrefix is the path prefix of the versioned JSON API.
const APIVersionPrefix = "/api/v1"

// defaultPublicPaths bypass the authentication gate.
var defaultPublicPaths = []string{
	APIVersionPrefix + "/auth/login",
	APIVersionPrefix + "/auth/register",
	APIVersionPrefix + "/auth/forgot-password",
	APIVersionPrefix + "/auth/reset-password",
	"/healthz",
	"/metrics",
}

// Gateway wires the stores, services, and middleware chain into a
// single http.Handler.
type Gateway struct {
	cfg     *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	router  *router.Router

	accounts account.Store
	sessions session.Store
	tokens   *token.Service
	resets   *reset.Service
	gate     *auth.Gate
	handler  *AuthHandler
}

// Option configures a Gateway.
type Option func(*gatewayDeps)

// gatewayDeps holds injectable dependencies resolved before assembly.
type gatewayDeps struct {
	logger   observability.Logger
	metrics  *observability.Metrics
	redis    redis.UniversalClient
	accounts account.Store
	sessions session.Store
	resets   reset.Store
	limiter  ratelimit.Limiter
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *gatewayDeps) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *gatewayDeps) {
		d.metrics = m
	}
}

// WithRedisClient injects a Redis client instead of dialing one from
// the configuration.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(d *gatewayDeps) {
		d.redis = client
	}
}

// WithAccountStore injects the account store.
func WithAccountStore(store account.Store) Option {
	return func(d *gatewayDeps) {
		d.accounts = store
	}
}

// WithSessionStore injects the session store.
func WithSessionStore(store session.Store) Option {
	return func(d *gatewayDeps) {
		d.sessions = store
	}
}

// WithResetStore injects the reset token store.
func WithResetStore(store reset.Store) Option {
	return func(d *gatewayDeps) {
		d.resets = store
	}
}

// WithLimiter injects the rate limiter.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(d *gatewayDeps) {
		d.limiter = limiter
	}
}

// New builds a Gateway from the configuration. Stores not injected
// through options are constructed per the configured backends.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	deps := &gatewayDeps{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(deps)
	}

	if err := deps.resolve(cfg); err != nil {
		return nil, err
	}

	tokens := token.NewService(cfg.Auth.Secret, deps.accounts,
		token.WithTTL(cfg.Auth.TokenTTL),
	)
	resets := reset.NewService(deps.accounts, deps.resets,
		reset.WithTTL(cfg.Auth.ResetTokenTTL),
		reset.WithLogger(deps.logger),
	)

	extractor := auth.NewExtractor(deps.sessions,
		auth.WithTokenCookie(cfg.Auth.TokenCookie),
		auth.WithSessionCookie(cfg.Auth.SessionCookie),
	)

	publicPaths := cfg.Auth.PublicPaths
	if len(publicPaths) == 0 {
		publicPaths = defaultPublicPaths
	}
	// The login page must stay reachable or the unauthenticated
	// redirect would loop.
	publicPaths = append(publicPaths, cfg.Auth.LoginPath)
	gate := auth.NewGate(extractor, tokens,
		auth.WithGateLogger(deps.logger),
		auth.WithGateMetrics(deps.metrics),
		auth.WithPublicPaths(publicPaths...),
		auth.WithAPIPrefix(cfg.Server.APIPrefix),
		auth.WithLoginPath(cfg.Auth.LoginPath),
	)

	handler := NewAuthHandler(deps.accounts, deps.sessions, tokens, resets,
		WithAuthLogger(deps.logger),
		WithCookieNames(cfg.Auth.TokenCookie, cfg.Auth.SessionCookie),
	)

	g := &Gateway{
		cfg:      cfg,
		logger:   deps.logger,
		metrics:  deps.metrics,
		accounts: deps.accounts,
		sessions: deps.sessions,
		tokens:   tokens,
		resets:   resets,
		gate:     gate,
		handler:  handler,
	}

	g.router = router.New(router.WithBasePath(cfg.Server.BasePath))
	g.router.Use(
		middleware.RequestID(),
		middleware.Logging(deps.logger, deps.metrics),
		middleware.Recovery(deps.logger),
	)
	if cfg.RateLimit.Enabled {
		ips := middleware.NewClientIPExtractor(cfg.Server.TrustedProxies)
		g.router.Use(ratelimit.Middleware(deps.limiter,
			ratelimit.WithClientIPExtractor(ips),
			ratelimit.WithMiddlewareLogger(deps.logger),
			ratelimit.WithMiddlewareMetrics(deps.metrics),
		))
	}
	g.router.Use(gate.Middleware())

	g.registerBuiltinRoutes()

	return g, nil
}

// resolve fills missing dependencies per the configured backends.
func (d *gatewayDeps) resolve(cfg *config.Config) error {
	needsRedis := cfg.Auth.Store == config.StoreRedis ||
		cfg.RateLimit.Store == config.StoreRedis
	if needsRedis && d.redis == nil {
		d.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if d.accounts == nil {
		switch cfg.Auth.Store {
		case config.StoreRedis:
			d.accounts = account.NewRedisStore(d.redis)
		default:
			d.accounts = account.NewMemoryStore()
		}
	}
	if d.sessions == nil {
		switch cfg.Auth.Store {
		case config.StoreRedis:
			d.sessions = session.NewRedisStore(d.redis)
		default:
			d.sessions = session.NewMemoryStore()
		}
	}
	if d.resets == nil {
		switch cfg.Auth.Store {
		case config.StoreRedis:
			d.resets = reset.NewRedisStore(d.redis)
		default:
			d.resets = reset.NewMemoryStore()
		}
	}

	if d.limiter == nil && cfg.RateLimit.Enabled {
		limiter, err := buildLimiter(cfg, d.redis)
		if err != nil {
			return err
		}
		d.limiter = limiter
	}

	return nil
}

// buildLimiter constructs the configured rate limiter.
func buildLimiter(cfg *config.Config, client redis.UniversalClient) (ratelimit.Limiter, error) {
	rlCfg := ratelimit.Config{
		Algorithm: ratelimit.Algorithm(cfg.RateLimit.Algorithm),
		Requests:  cfg.RateLimit.Requests,
		Period:    cfg.RateLimit.Period,
	}

	if rlCfg.Algorithm == ratelimit.AlgorithmTokenBucket {
		return ratelimit.NewTokenBucketLimiter(rlCfg), nil
	}

	switch cfg.RateLimit.Store {
	case config.StoreFile:
		st, err := ratelimitstore.NewFileStore(cfg.RateLimit.Directory)
		if err != nil {
			return nil, fmt.Errorf("build rate limiter: %w", err)
		}
		return ratelimit.NewSlidingLogLimiter(st, rlCfg), nil
	case config.StoreRedis:
		return ratelimit.NewRedisLimiter(client, rlCfg), nil
	default:
		return ratelimit.NewSlidingLogLimiter(ratelimitstore.NewMemoryStore(), rlCfg), nil
	}
}

// registerBuiltinRoutes mounts the authentication endpoints and the
// operational endpoints.
func (g *Gateway) registerBuiltinRoutes() {
	authPrefix := APIVersionPrefix + "/auth"
	g.router.Post(authPrefix+"/login", g.handler.Login)
	g.router.Post(authPrefix+"/register", g.handler.Register)
	g.router.Post(authPrefix+"/logout", g.handler.Logout)
	g.router.Post(authPrefix+"/refresh", g.handler.Refresh)
	g.router.Post(authPrefix+"/forgot-password", g.handler.ForgotPassword)
	g.router.Post(authPrefix+"/reset-password", g.handler.ResetPassword)
	g.router.Get(authPrefix+"/me", g.handler.Me)

	g.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	g.router.Handle(http.MethodGet, "/metrics", observability.MetricsHandler())
}

// Mount registers a backend route. When roles are given, the route is
// wrapped in a role gate; admin always passes.
func (g *Gateway) Mount(method, pattern string, handler http.HandlerFunc, roles ...string) {
	if len(roles) == 0 {
		g.router.HandleFunc(method, pattern, handler)
		return
	}

	roleGate := auth.RequireRoles(roles,
		auth.WithRoleGateLogger(g.logger),
		auth.WithRoleGateMetrics(g.metrics),
	)
	g.router.HandleFunc(method, pattern, handler, roleGate.Middleware())
}

// Handler returns the assembled pipeline.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Accounts exposes the account store, for seeding and administration.
func (g *Gateway) Accounts() account.Store {
	return g.accounts
}

// Tokens exposes the token service.
func (g *Gateway) Tokens() *token.Service {
	return g.tokens
}
