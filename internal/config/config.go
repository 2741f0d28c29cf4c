// Package config defines the gateway configuration model and its
// YAML loader, environment substitution, validation, and file
// watching.
package config

import (
	"time"

	"github.com/onestopcrm/crmgate/internal/ratelimit"
	"github.com/onestopcrm/crmgate/internal/util"
)

// Store backend names shared by the account, session, reset token,
// and rate limit stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Address is the listen address, host:port.
	Address string `yaml:"address"`

	// BasePath is stripped from incoming request paths before route
	// matching, e.g. a deployment subdirectory.
	BasePath string `yaml:"basePath"`

	// APIPrefix marks paths that receive JSON errors instead of
	// login redirects.
	APIPrefix string `yaml:"apiPrefix"`

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For
	// headers are honored.
	TrustedProxies []string `yaml:"trustedProxies"`

	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AuthConfig holds token and session settings.
type AuthConfig struct {
	// Secret signs issued tokens. Required.
	Secret string `yaml:"secret"`

	// TokenTTL is the signed token lifetime.
	TokenTTL time.Duration `yaml:"tokenTTL"`

	// ResetTokenTTL is the password reset token lifetime.
	ResetTokenTTL time.Duration `yaml:"resetTokenTTL"`

	// LoginPath is where unauthenticated page requests are sent.
	LoginPath string `yaml:"loginPath"`

	// PublicPaths bypass the authentication gate.
	PublicPaths []string `yaml:"publicPaths"`

	// TokenCookie and SessionCookie name the fallback credential
	// cookies.
	TokenCookie   string `yaml:"tokenCookie"`
	SessionCookie string `yaml:"sessionCookie"`

	// Store selects the account, session, and reset token backend:
	// memory or redis.
	Store string `yaml:"store"`
}

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Algorithm is sliding_log or token_bucket.
	Algorithm string `yaml:"algorithm"`

	// Requests per Period per (client address, path) pair.
	Requests int           `yaml:"requests"`
	Period   time.Duration `yaml:"period"`

	// Store selects the timestamp backend for the sliding log:
	// memory, file, or redis.
	Store string `yaml:"store"`

	// Directory is the file store root when Store is file.
	Directory string `yaml:"directory"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			APIPrefix:       "/api/",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:      30 * time.Minute,
			ResetTokenTTL: time.Hour,
			LoginPath:     "/login",
			TokenCookie:   "auth_token",
			SessionCookie: "crm_session",
			Store:         StoreMemory,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Algorithm: string(ratelimit.AlgorithmSlidingLog),
			Requests:  100,
			Period:    time.Minute,
			Store:     StoreMemory,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = def.Server.APIPrefix
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if c.Auth.ResetTokenTTL <= 0 {
		c.Auth.ResetTokenTTL = def.Auth.ResetTokenTTL
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = def.Auth.LoginPath
	}
	if c.Auth.TokenCookie == "" {
		c.Auth.TokenCookie = def.Auth.TokenCookie
	}
	if c.Auth.SessionCookie == "" {
		c.Auth.SessionCookie = def.Auth.SessionCookie
	}
	if c.Auth.Store == "" {
		c.Auth.Store = def.Auth.Store
	}

	if c.RateLimit.Algorithm == "" {
		c.RateLimit.Algorithm = def.RateLimit.Algorithm
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = def.RateLimit.Requests
	}
	if c.RateLimit.Period <= 0 {
		c.RateLimit.Period = def.RateLimit.Period
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = def.RateLimit.Store
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = def.Logging.Output
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return util.NewConfigError("auth.secret", "is required")
	}
	if len(c.Auth.Secret) < 16 {
		return util.NewConfigError("auth.secret", "must be at least 16 characters")
	}

	switch c.Auth.Store {
	case StoreMemory:
	case StoreRedis:
		if len(c.Redis.Addrs) == 0 {
			return util.NewConfigError("redis.addrs", "required when auth.store is redis")
		}
	default:
		return util.NewConfigError("auth.store", "must be memory or redis")
	}

	switch ratelimit.Algorithm(c.RateLimit.Algorithm) {
	case ratelimit.AlgorithmSlidingLog, ratelimit.AlgorithmTokenBucket:
	default:
		return util.NewConfigError("rateLimit.algorithm", "must be sliding_log or token_bucket")
	}

	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreFile:
		if c.RateLimit.Directory == "" {
			return util.NewConfigError("rateLimit.directory", "required when rateLimit.store is file")
		}
	case StoreRedis:
		if len(c.Redis.Addrs) == 0 {
			return util.NewConfigError("redis.addrs", "required when rateLimit.store is redis")
		}
	default:
		return util.NewConfigError("rateLimit.store", "must be memory, file, or redis")
	}

	return nil
}
