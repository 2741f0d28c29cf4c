package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/onestopcrm/crmgate/internal/middleware"
	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/util"
)

const rejectedMessage = "Too many requests. Please try again later."

// MiddlewareOption configures the rate limit middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	keyFunc KeyFunc
	ips     *middleware.ClientIPExtractor
	logger  observability.Logger
	metrics *observability.Metrics
}

// WithKeyFunc overrides the key derivation.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.keyFunc = fn
	}
}

// WithClientIPExtractor sets the client IP extractor.
func WithClientIPExtractor(e *middleware.ClientIPExtractor) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.ips = e
	}
}

// WithMiddlewareLogger sets the logger.
func WithMiddlewareLogger(logger observability.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = logger
	}
}

// WithMiddlewareMetrics sets the metrics collector.
func WithMiddlewareMetrics(m *observability.Metrics) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.metrics = m
	}
}

// Middleware enforces the limiter before the request reaches its
// handler. Rejected requests receive 429 with a Retry-After header;
// limiter backend failures fail open so a broken store cannot take
// the gateway down.
func Middleware(limiter Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		keyFunc: AddressPathKeyFunc,
		ips:     middleware.NewClientIPExtractor(nil),
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := cfg.ips.Extract(r)
			key := cfg.keyFunc(r, clientIP)

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				cfg.logger.Error("rate limit check failed",
					observability.String("path", r.URL.Path),
					observability.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				if cfg.metrics != nil {
					cfg.metrics.RecordRateLimited(r.URL.Path)
				}
				cfg.logger.Warn("request rate limited",
					observability.String("client_ip", clientIP),
					observability.String("path", r.URL.Path),
					observability.Int("limit", result.Limit),
				)
				w.Header().Set(util.HeaderRetryAfter, fmt.Sprintf("%d", int(result.RetryAfter.Seconds())))
				util.RespondError(w, http.StatusTooManyRequests, rejectedMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
