package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/util"
)

// Gate is the authentication middleware. Explicitly public paths pass
// unconditionally; every other path requires a resolved identity. API
// paths get a 401 JSON envelope on failure, page paths a redirect to
// the login path. Failure reasons are reported uniformly so callers
// cannot distinguish which verification step rejected them.
type Gate struct {
	extractor   *Extractor
	verifier    Verifier
	publicPaths []string
	apiPrefix   string
	loginPath   string
	logger      observability.Logger
	metrics     *observability.Metrics
}

// GateOption is a functional option for the gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger.
func WithGateLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithGateMetrics sets the metrics.
func WithGateMetrics(metrics *observability.Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// WithPublicPaths sets the public allow-list. Entries match exactly or
// as path prefixes.
func WithPublicPaths(paths ...string) GateOption {
	return func(g *Gate) {
		g.publicPaths = paths
	}
}

// WithAPIPrefix sets the prefix distinguishing API from page paths.
func WithAPIPrefix(prefix string) GateOption {
	return func(g *Gate) {
		g.apiPrefix = prefix
	}
}

// WithLoginPath sets the redirect target for unauthenticated page requests.
func WithLoginPath(path string) GateOption {
	return func(g *Gate) {
		g.loginPath = path
	}
}

// NewGate creates a new authentication gate.
func NewGate(extractor *Extractor, verifier Verifier, opts ...GateOption) *Gate {
	g := &Gate{
		extractor: extractor,
		verifier:  verifier,
		apiPrefix: "/api/",
		loginPath: "/login",
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve attempts to resolve an identity for the request without
// enforcing anything. Returns ErrNoCredentials when no token was
// presented, or the verification error.
func (g *Gate) Resolve(r *http.Request) (*Identity, error) {
	token, err := g.extractor.Extract(r)
	if err != nil {
		return nil, err
	}
	return g.verifier.Verify(r.Context(), token)
}

// Middleware returns the HTTP middleware enforcing the gate.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.isPublic(r.URL.Path) {
				// Public paths still get an identity when one resolves,
				// so handlers like /auth/me can see the caller.
				if identity, err := g.Resolve(r); err == nil {
					r = r.WithContext(ContextWithIdentity(r.Context(), identity))
				}
				next.ServeHTTP(w, r)
				return
			}

			identity, err := g.Resolve(r)
			if err != nil {
				g.reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// isPublic checks the allow-list with exact and prefix matching.
func (g *Gate) isPublic(path string) bool {
	for _, public := range g.publicPaths {
		if path == public || strings.HasPrefix(path, public) {
			return true
		}
	}
	return false
}

// reject terminates an unauthenticated request.
func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	reason := "invalid_credentials"
	if errors.Is(err, ErrNoCredentials) {
		reason = "no_credentials"
	}

	g.logger.WithContext(r.Context()).Warn("authentication failed",
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("reason", reason),
	)
	if g.metrics != nil {
		g.metrics.RecordAuthFailure(reason)
	}

	if strings.HasPrefix(r.URL.Path, g.apiPrefix) {
		util.RespondError(w, http.StatusUnauthorized,
			"Unauthorized. Please login to access this resource.")
		return
	}

	http.Redirect(w, r, g.loginPath, http.StatusFound)
}
