package auth

import (
	"net/http"

	"github.com/onestopcrm/crmgate/internal/account"
	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/util"
)

// RoleGate restricts a route to a set of roles. It always implies the
// authentication requirement: a request without a resolved identity is
// rejected with 401 even if the auth gate was not installed before it.
// The admin role passes every gate regardless of the configured set.
type RoleGate struct {
	allowed map[string]bool
	logger  observability.Logger
	metrics *observability.Metrics
}

// RoleGateOption is a functional option for the role gate.
type RoleGateOption func(*RoleGate)

// WithRoleGateLogger sets the logger.
func WithRoleGateLogger(logger observability.Logger) RoleGateOption {
	return func(g *RoleGate) {
		g.logger = logger
	}
}

// WithRoleGateMetrics sets the metrics.
func WithRoleGateMetrics(metrics *observability.Metrics) RoleGateOption {
	return func(g *RoleGate) {
		g.metrics = metrics
	}
}

// RequireRoles creates a role gate admitting the given roles.
func RequireRoles(roles []string, opts ...RoleGateOption) *RoleGate {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	g := &RoleGate{
		allowed: allowed,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the HTTP middleware enforcing the gate.
func (g *RoleGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				util.RespondError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}

			if !g.permits(identity) {
				g.logger.WithContext(r.Context()).Warn("role check failed",
					observability.String("path", r.URL.Path),
					observability.String("role", identity.Role),
				)
				if g.metrics != nil {
					g.metrics.RecordRoleDenied()
				}
				util.RespondError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// permits reports whether the identity satisfies the gate.
func (g *RoleGate) permits(identity *Identity) bool {
	if identity.Role == account.RoleAdmin {
		return true
	}
	if len(g.allowed) == 0 {
		return true
	}
	return g.allowed[identity.Role]
}
