// Package middleware provides the ambient HTTP middleware of the
// pipeline: request IDs, access logging, panic recovery, and client
// IP extraction.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/util"
)

// RequestID returns middleware that ensures every request carries a
// request ID. An incoming X-Request-Id header is honored; otherwise a
// new UUID is generated. The ID is echoed on the response and stored
// in the request context for logging.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(util.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set(util.HeaderXRequestID, requestID)
			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
