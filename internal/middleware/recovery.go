package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/util"
)

// Recovery returns middleware that converts handler panics into a 500
// envelope instead of tearing down the connection.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithContext(r.Context()).Error("handler panic",
						observability.Any("panic", rec),
						observability.String("method", r.Method),
						observability.String("path", r.URL.Path),
						observability.String("stack", string(debug.Stack())),
					)
					util.RespondError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
