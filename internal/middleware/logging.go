package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/util"
)

// Logging returns middleware that logs each request with its status
// and duration, and records pipeline metrics when provided.
func Logging(logger observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := util.NewStatusCapturingResponseWriter(w)

			next.ServeHTTP(sw, r)

			duration := time.Since(start)
			logger.WithContext(r.Context()).Info("request completed",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", sw.StatusCode),
				observability.Duration("duration", duration),
				observability.String("remote_addr", r.RemoteAddr),
			)

			if metrics != nil {
				metrics.RecordRequest(r.Method, strconv.Itoa(sw.StatusCode), duration)
			}
		})
	}
}
