package middleware

import (
	"net/http"
	"time"

	"github.com/mark-c-hall/posterpalette/internal/telemetry"
)

// Metrics records one sample per request, labelled by the matched route
// pattern so arbitrary paths do not explode label cardinality.
func Metrics(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(r.Context(), r.Method, route, wrapped.status, time.Since(start))
		})
	}
}
