package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are the mux patterns served as-is; anything else gets
// normalized so per-id paths cannot blow up metric cardinality.
var staticRoutes = map[string]bool{
	"/":          true,
	"/recommend": true,
	"/feedback":  true,
	"/ads/serve": true,
	"/ads/track": true,
	"/policies":  true,
	"/health":    true,
	"/ready":     true,
	"/metrics":   true,
}

// normalizePath maps paths with dynamic segments to route patterns, so
// /events/evt-42 becomes /events/{id}.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	for _, prefix := range []string{"/events/", "/campaigns/"} {
		if strings.HasPrefix(path, prefix) {
			parts := strings.Split(path, "/")
			if len(parts) == 3 && parts[2] != "" {
				return prefix + "{id}"
			}
		}
	}
	// Unknown routes pass through so a new endpoint still shows up.
	return path
}

// metricsResponseWriter captures status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer for UpdateResponseContext traversal.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics records duration, sizes, and counts per request. Health
// probes are excluded since load balancers hit them constantly.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := max(r.ContentLength, 0)

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
