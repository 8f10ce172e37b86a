package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /posts/123/vote to
// /posts/{id}/vote.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":        true,
		"/feed":    true,
		"/health":  true,
		"/ready":   true,
		"/metrics": true,
	}

	if staticRoutes[path] {
		return path
	}

	// /posts/{id}/vote, /posts/{id}/like, /posts/{id}/score, /posts/{id}
	if strings.HasPrefix(path, "/posts/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 {
			switch parts[3] {
			case "vote", "like", "score":
				return "/posts/{id}/" + parts[3]
			}
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/posts/{id}"
		}
	}

	// /communities/{id}/scores (WebSocket subscribe)
	if strings.HasPrefix(path, "/communities/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "scores" {
			return "/communities/{id}/scores"
		}
	}

	// Fallback: return as-is for unknown patterns so new routes still report
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap returns the wrapped http.ResponseWriter.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()
			normalizedPath := normalizePath(r.URL.Path)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
