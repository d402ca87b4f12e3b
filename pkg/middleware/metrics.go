// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
)

// Metrics records request count, latency and in-flight requests. Paths are
// reduced to route templates before labelling.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// routes maps a collection prefix to the template used for paths one
// segment below it.
var routes = map[string]string{
	"/api/v1/documents/":  "/api/v1/documents/{id}",
	"/api/v1/admin/keys/": "/api/v1/admin/keys/{id}",
}

var staticRoutes = map[string]bool{
	"/api/v1/search":            true,
	"/api/v1/documents":         true,
	"/api/v1/cache/stats":       true,
	"/api/v1/cache/invalidate":  true,
	"/api/v1/analytics":         true,
	"/api/v1/analytics/history": true,
	"/api/v1/admin/keys":        true,
	"/health":                   true,
	"/health/live":              true,
	"/health/ready":             true,
}

// routeLabel returns the route template for path. Anything unknown,
// including scanner noise, shares one label.
func routeLabel(path string) string {
	if staticRoutes[path] {
		return path
	}
	for prefix, template := range routes {
		rest, ok := strings.CutPrefix(path, prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			return template
		}
	}
	return "unmatched"
}
