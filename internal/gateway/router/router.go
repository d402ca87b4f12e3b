// Package router wires up the API gateway routes and applies the middleware
// chain (RequestID → Metrics → CORS → Auth → RateLimit).
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/doclibrary/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/doclibrary/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/middleware"
)

// New builds the full gateway HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search               → searcher
//	GET    /api/v1/documents            → searcher (browse)
//	GET    /api/v1/documents/{id}       → searcher (lookup)
//	POST   /api/v1/documents            → ingestion   [upload]
//	DELETE /api/v1/documents/{id}       → ingestion   [manage]
//	GET    /api/v1/cache/stats          → searcher
//	POST   /api/v1/cache/invalidate     → searcher    [manage]
//	GET    /api/v1/analytics            → analytics
//	GET    /api/v1/analytics/history    → analytics
//	POST   /api/v1/admin/keys           → create key  [manage]
//	GET    /api/v1/admin/keys           → list keys   [manage]
//	DELETE /api/v1/admin/keys/{id}      → revoke key  [manage]
//	GET    /health, /health/live, /health/ready
func New(h *gwhandler.Handler, validator gwmw.KeyValidator, limiter *ratelimit.Limiter, checker *health.Checker, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	checker.Mount(mux)

	upload := gwmw.Require(gwmw.CanUpload)
	manage := gwmw.Require(gwmw.CanManage)

	mux.HandleFunc("GET /api/v1/search", h.ProxySearch)
	mux.HandleFunc("GET /api/v1/documents", h.ProxySearch)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.ProxySearch)
	mux.Handle("POST /api/v1/documents", upload(http.HandlerFunc(h.ProxyIngest)))
	mux.Handle("DELETE /api/v1/documents/{id}", manage(http.HandlerFunc(h.ProxyIngest)))

	mux.HandleFunc("GET /api/v1/cache/stats", h.ProxySearch)
	mux.Handle("POST /api/v1/cache/invalidate", manage(http.HandlerFunc(h.ProxySearch)))

	mux.HandleFunc("GET /api/v1/analytics", h.ProxyAnalytics)
	mux.HandleFunc("GET /api/v1/analytics/history", h.ProxyAnalytics)

	mux.Handle("POST /api/v1/admin/keys", manage(http.HandlerFunc(h.CreateAPIKey)))
	mux.Handle("GET /api/v1/admin/keys", manage(http.HandlerFunc(h.ListAPIKeys)))
	mux.Handle("DELETE /api/v1/admin/keys/{id}", manage(http.HandlerFunc(h.RevokeAPIKey)))

	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter)(chain)
	chain = gwmw.Auth(validator)(chain)
	chain = gwmw.CORS(gwmw.DefaultCORSConfig())(chain)
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.RequestID(chain)

	return chain
}
