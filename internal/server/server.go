// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockhaven/statusd/internal/cache"
	"github.com/blockhaven/statusd/internal/config"
	"github.com/blockhaven/statusd/internal/ratelimit"
	"github.com/blockhaven/statusd/internal/registry"
)

// New creates a new Server instance with the provided status cache, server
// registry, and configuration.
func New(statusCache *cache.Service, reg *registry.Repository, cfg *config.Config) *Server {
	return &Server{
		cache:      statusCache,
		registry:   reg,
		limiter:    ratelimit.New(cfg.RateLimit.Count, cfg.RateLimit.Window),
		authToken:  cfg.Server.AuthToken,
		trustProxy: cfg.Server.TrustProxy,
		lookupTTL:  cfg.Cache.LookupTTL,
		listTTL:    cfg.Cache.ListTTL,
	}
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/lookup", s.RateLimitMiddleware(http.HandlerFunc(s.handleLookup)))
	mux.Handle("GET /api/servers", http.HandlerFunc(s.handleServers))

	mux.Handle("GET /api/admin/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleAdminList)))
	mux.Handle("POST /api/admin/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleAdminUpsert)))
	mux.Handle("DELETE /api/admin/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleAdminDelete)))

	mux.Handle("GET /metrics", AdminAuthMiddleware(s.authToken, promhttp.Handler()))
	mux.Handle("GET /healthz", http.HandlerFunc(s.handleHealthz))

	return s.LoggingMiddleware(mux)
}
