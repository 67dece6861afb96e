package server

import (
	"time"

	"github.com/blockhaven/statusd/internal/cache"
	"github.com/blockhaven/statusd/internal/ratelimit"
	"github.com/blockhaven/statusd/internal/registry"
)

// Server holds the dependencies and configuration required to handle HTTP
// requests for the status service.
type Server struct {
	// cache owns the status map and its single-flight discipline; every
	// lookup goes through it.
	cache *cache.Service

	// registry provides the configured server list rendered by the bulk
	// endpoint and managed by the admin CRUD routes.
	registry *registry.Repository

	// limiter is the fixed-window counter guarding the public lookup path.
	limiter *ratelimit.Limiter

	// authToken is the secret token required to access administrative API
	// endpoints and /metrics.
	authToken string

	// lookupTTL is the cache freshness window used by the public lookup path.
	lookupTTL time.Duration

	// listTTL is the cache freshness window used by the bulk server list.
	listTTL time.Duration

	// trustProxy indicates whether the server should trust headers like
	// X-Forwarded-For when determining the client's real IP address.
	trustProxy bool
}
