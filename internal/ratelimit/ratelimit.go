// Package ratelimit implements the fixed-window request counter guarding
// the public lookup endpoint. It is abuse damping, not quota enforcement:
// state is in-memory and lost on restart.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Decision is the outcome of one Check call.
type Decision struct {
	// ResetIn is the time left until the client's window resets, usable
	// as a Retry-After hint.
	ResetIn   time.Duration
	Remaining int
	Allowed   bool
}

// window is one client's record for the current fixed window. Records are
// created lazily and overwritten each window, never collected; cardinality
// is bounded by the set of client addresses actually seen.
type window struct {
	resetAt time.Time
	count   int
}

// Limiter counts requests per client in non-overlapping fixed windows.
// Clients are keyed by xxhash of their identifier so raw addresses are not
// retained.
type Limiter struct {
	clients map[uint64]*window
	now     func() time.Time
	mu      sync.Mutex
	limit   int
	period  time.Duration
}

// New creates a limiter allowing limit requests per period for each client.
func New(limit int, period time.Duration) *Limiter {
	return &Limiter{
		clients: make(map[uint64]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Check records one request for clientID and reports whether it is within
// budget. The limit-th request in a window is allowed, the next rejected.
// Rejected requests still count, and carry the time until the window resets.
func (l *Limiter) Check(clientID string) Decision {
	key := xxhash.Sum64String(clientID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.clients[key]
	if !ok || !now.Before(rec.resetAt) {
		l.clients[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return Decision{Allowed: true, Remaining: l.limit - 1, ResetIn: l.period}
	}

	rec.count++

	remaining := l.limit - rec.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   rec.count <= l.limit,
		Remaining: remaining,
		ResetIn:   rec.resetAt.Sub(now),
	}
}
