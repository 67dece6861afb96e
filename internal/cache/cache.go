// Package cache owns the time-bounded status cache. Concurrent lookups of
// the same address are coalesced into a single probe, and failed probes are
// cached like successes so an offline server is not hammered.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/blockhaven/statusd/internal/geoip"
	"github.com/blockhaven/statusd/internal/metrics"
	"github.com/blockhaven/statusd/internal/probe"
	"github.com/blockhaven/statusd/internal/status"
)

// ProbeFunc issues one probe for a target. It matches (*probe.Prober).Probe
// and is injectable for tests.
type ProbeFunc func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error)

// entry holds one cached result. Entries are overwritten in place and never
// deleted; key cardinality is bounded by the set of addresses ever queried.
type entry struct {
	result    status.StatusResult
	expiresAt time.Time
}

// Service is the status cache. One instance owns the map, its lock, and the
// single-flight group for the whole process.
type Service struct {
	probe   ProbeFunc
	geo     *geoip.Provider
	entries map[string]entry
	mu      sync.RWMutex
	flight  singleflight.Group
}

// New creates a cache service probing through probeFn. geo may be nil to
// disable country enrichment.
func New(probeFn ProbeFunc, geo *geoip.Provider) *Service {
	return &Service{
		probe:   probeFn,
		geo:     geo,
		entries: make(map[string]entry),
	}
}

// Get returns the current status for one target. A fresh cache entry is
// returned immediately; otherwise one probe runs for the key no matter how
// many callers arrive at once, and all of them receive its result. The
// caller never sees an error: probe failures come back as an offline
// StatusResult with a reason.
func (s *Service) Get(ctx context.Context, target status.ServerTarget, ttl time.Duration) status.StatusResult {
	key := target.Key()

	if res, ok := s.lookup(key); ok {
		metrics.CacheHits.Inc()
		return res
	}
	metrics.CacheMisses.Inc()

	v, _, shared := s.flight.Do(key, func() (interface{}, error) {
		return s.refresh(ctx, target, ttl), nil
	})
	if shared {
		metrics.FlightsShared.Inc()
	}

	return v.(status.StatusResult)
}

// GetMany resolves a batch of targets concurrently and returns a map keyed
// by "host:port". Duplicate targets are collapsed before dispatch, and each
// key resolves independently: one slow or unreachable server never blocks
// the others beyond its own probe timeout.
func (s *Service) GetMany(ctx context.Context, targets []status.ServerTarget, ttl time.Duration) map[string]status.StatusResult {
	unique := make(map[string]status.ServerTarget, len(targets))
	for _, t := range targets {
		unique[t.Key()] = t
	}

	var mu sync.Mutex
	out := make(map[string]status.StatusResult, len(unique))

	g, ctx := errgroup.WithContext(ctx)
	for key, target := range unique {
		g.Go(func() error {
			res := s.Get(ctx, target, ttl)
			mu.Lock()
			out[key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // Get never returns an error

	return out
}

// lookup returns the entry for key if it has not expired.
func (s *Service) lookup(key string) (status.StatusResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return status.StatusResult{}, false
	}

	return e.result, true
}

// refresh probes the target, normalizes the response, enriches it, and
// stores the outcome under the target key with the given TTL.
func (s *Service) refresh(ctx context.Context, target status.ServerTarget, ttl time.Duration) status.StatusResult {
	queriedAt := time.Now()

	// The probe outcome is cached and shared with every caller joined on
	// this key, so it must not be aborted when the initiating caller
	// disconnects. The prober applies its own timeout.
	raw, err := s.probe(context.WithoutCancel(ctx), target)

	var res status.StatusResult
	if err != nil {
		res = status.Unreachable(probeReason(err))
	} else {
		res = status.Normalize(raw)
	}
	res.QueriedAt = queriedAt

	if s.geo != nil && raw.ResolvedIP != "" {
		res.CountryCode = s.geo.Country(raw.ResolvedIP)
	}

	s.store(target.Key(), res, ttl)

	return res
}

// store writes the result unless a newer probe already landed for the key.
// Single-flight serializes probes per key, so the guard only matters if
// that discipline ever changes, but it keeps the ordering invariant local.
func (s *Service) store(key string, res status.StatusResult, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[key]; ok && cur.result.QueriedAt.After(res.QueriedAt) {
		return
	}

	s.entries[key] = entry{result: res, expiresAt: res.QueriedAt.Add(ttl)}
}

// probeReason extracts the short human-readable failure description.
func probeReason(err error) string {
	var pErr *probe.Error
	if errors.As(err, &pErr) {
		return pErr.Reason()
	}
	return "server unreachable"
}
