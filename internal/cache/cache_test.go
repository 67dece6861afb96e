package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/statusd/internal/probe"
	"github.com/blockhaven/statusd/internal/status"
)

func javaTarget(host string) status.ServerTarget {
	return status.ServerTarget{Host: host, Port: 25565, Edition: status.EditionJava}
}

// onlineRaw builds a minimal successful Java response.
func onlineRaw(motd string) status.RawStatus {
	js := &status.JavaStatus{Description: json.RawMessage(`"` + motd + `"`)}
	js.Players.Online = 1
	js.Players.Max = 10
	return status.RawStatus{Edition: status.EditionJava, Java: js}
}

// countingProbe counts invocations and returns a fixed response.
func countingProbe(calls *atomic.Int64) ProbeFunc {
	return func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
		calls.Add(1)
		return onlineRaw("hello"), nil
	}
}

func TestGetCachesWithinTTL(t *testing.T) {
	var calls atomic.Int64
	svc := New(countingProbe(&calls), nil)
	target := javaTarget("one.example.com")

	first := svc.Get(context.Background(), target, time.Minute)
	second := svc.Get(context.Background(), target, time.Minute)

	assert.Equal(t, int64(1), calls.Load(), "second lookup must be served from cache")
	assert.True(t, first.Online)
	assert.Equal(t, first.QueriedAt, second.QueriedAt, "cached copy keeps the original probe time")
}

func TestGetRefreshesAfterExpiry(t *testing.T) {
	var calls atomic.Int64
	svc := New(countingProbe(&calls), nil)
	target := javaTarget("two.example.com")

	svc.Get(context.Background(), target, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	svc.Get(context.Background(), target, time.Nanosecond)

	assert.Equal(t, int64(2), calls.Load(), "expired entry must trigger a fresh probe")
}

func TestGetSingleFlight(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})

	svc := New(func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
		calls.Add(1)
		<-release
		return onlineRaw("slow"), nil
	}, nil)

	target := javaTarget("cold.example.com")

	const concurrent = 16
	var wg sync.WaitGroup
	results := make([]status.StatusResult, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.Get(context.Background(), target, time.Minute)
		}()
	}

	// Let the callers pile up on the in-flight probe, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent cold lookups must coalesce into one probe")
	for i := 1; i < concurrent; i++ {
		assert.Equal(t, results[0], results[i], "all callers share the in-flight result")
	}
}

func TestGetCachesFailures(t *testing.T) {
	var calls atomic.Int64
	svc := New(func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
		calls.Add(1)
		return status.RawStatus{}, &probe.Error{Kind: probe.KindTimeout, Addr: target.Addr(), Err: errors.New("deadline")}
	}, nil)

	target := javaTarget("down.example.com")

	first := svc.Get(context.Background(), target, time.Minute)
	second := svc.Get(context.Background(), target, time.Minute)

	assert.Equal(t, int64(1), calls.Load(), "failure must be cached, not re-probed")
	assert.False(t, first.Online)
	assert.Equal(t, "query timed out", first.Error)
	assert.Equal(t, first, second)
	// Counts stay present on failures
	assert.Equal(t, uint(0), first.Players.Online)
	assert.Equal(t, uint(0), first.Players.Max)
}

func TestGetManyDeduplicates(t *testing.T) {
	var calls atomic.Int64
	svc := New(countingProbe(&calls), nil)

	target := javaTarget("dup.example.com")
	results := svc.GetMany(context.Background(), []status.ServerTarget{target, target}, time.Minute)

	assert.Equal(t, int64(1), calls.Load(), "identical targets collapse into one probe")
	require.Len(t, results, 1)
	assert.Contains(t, results, target.Key())
}

func TestGetManyFailureIsolation(t *testing.T) {
	svc := New(func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
		if target.Host == "broken.example.com" {
			return status.RawStatus{}, &probe.Error{Kind: probe.KindTimeout, Addr: target.Addr(), Err: errors.New("deadline")}
		}
		return onlineRaw("ok"), nil
	}, nil)

	targets := []status.ServerTarget{
		javaTarget("alpha.example.com"),
		javaTarget("broken.example.com"),
		javaTarget("beta.example.com"),
	}

	results := svc.GetMany(context.Background(), targets, time.Minute)
	require.Len(t, results, 3)

	assert.True(t, results["alpha.example.com:25565"].Online)
	assert.True(t, results["beta.example.com:25565"].Online)

	broken := results["broken.example.com:25565"]
	assert.False(t, broken.Online)
	assert.Equal(t, "query timed out", broken.Error)
}

func TestStoreKeepsNewerResult(t *testing.T) {
	svc := New(countingProbe(new(atomic.Int64)), nil)

	newer := status.StatusResult{Online: true, QueriedAt: time.Now()}
	older := status.StatusResult{Online: false, QueriedAt: newer.QueriedAt.Add(-time.Minute)}

	svc.store("k", newer, time.Minute)
	svc.store("k", older, time.Minute)

	got, ok := svc.lookup("k")
	require.True(t, ok)
	assert.True(t, got.Online, "a slow stale probe must not overwrite a newer result")
}

func TestGetOutlivesCancelledCaller(t *testing.T) {
	var calls atomic.Int64
	svc := New(func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return status.RawStatus{}, &probe.Error{Err: ctx.Err(), Addr: target.Addr(), Kind: probe.KindTimeout}
		case <-time.After(20 * time.Millisecond):
			return onlineRaw("steady"), nil
		}
	}, nil)
	target := javaTarget("steady.example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := svc.Get(ctx, target, time.Minute)
	assert.True(t, first.Online, "a caller disconnect must not abort the shared refresh")

	second := svc.Get(context.Background(), target, time.Minute)
	assert.True(t, second.Online)
	assert.Empty(t, second.Error)
	assert.Equal(t, int64(1), calls.Load(), "the healthy result must have been cached, not the abort")
}

func TestGetManySlowTargetBoundsBatch(t *testing.T) {
	const slowBudget = 200 * time.Millisecond

	svc := New(func(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
		if target.Host == "slow.example.com" {
			time.Sleep(slowBudget)
			return status.RawStatus{}, &probe.Error{Err: errors.New("deadline"), Addr: target.Addr(), Kind: probe.KindTimeout}
		}
		return onlineRaw("fast"), nil
	}, nil)

	targets := []status.ServerTarget{
		javaTarget("fast-a.example.com"),
		javaTarget("slow.example.com"),
		javaTarget("fast-b.example.com"),
	}

	start := time.Now()
	results := svc.GetMany(context.Background(), targets, time.Minute)
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	assert.True(t, results["fast-a.example.com:25565"].Online)
	assert.True(t, results["fast-b.example.com:25565"].Online)
	assert.False(t, results["slow.example.com:25565"].Online)

	assert.GreaterOrEqual(t, elapsed, slowBudget, "the batch waits for the slowest bounded target")
	assert.Less(t, elapsed, 3*slowBudget, "targets resolve concurrently, not one after another")
}
