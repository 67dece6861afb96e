// Package probe issues status queries to remote game servers over their
// native wire protocols: the Java edition server list ping (TCP), the
// Bedrock RakNet unconnected ping (UDP), and Source A2S_INFO.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/blockhaven/statusd/internal/config"
	"github.com/blockhaven/statusd/internal/metrics"
	"github.com/blockhaven/statusd/internal/status"
)

// ErrorKind classifies probe failures for logging and metrics.
type ErrorKind string

// Probe failure classes.
const (
	KindTimeout     ErrorKind = "timeout"
	KindRefused     ErrorKind = "refused"
	KindUnreachable ErrorKind = "unreachable"
	KindProtocol    ErrorKind = "protocol"
)

// Error is a typed probe failure carrying a human-readable reason. It is
// absorbed into an offline StatusResult by the cache layer, never surfaced
// to HTTP callers as an exception.
type Error struct {
	Err  error
	Addr string
	Kind ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %s: %v", e.Addr, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reason returns the short failure description stored in StatusResult.Error.
func (e *Error) Reason() string {
	switch e.Kind {
	case KindTimeout:
		return "query timed out"
	case KindRefused:
		return "connection refused"
	case KindProtocol:
		return "malformed server response"
	default:
		return "server unreachable"
	}
}

// classify wraps a transport error with its failure kind.
func classify(addr string, err error) *Error {
	kind := KindUnreachable

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			kind = KindRefused
		}
	}

	return &Error{Kind: kind, Addr: addr, Err: err}
}

// protocolError marks a response that could not be parsed.
func protocolError(addr string, err error) *Error {
	return &Error{Kind: KindProtocol, Addr: addr, Err: err}
}

// Prober queries one remote server per call with a hard timeout. A global
// token bucket paces outbound probes so a burst of cold-cache lookups
// cannot flood the network.
type Prober struct {
	pacer      *rate.Limiter
	timeout    time.Duration
	bufferSize uint16
}

// New creates a Prober from the probe configuration section.
func New(cfg config.Probe) *Prober {
	return &Prober{
		timeout:    cfg.Timeout,
		bufferSize: cfg.BufferSize,
		pacer:      rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), cfg.Burst),
	}
}

// Probe dispatches to the wire protocol matching the target's edition and
// returns the raw upstream response or a typed *Error. It never retries.
func (p *Prober) Probe(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pacer.Wait(ctx); err != nil {
		return status.RawStatus{}, &Error{Kind: KindTimeout, Addr: target.Addr(), Err: err}
	}

	var (
		raw status.RawStatus
		err error
	)

	switch target.Edition {
	case status.EditionBedrock:
		raw, err = p.probeBedrock(ctx, target)
	case status.EditionSource:
		raw, err = p.probeSource(ctx, target)
	default:
		raw, err = p.probeJava(ctx, target)
	}

	metrics.ObserveProbe(string(target.Edition), err, time.Since(start))

	return raw, err
}
