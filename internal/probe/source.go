package probe

import (
	"context"
	"fmt"
	"net"

	"github.com/woozymasta/a2s/pkg/a2s"

	"github.com/blockhaven/statusd/internal/status"
)

// probeSource queries a Source-engine server with A2S_INFO over UDP. The
// host is resolved first so the same address feeds both the query and the
// GeoIP enrichment.
func (p *Prober) probeSource(ctx context.Context, target status.ServerTarget) (status.RawStatus, error) {
	addr := target.Addr()

	resolved, err := net.DefaultResolver.LookupIPAddr(ctx, target.Host)
	if err != nil || len(resolved) == 0 {
		if err == nil {
			err = fmt.Errorf("no addresses for %s", target.Host)
		}
		return status.RawStatus{}, classify(addr, err)
	}
	ip := resolved[0].IP.String()

	client, err := a2s.New(ip, int(target.Port))
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = p.bufferSize
	client.Timeout = p.timeout

	info, err := client.GetInfo()
	if err != nil {
		return status.RawStatus{}, classify(addr, err)
	}

	return status.RawStatus{
		Edition:    status.EditionSource,
		Source:     info,
		ResolvedIP: ip,
	}, nil
}
