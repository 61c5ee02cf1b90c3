package ports

import (
	"context"
	"io"

	"harborview/internal/core/domain"
)

// HostProber probes one configured host and reports a status snapshot.
// An unreachable host comes back as an inactive snapshot, not an error,
// so enumerating callers never fail on a single dead endpoint.
type HostProber interface {
	Probe(ctx context.Context, name string) domain.Host
	// Invalidate drops any cached client handles so the next probe
	// rebuilds them from configuration.
	Invalidate()
}

// Collector lists one active host's containers or swarm services and
// normalizes them into the common item shape, preserving the runtime's
// native listing order.
type Collector interface {
	Collect(ctx context.Context, host domain.Host) ([]domain.Item, error)
}

// LogOpener opens a follow log stream for one item on one host. The tty
// flag reports whether the stream is raw output rather than multiplexed
// with the engine's stream framing.
type LogOpener interface {
	OpenLogs(ctx context.Context, host, id string) (rc io.ReadCloser, tty bool, err error)
}

// HostInfoSource exposes the low-level per-host facts the stats collector
// needs without coupling it to a concrete runtime client.
type HostInfoSource interface {
	HostInfo(ctx context.Context, host string) (domain.HostStats, error)
}
