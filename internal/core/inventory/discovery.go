// Package inventory holds the host discovery cache and the parallel
// aggregator that merges per-host collections into one snapshot.
package inventory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// Discovery is the time-boxed host cache. While the snapshot is younger
// than the TTL, Discover returns the memoized list without touching any
// host; a refresh probes every configured host in parallel under the
// discovery timeout and replaces the snapshot atomically. Concurrent
// callers during a refresh share the single in-flight probe pass.
type Discovery struct {
	prober  ports.HostProber
	names   []string
	ttl     time.Duration
	timeout time.Duration
	log     *slog.Logger

	mu      sync.RWMutex
	cached  []domain.Host
	fetched time.Time

	flight singleflight.Group
}

// NewDiscovery creates a discovery cache over the configured host names, in
// declaration order.
func NewDiscovery(prober ports.HostProber, names []string, ttl, timeout time.Duration, log *slog.Logger) *Discovery {
	if log == nil {
		log = slog.Default()
	}
	return &Discovery{
		prober:  prober,
		names:   names,
		ttl:     ttl,
		timeout: timeout,
		log:     log,
	}
}

// Discover returns the host list, refreshing it when the cache has expired.
func (d *Discovery) Discover(ctx context.Context) ([]domain.Host, error) {
	if hosts, ok := d.fresh(); ok {
		return hosts, nil
	}

	v, err, _ := d.flight.Do("discover", func() (any, error) {
		// A waiter that queued behind a refresh finds the cache fresh now.
		if hosts, ok := d.fresh(); ok {
			return hosts, nil
		}
		hosts := d.refresh(ctx)
		d.mu.Lock()
		d.cached = hosts
		d.fetched = time.Now()
		d.mu.Unlock()
		return hosts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Host), nil
}

func (d *Discovery) fresh() ([]domain.Host, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cached == nil || time.Since(d.fetched) >= d.ttl {
		return nil, false
	}
	return d.cached, true
}

// refresh probes all hosts concurrently. The pass is detached from the
// triggering caller's cancellation so waiters sharing the flight are not
// poisoned by one client going away, and bounded by the discovery timeout.
func (d *Discovery) refresh(ctx context.Context) []domain.Host {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	hosts := make([]domain.Host, len(d.names))
	g, gctx := errgroup.WithContext(rctx)
	for i, name := range d.names {
		g.Go(func() error {
			hosts[i] = d.prober.Probe(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	active := 0
	for _, h := range hosts {
		if h.Active() {
			active++
		}
	}
	d.log.Debug("host discovery refreshed", "hosts", len(hosts), "active", active)
	return hosts
}

// Invalidate forces the next Discover to re-probe and drops the pool's
// cached client handles.
func (d *Discovery) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
	d.prober.Invalidate()
}
