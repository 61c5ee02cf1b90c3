// Package stats collects normalized per-host resource statistics with a
// short-lived cache, so dashboard polling does not hammer the hosts.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// HostLister supplies the discovered host set; satisfied by the inventory
// aggregator.
type HostLister interface {
	Hosts(ctx context.Context) ([]domain.Host, error)
}

// Collector implements ports.StatsService. A failed collection yields a
// record with error status rather than a failed call, so one bad host never
// hides the others.
type Collector struct {
	src    ports.HostInfoSource
	lister HostLister
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]domain.HostStats
}

// NewCollector creates a stats collector with the given cache TTL.
func NewCollector(src ports.HostInfoSource, lister HostLister, ttl time.Duration, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		src:    src,
		lister: lister,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
		cache:  make(map[string]domain.HostStats),
	}
}

// HostStats returns the cached snapshot for one host while it is younger
// than the TTL, collecting a fresh one otherwise.
func (c *Collector) HostStats(ctx context.Context, host string) domain.HostStats {
	c.mu.Lock()
	cached, ok := c.cache[host]
	c.mu.Unlock()
	if ok && c.now().Sub(cached.CollectedAt) < c.ttl {
		return cached
	}

	st, err := c.src.HostInfo(ctx, host)
	if err != nil {
		st = domain.HostStats{
			Host:        host,
			Source:      "docker",
			Status:      "error",
			Err:         err.Error(),
			CollectedAt: c.now(),
		}
		c.log.Debug("host stats collection failed", "host", host, "error", err)
	}

	c.mu.Lock()
	c.cache[host] = st
	c.mu.Unlock()
	return st
}

// AllHostStats collects stats for every discovered host concurrently.
// Inactive hosts get an error record without being probed again.
func (c *Collector) AllHostStats(ctx context.Context) ([]domain.HostStats, error) {
	hosts, err := c.lister.Hosts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.HostStats, len(hosts))
	g := new(errgroup.Group)
	for i, h := range hosts {
		if !h.Active() {
			out[i] = domain.HostStats{
				Host:        h.Name,
				Source:      "docker",
				Status:      "error",
				Err:         "host is inactive",
				CollectedAt: c.now(),
			}
			continue
		}
		g.Go(func() error {
			out[i] = c.HostStats(ctx, h.Name)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Invalidate drops cached stats for one host, or all hosts when name is
// empty.
func (c *Collector) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		c.cache = make(map[string]domain.HostStats)
		return
	}
	delete(c.cache, name)
}
