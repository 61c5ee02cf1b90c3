package update

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// Checker resolves each image's tag family, fetches the remote manifest
// digest and compares it with the locally-known one. Results are cached by
// (host, image, resolved tag) so inventory refreshes inside the freshness
// window never re-query a registry.
type Checker struct {
	reg    ports.RegistryClient
	policy Policy
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]domain.UpdateRecord
}

// NewChecker creates a checker with the given tag policy and cache window.
func NewChecker(reg ports.RegistryClient, policy Policy, ttl time.Duration, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		reg:    reg,
		policy: policy,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
		cache:  make(map[string]domain.UpdateRecord),
	}
}

func cacheKey(host string, image domain.ImageRef, resolved string) string {
	return host + "|" + image.String() + "|" + resolved
}

// CheckItem checks one item. Swarm services resolve to unsupported without
// any network call. A registry failure reports check-failed but never
// overwrites a previously known good result in the cache, so the inventory
// keeps showing the last known state.
func (c *Checker) CheckItem(ctx context.Context, item domain.Item) domain.UpdateRecord {
	rec := domain.UpdateRecord{
		Host:        item.Host,
		Image:       item.Image,
		LocalDigest: item.Image.Digest,
		CheckedAt:   c.now(),
	}
	if item.Swarm {
		rec.Result = domain.UpdateUnsupported
		return rec
	}

	resolved := ResolveTag(c.policy, item.Image.Tag)
	rec.ResolvedTag = resolved
	key := cacheKey(item.Host, item.Image, resolved)

	if cached, ok := c.lookup(key, true); ok {
		return cached
	}

	remote, err := c.reg.ManifestDigest(ctx, item.Image.Repository, resolved)
	if err != nil {
		rec.Result = domain.UpdateCheckFailed
		rec.Err = err.Error()
		c.log.Debug("registry digest fetch failed",
			"host", item.Host, "image", item.Image.String(), "tag", resolved, "error", err)
		return rec
	}
	rec.RemoteDigest = remote

	switch {
	case rec.LocalDigest == "" || remote == "":
		rec.Result = domain.UpdateUnknown
	case digest.Digest(rec.LocalDigest) == digest.Digest(remote):
		rec.Result = domain.UpdateUpToDate
	default:
		rec.Result = domain.UpdateAvailable
	}

	c.mu.Lock()
	c.cache[key] = rec
	c.mu.Unlock()
	return rec
}

// Cached implements ports.UpdateAnnotator. Staleness is fine here: a stale
// known result beats an unknown one on the inventory path.
func (c *Checker) Cached(host string, image domain.ImageRef) (domain.UpdateRecord, bool) {
	key := cacheKey(host, image, ResolveTag(c.policy, image.Tag))
	return c.lookup(key, false)
}

func (c *Checker) lookup(key string, enforceTTL bool) (domain.UpdateRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.cache[key]
	if !ok {
		return domain.UpdateRecord{}, false
	}
	if enforceTTL && c.now().Sub(rec.CheckedAt) >= c.ttl {
		return domain.UpdateRecord{}, false
	}
	return rec, true
}
