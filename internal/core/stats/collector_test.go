package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harborview/internal/core/domain"
)

type fakeInfoSource struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error
}

func newFakeInfoSource() *fakeInfoSource {
	return &fakeInfoSource{calls: make(map[string]int), errs: make(map[string]error)}
}

func (f *fakeInfoSource) HostInfo(_ context.Context, host string) (domain.HostStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[host]++
	if err := f.errs[host]; err != nil {
		return domain.HostStats{}, err
	}
	return domain.HostStats{
		Host:        host,
		Source:      "docker",
		CPUs:        8,
		Status:      "active",
		CollectedAt: time.Now(),
	}, nil
}

func (f *fakeInfoSource) callCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[host]
}

type fakeLister struct {
	hosts []domain.Host
	err   error
}

func (f *fakeLister) Hosts(context.Context) ([]domain.Host, error) { return f.hosts, f.err }

func activeHost(name string) domain.Host {
	return domain.Host{Name: name, Status: domain.HostActive}
}

func TestHostStats_CachesWithinTTL(t *testing.T) {
	src := newFakeInfoSource()
	c := NewCollector(src, &fakeLister{}, time.Minute, nil)

	first := c.HostStats(context.Background(), "prod")
	second := c.HostStats(context.Background(), "prod")

	assert.Equal(t, "active", first.Status)
	assert.Equal(t, first.CollectedAt, second.CollectedAt)
	assert.Equal(t, 1, src.callCount("prod"))
}

func TestHostStats_TTLExpiryRecollects(t *testing.T) {
	src := newFakeInfoSource()
	c := NewCollector(src, &fakeLister{}, time.Minute, nil)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.HostStats(context.Background(), "prod")

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	c.HostStats(context.Background(), "prod")

	assert.Equal(t, 2, src.callCount("prod"))
}

func TestHostStats_FailureYieldsErrorRecord(t *testing.T) {
	src := newFakeInfoSource()
	src.errs["prod"] = errors.New("engine unavailable")
	c := NewCollector(src, &fakeLister{}, time.Minute, nil)

	st := c.HostStats(context.Background(), "prod")
	assert.Equal(t, "error", st.Status)
	assert.Contains(t, st.Err, "engine unavailable")

	// Error records are cached too, so a dead host is not re-probed on
	// every poll.
	c.HostStats(context.Background(), "prod")
	assert.Equal(t, 1, src.callCount("prod"))
}

func TestAllHostStats(t *testing.T) {
	src := newFakeInfoSource()
	lister := &fakeLister{hosts: []domain.Host{
		activeHost("prod"),
		{Name: "edge", Status: domain.HostInactive, Err: "connection refused"},
		activeHost("lab"),
	}}
	c := NewCollector(src, lister, time.Minute, nil)

	out, err := c.AllHostStats(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Host order matches discovery order.
	assert.Equal(t, "prod", out[0].Host)
	assert.Equal(t, "active", out[0].Status)
	assert.Equal(t, "error", out[1].Status)
	assert.Equal(t, "host is inactive", out[1].Err)
	assert.Equal(t, "active", out[2].Status)

	// The inactive host was never probed.
	assert.Equal(t, 0, src.callCount("edge"))
}

func TestAllHostStats_ListerFailure(t *testing.T) {
	c := NewCollector(newFakeInfoSource(), &fakeLister{err: errors.New("discovery failed")}, time.Minute, nil)

	_, err := c.AllHostStats(context.Background())
	require.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	src := newFakeInfoSource()
	c := NewCollector(src, &fakeLister{}, time.Minute, nil)

	c.HostStats(context.Background(), "prod")
	c.HostStats(context.Background(), "lab")

	c.Invalidate("prod")
	c.HostStats(context.Background(), "prod")
	c.HostStats(context.Background(), "lab")
	assert.Equal(t, 2, src.callCount("prod"))
	assert.Equal(t, 1, src.callCount("lab"))

	c.Invalidate("")
	c.HostStats(context.Background(), "lab")
	assert.Equal(t, 2, src.callCount("lab"))
}
