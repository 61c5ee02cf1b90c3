package update

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

type fakeRegistry struct {
	mu      sync.Mutex
	digests map[string]string
	err     error
	calls   int
}

func (f *fakeRegistry) ManifestDigest(_ context.Context, repository, tag string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	d, ok := f.digests[repository+":"+tag]
	if !ok {
		return "", errors.New("manifest unknown")
	}
	return d, nil
}

func (f *fakeRegistry) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const (
	digestA = "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	digestB = "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testItem(local string) domain.Item {
	return domain.Item{
		ID:    "abc123def456",
		Name:  "web",
		Host:  "prod",
		Image: domain.ImageRef{Repository: "example/web", Tag: "8.2.2", Digest: local},
	}
}

func TestCheckItem_UpToDate(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestA}}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	rec := c.CheckItem(context.Background(), testItem(digestA))

	assert.Equal(t, domain.UpdateUpToDate, rec.Result)
	assert.Equal(t, "8.2.2", rec.ResolvedTag)
	assert.Equal(t, digestA, rec.RemoteDigest)
}

func TestCheckItem_UpdateAvailable(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestB}}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	rec := c.CheckItem(context.Background(), testItem(digestA))

	assert.Equal(t, domain.UpdateAvailable, rec.Result)
}

func TestCheckItem_FloatingTagResolution(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8": digestA}}
	c := NewChecker(reg, PolicyMajor, time.Minute, nil)

	rec := c.CheckItem(context.Background(), testItem(digestA))

	assert.Equal(t, "8", rec.ResolvedTag)
	assert.Equal(t, domain.UpdateUpToDate, rec.Result)
}

func TestCheckItem_SwarmIsUnsupportedWithoutNetworkCall(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestB}}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	item := testItem(digestA)
	item.Swarm = true
	rec := c.CheckItem(context.Background(), item)

	assert.Equal(t, domain.UpdateUnsupported, rec.Result)
	assert.Zero(t, reg.callCount())
}

func TestCheckItem_NoLocalDigestIsUnknown(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestA}}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	rec := c.CheckItem(context.Background(), testItem(""))

	assert.Equal(t, domain.UpdateUnknown, rec.Result)
}

func TestCheckItem_RegistryFailure(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("registry down")}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	rec := c.CheckItem(context.Background(), testItem(digestA))

	assert.Equal(t, domain.UpdateCheckFailed, rec.Result)
	assert.Contains(t, rec.Err, "registry down")

	// No previous known result exists, so nothing was cached.
	_, ok := c.Cached("prod", testItem(digestA).Image)
	assert.False(t, ok)
}

func TestCheckItem_FailureKeepsPreviousCachedResult(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestA}}
	c := NewChecker(reg, PolicyDisabled, time.Nanosecond, nil)

	first := c.CheckItem(context.Background(), testItem(digestA))
	require.Equal(t, domain.UpdateUpToDate, first.Result)

	reg.mu.Lock()
	reg.err = errors.New("registry down")
	reg.mu.Unlock()

	rec := c.CheckItem(context.Background(), testItem(digestA))
	assert.Equal(t, domain.UpdateCheckFailed, rec.Result)

	cached, ok := c.Cached("prod", testItem(digestA).Image)
	require.True(t, ok)
	assert.Equal(t, domain.UpdateUpToDate, cached.Result)
}

func TestCheckItem_CacheAvoidsRepeatQueries(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestA}}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	c.CheckItem(context.Background(), testItem(digestA))
	c.CheckItem(context.Background(), testItem(digestA))

	assert.Equal(t, 1, reg.callCount())
}

func TestCheckItem_CacheExpires(t *testing.T) {
	reg := &fakeRegistry{digests: map[string]string{"example/web:8.2.2": digestA}}
	c := NewChecker(reg, PolicyDisabled, time.Minute, nil)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.CheckItem(context.Background(), testItem(digestA))

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	c.CheckItem(context.Background(), testItem(digestA))

	assert.Equal(t, 2, reg.callCount())
}
