package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harborview/internal/core/domain"
)

type stubInventory struct {
	snap domain.Snapshot
	err  error
}

func (s *stubInventory) List(context.Context) (domain.Snapshot, error) { return s.snap, s.err }

func (s *stubInventory) Hosts(context.Context) ([]domain.Host, error) { return s.snap.Hosts, s.err }

type stubUpdates struct {
	startErr  error
	status    domain.ScanStatus
	cancelled bool
	checked   []domain.Item
}

func (s *stubUpdates) CheckItem(_ context.Context, item domain.Item) domain.UpdateRecord {
	s.checked = append(s.checked, item)
	return domain.UpdateRecord{Host: item.Host, Image: item.Image, Result: domain.UpdateAvailable}
}

func (s *stubUpdates) StartScan(context.Context) error { return s.startErr }

func (s *stubUpdates) CancelScan() { s.cancelled = true }

func (s *stubUpdates) ScanStatus() domain.ScanStatus { return s.status }

type stubLogs struct {
	err error
}

func (s *stubLogs) Open(context.Context, string, string) (<-chan domain.LogFrame, func(), error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	ch := make(chan domain.LogFrame, 2)
	ch <- domain.LogFrame{Kind: domain.FrameLine, Line: "hello"}
	ch <- domain.LogFrame{Kind: domain.FrameHeartbeat}
	close(ch)
	return ch, func() {}, nil
}

type stubStats struct {
	all []domain.HostStats
	err error
}

func (s *stubStats) HostStats(_ context.Context, host string) domain.HostStats {
	return domain.HostStats{Host: host}
}

func (s *stubStats) AllHostStats(context.Context) ([]domain.HostStats, error) { return s.all, s.err }

type fixture struct {
	app     *fiber.App
	inv     *stubInventory
	updates *stubUpdates
	logs    *stubLogs
	stats   *stubStats
}

func newFixture() *fixture {
	f := &fixture{
		app:     fiber.New(),
		inv:     &stubInventory{},
		updates: &stubUpdates{},
		logs:    &stubLogs{},
		stats:   &stubStats{},
	}
	NewHandler(f.inv, f.updates, f.logs, f.stats, nil).Register(f.app)
	return f
}

func invItem(host, name, id string) domain.Item {
	return domain.Item{
		ID:    id,
		Name:  name,
		Host:  host,
		Image: domain.ImageRef{Repository: "example/" + name, Tag: "1.0"},
	}
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	resp.Body.Close()
}

func TestListInventory_SortedByHostThenName(t *testing.T) {
	f := newFixture()
	f.inv.snap = domain.Snapshot{
		Items: []domain.Item{
			invItem("lab", "zz", "1"),
			invItem("lab", "aa", "2"),
			invItem("edge", "mm", "3"),
		},
		Hosts: []domain.Host{{Name: "edge", Status: domain.HostActive}},
	}

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap domain.Snapshot
	decode(t, resp, &snap)
	require.Len(t, snap.Items, 3)
	assert.Equal(t, "mm", snap.Items[0].Name)
	assert.Equal(t, "aa", snap.Items[1].Name)
	assert.Equal(t, "zz", snap.Items[2].Name)
}

func TestListInventory_EngineFailure(t *testing.T) {
	f := newFixture()
	f.inv.err = domain.NewError(domain.CodeConfig, "no hosts configured")

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCheckUpdate(t *testing.T) {
	f := newFixture()
	f.inv.snap = domain.Snapshot{Items: []domain.Item{invItem("prod", "web", "abc123def456")}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/updates/check",
		strings.NewReader(`{"host":"prod","id":"abc123def456"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec domain.UpdateRecord
	decode(t, resp, &rec)
	assert.Equal(t, domain.UpdateAvailable, rec.Result)
	require.Len(t, f.updates.checked, 1)
	assert.Equal(t, "web", f.updates.checked[0].Name)
}

func TestCheckUpdate_UnknownItem(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/updates/check",
		strings.NewReader(`{"host":"prod","id":"nope"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckUpdate_BadRequest(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/updates/check",
		strings.NewReader(`{"host":"prod"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartScan(t *testing.T) {
	f := newFixture()
	f.updates.status = domain.ScanStatus{Active: true, Total: 7}

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/updates/scan", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var st domain.ScanStatus
	decode(t, resp, &st)
	assert.True(t, st.Active)
	assert.Equal(t, 7, st.Total)
}

func TestStartScan_Conflict(t *testing.T) {
	f := newFixture()
	f.updates.startErr = domain.NewError(domain.CodeScanInProgress, "a bulk update scan is already running")

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/updates/scan", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelScan(t *testing.T) {
	f := newFixture()

	resp, err := f.app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/updates/scan", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.updates.cancelled)
}

func TestHostStats(t *testing.T) {
	f := newFixture()
	f.stats.all = []domain.HostStats{{Host: "prod", Status: "active"}}

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/hosts/stats", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var all []domain.HostStats
	decode(t, resp, &all)
	require.Len(t, all, 1)
	assert.Equal(t, "prod", all[0].Host)
}

func TestStreamLogs(t *testing.T) {
	f := newFixture()

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/logs/prod/abc123", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	// One log line plus the heartbeat's empty keepalive line.
	assert.Equal(t, "hello\n\n", string(body))
}

func TestStreamLogs_UnreachableHost(t *testing.T) {
	f := newFixture()
	f.logs.err = domain.NewError(domain.CodeHostUnreachable, "host prod is not reachable")

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/logs/prod/abc123", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
