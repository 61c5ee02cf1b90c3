package ports

import (
	"context"

	"harborview/internal/core/domain"
)

// InventoryService is the engine surface the web/API layer calls once per
// dashboard refresh.
type InventoryService interface {
	List(ctx context.Context) (domain.Snapshot, error)
	Hosts(ctx context.Context) ([]domain.Host, error)
}

// UpdateAnnotator serves cached update results so an inventory refresh can
// annotate items without touching any registry.
type UpdateAnnotator interface {
	Cached(host string, image domain.ImageRef) (domain.UpdateRecord, bool)
}

// UpdateService checks single items and drives the process-wide bulk scan.
// StartScan rejects with a scan_in_progress error while a scan is active.
type UpdateService interface {
	CheckItem(ctx context.Context, item domain.Item) domain.UpdateRecord
	StartScan(ctx context.Context) error
	CancelScan()
	ScanStatus() domain.ScanStatus
}

// LogStreamService opens a cancellable log stream for one item. The
// returned close func releases the underlying handle and is safe to call
// more than once.
type LogStreamService interface {
	Open(ctx context.Context, host, id string) (<-chan domain.LogFrame, func(), error)
}

// StatsService reports normalized resource stats for the discovered hosts.
type StatsService interface {
	HostStats(ctx context.Context, host string) domain.HostStats
	AllHostStats(ctx context.Context) ([]domain.HostStats, error)
}
