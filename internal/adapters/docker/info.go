package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"

	"harborview/internal/core/domain"
)

// HostInfo implements ports.HostInfoSource: a normalized resource snapshot
// built from the engine's Info and DiskUsage endpoints.
func (p *Pool) HostInfo(ctx context.Context, name string) (domain.HostStats, error) {
	cli, err := p.Client(name)
	if err != nil {
		return domain.HostStats{}, err
	}

	info, err := cli.Info(ctx)
	if err != nil {
		return domain.HostStats{}, fmt.Errorf("host info %s: %w", name, err)
	}
	stats := domain.HostStats{
		Host:              name,
		Source:            "docker",
		CPUs:              info.NCPU,
		MemoryTotal:       info.MemTotal,
		ContainersRunning: info.ContainersRunning,
		ContainersTotal:   info.Containers,
		ImagesTotal:       info.Images,
		ServerVersion:     info.ServerVersion,
		Status:            "active",
		CollectedAt:       time.Now(),
	}

	// Disk usage is best effort: it can be slow on large hosts and the
	// rest of the snapshot is still worth having.
	if du, err := cli.DiskUsage(ctx, types.DiskUsageOptions{}); err == nil {
		stats.LayersSize = du.LayersSize
	} else {
		p.log.Debug("disk usage failed", "host", name, "error", err)
	}
	return stats, nil
}
