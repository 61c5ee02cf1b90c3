package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// OpenLogs implements ports.LogOpener: a follow stream of one container's
// logs, falling back to service logs on swarm managers when the id names a
// service rather than a container. The tty flag tells the session layer
// whether the stream carries docker's stdout/stderr multiplex framing.
func (c *Collector) OpenLogs(ctx context.Context, host, id string) (io.ReadCloser, bool, error) {
	cli, err := c.pool.Client(host)
	if err != nil {
		return nil, false, err
	}

	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "200",
	}
	rc, err := cli.ContainerLogs(ctx, id, opts)
	if err == nil {
		return rc, c.containerTTY(ctx, cli, id), nil
	}

	if snap, ok := c.pool.Snapshot(host); ok && snap.Swarm && errdefs.IsNotFound(err) {
		rc, serr := cli.ServiceLogs(ctx, id, opts)
		if serr != nil {
			return nil, false, fmt.Errorf("open service logs %s on %s: %w", id, host, serr)
		}
		return rc, false, nil
	}
	return nil, false, fmt.Errorf("open container logs %s on %s: %w", id, host, err)
}

func (c *Collector) containerTTY(ctx context.Context, cli *client.Client, id string) bool {
	ictx, cancel := context.WithTimeout(ctx, c.cfg.InspectTimeout)
	defer cancel()
	insp, err := cli.ContainerInspect(ictx, id)
	if err != nil || insp.Config == nil {
		return false
	}
	return insp.Config.Tty
}
