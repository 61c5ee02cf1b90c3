// Package docker adapts the Docker Engine API to the engine's ports: a
// connection pool with per-host reachability probing, and a collector that
// normalizes containers and swarm services into the common item shape.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"

	"harborview/internal/config"
	"harborview/internal/core/domain"
)

// Pool builds and caches one client per configured host. Clients carry no
// global HTTP timeout; every operation bounds itself with a context deadline,
// so the same handle serves fast listing calls and long-lived log streams.
// Mutating operations get a separate client from MutateClient instead.
type Pool struct {
	cfg *config.Config
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*hostClient
}

type hostClient struct {
	cli  *client.Client
	last domain.Host
}

// NewPool creates a pool for the configured hosts. No connections are opened
// until the first probe.
func NewPool(cfg *config.Config, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		cfg:     cfg,
		log:     log,
		clients: make(map[string]*hostClient),
	}
}

func newClient(url string) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(url),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create docker client for %s: %w", url, err)
	}
	return cli, nil
}

// Client returns the cached client for an already-probed host, or a
// host_unreachable error when the host is unknown or was inactive at its
// last probe.
func (p *Pool) Client(name string) (*client.Client, error) {
	p.mu.RLock()
	hc, ok := p.clients[name]
	p.mu.RUnlock()
	if !ok {
		return nil, domain.NewError(domain.CodeHostUnreachable, "host "+name+" has not been probed")
	}
	if !hc.last.Active() {
		return nil, domain.NewError(domain.CodeHostUnreachable, "host "+name+" is inactive")
	}
	return hc.cli, nil
}

// MutateClient builds a fresh long-timeout client for mutating calls. It is
// deliberately not the cached probing client: mutations may legitimately run
// far past any listing budget. The caller owns closing it.
func (p *Pool) MutateClient(name string) (*client.Client, error) {
	url, ok := p.cfg.HostURL(name)
	if !ok {
		return nil, domain.NewError(domain.CodeHostUnreachable, "host "+name+" is not configured")
	}
	cli, err := client.NewClientWithOpts(
		client.WithHost(url),
		client.WithAPIVersionNegotiation(),
		client.WithTimeout(p.cfg.MutateTimeout),
	)
	if err != nil {
		return nil, domain.WrapError(err, domain.CodeHostUnreachable, "create mutate client for "+name)
	}
	return cli, nil
}

// Probe pings one configured host under the short probe timeout and reports
// a status snapshot. Unreachable hosts come back inactive with the probe
// error attached; Probe itself never fails for them.
func (p *Pool) Probe(ctx context.Context, name string) domain.Host {
	url, ok := p.cfg.HostURL(name)
	if !ok {
		return domain.Host{Name: name, Status: domain.HostInactive, Err: "not configured"}
	}
	host := domain.Host{Name: name, URL: url, Status: domain.HostInactive}

	cli, err := p.clientFor(name, url)
	if err != nil {
		host.Err = err.Error()
		p.store(name, nil, host)
		return host
	}

	pctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	if _, err := cli.Ping(pctx); err != nil {
		host.Err = err.Error()
		p.store(name, cli, host)
		p.log.Debug("host probe failed", "host", name, "error", err)
		return host
	}

	host.Status = domain.HostActive
	host.Swarm = p.probeSwarm(ctx, cli, name)
	p.store(name, cli, host)
	return host
}

// probeSwarm detects whether the host is a swarm manager. Worker nodes
// cannot list services, so they are collected as plain container hosts.
func (p *Pool) probeSwarm(ctx context.Context, cli *client.Client, name string) bool {
	ictx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	info, err := cli.Info(ictx)
	if err != nil {
		p.log.Debug("host info failed, assuming standalone", "host", name, "error", err)
		return false
	}
	return info.Swarm.LocalNodeState == swarm.LocalNodeStateActive && info.Swarm.ControlAvailable
}

func (p *Pool) clientFor(name, url string) (*client.Client, error) {
	p.mu.RLock()
	hc, ok := p.clients[name]
	p.mu.RUnlock()
	if ok && hc.cli != nil {
		return hc.cli, nil
	}
	return newClient(url)
}

func (p *Pool) store(name string, cli *client.Client, host domain.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.clients[name]; ok && cli == nil {
		cli = prev.cli
	}
	p.clients[name] = &hostClient{cli: cli, last: host}
}

// Snapshot returns the last probe result for a host, if any.
func (p *Pool) Snapshot(name string) (domain.Host, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hc, ok := p.clients[name]
	if !ok {
		return domain.Host{}, false
	}
	return hc.last, true
}

// Invalidate closes and drops every cached client so the next probe
// generation rebuilds from configuration.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, hc := range p.clients {
		if hc.cli != nil {
			_ = hc.cli.Close()
		}
		delete(p.clients, name)
	}
}
