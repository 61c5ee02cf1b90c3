package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"

	"harborview/internal/config"
	"harborview/internal/core/domain"
)

// Collector lists one host's containers, or its services when the host is a
// swarm manager, and normalizes them into the common item shape. Items come
// back in the runtime's native listing order.
type Collector struct {
	pool *Pool
	cfg  *config.Config
	log  *slog.Logger
}

// NewCollector creates a collector backed by the given pool.
func NewCollector(pool *Pool, cfg *config.Config, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{pool: pool, cfg: cfg, log: log}
}

// Collect implements ports.Collector for one active host.
func (c *Collector) Collect(ctx context.Context, host domain.Host) ([]domain.Item, error) {
	cli, err := c.pool.Client(host.Name)
	if err != nil {
		return nil, err
	}
	if host.Swarm {
		return c.collectServices(ctx, cli, host)
	}
	return c.collectContainers(ctx, cli, host)
}

func (c *Collector) collectContainers(ctx context.Context, cli *client.Client, host domain.Host) ([]domain.Item, error) {
	list, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers on %s: %w", host.Name, err)
	}
	digests := c.imageDigests(ctx, cli, host.Name)

	items := make([]domain.Item, 0, len(list))
	for _, ctr := range list {
		items = append(items, c.containerItem(ctx, cli, host, ctr, digests))
	}
	return items, nil
}

func (c *Collector) containerItem(ctx context.Context, cli *client.Client, host domain.Host, ctr container.Summary, digests map[string]string) domain.Item {
	name := ""
	if len(ctr.Names) > 0 {
		name = strings.TrimPrefix(ctr.Names[0], "/")
	}
	img := parseImageRef(ctr.Image)
	if img.Digest == "" {
		if d, ok := digests[ctr.ImageID]; ok {
			img.Digest = d
		} else if d, ok := digests[img.String()]; ok {
			img.Digest = d
		}
	}

	item := domain.Item{
		ID:     shortID(ctr.ID),
		Name:   name,
		Host:   host.Name,
		Image:  img,
		State:  itemState(ctr.State),
		Status: ctr.Status,
		Stack:  stackName(ctr.Labels),
		Tags:   tagList(ctr.Labels),
		Link:   strings.TrimSpace(ctr.Labels[labelLink]),
		Routes: parseRoutes(ctr.Labels),
		Update: domain.UpdateUnknown,
	}
	item.Health, item.ExitCode = c.inspectStatus(ctx, cli, ctr.ID)

	https, _ := labelBool(ctr.Labels, labelHTTPS)
	published := make([]domain.PortMapping, 0, len(ctr.Ports))
	for _, p := range ctr.Ports {
		if p.PublicPort == 0 {
			continue
		}
		published = append(published, domain.PortMapping{
			ContainerPort: p.PrivatePort,
			HostPort:      p.PublicPort,
			Protocol:      p.Type,
			Scheme:        schemeFor(p.PrivatePort, p.PublicPort, https),
			Source:        domain.PortPublished,
			Linkable:      p.Type == "tcp",
		})
	}
	item.Ports = c.mergePorts(published, ctr.Labels, https)
	return item
}

func (c *Collector) collectServices(ctx context.Context, cli *client.Client, host domain.Host) ([]domain.Item, error) {
	services, err := cli.ServiceList(ctx, types.ServiceListOptions{Status: true})
	if err != nil {
		return nil, fmt.Errorf("list services on %s: %w", host.Name, err)
	}

	items := make([]domain.Item, 0, len(services))
	for _, svc := range services {
		items = append(items, c.serviceItem(host, svc))
	}
	return items, nil
}

func (c *Collector) serviceItem(host domain.Host, svc swarm.Service) domain.Item {
	imageRef := ""
	if svc.Spec.TaskTemplate.ContainerSpec != nil {
		imageRef = svc.Spec.TaskTemplate.ContainerSpec.Image
	}

	item := domain.Item{
		ID:     shortID(svc.ID),
		Name:   svc.Spec.Name,
		Host:   host.Name,
		Swarm:  true,
		Image:  parseImageRef(imageRef),
		State:  domain.StateUnknown,
		Stack:  stackName(svc.Spec.Labels),
		Tags:   tagList(svc.Spec.Labels),
		Link:   strings.TrimSpace(svc.Spec.Labels[labelLink]),
		Routes: parseRoutes(svc.Spec.Labels),
		Update: domain.UpdateUnsupported,
	}

	if st := svc.ServiceStatus; st != nil {
		item.Replicas = fmt.Sprintf("%d/%d", st.RunningTasks, st.DesiredTasks)
		item.Status = "replicas " + item.Replicas
		switch {
		case st.RunningTasks > 0:
			item.State = domain.StateRunning
		case st.DesiredTasks == 0:
			item.State = domain.StateExited
		}
	}

	https, _ := labelBool(svc.Spec.Labels, labelHTTPS)
	published := make([]domain.PortMapping, 0, len(svc.Endpoint.Ports))
	for _, p := range svc.Endpoint.Ports {
		if p.PublishedPort == 0 {
			continue
		}
		proto := strings.ToLower(string(p.Protocol))
		published = append(published, domain.PortMapping{
			ContainerPort: uint16(p.TargetPort),
			HostPort:      uint16(p.PublishedPort),
			Protocol:      proto,
			Scheme:        schemeFor(uint16(p.TargetPort), uint16(p.PublishedPort), https),
			Source:        domain.PortPublished,
			Linkable:      proto == "tcp",
		})
	}
	item.Ports = c.mergePorts(published, svc.Spec.Labels, https)
	return item
}

// mergePorts unions published ports with the custom-ports label, drops label
// duplicates of already-published ports, and applies range grouping.
func (c *Collector) mergePorts(published []domain.PortMapping, labels map[string]string, https bool) []domain.PortMapping {
	seen := make(map[string]struct{}, len(published))
	key := func(p domain.PortMapping) string {
		return fmt.Sprintf("%d/%s", p.HostPort, p.Protocol)
	}
	for _, p := range published {
		seen[key(p)] = struct{}{}
	}
	union := published
	for _, p := range labelPortMappings(labels, https) {
		if _, dup := seen[key(p)]; dup {
			continue
		}
		seen[key(p)] = struct{}{}
		union = append(union, p)
	}

	enabled := c.cfg.PortGrouping
	if v, ok := labelBool(labels, labelGroupPorts); ok {
		enabled = v
	}
	return groupPorts(union, enabled, c.cfg.PortGroupThreshold)
}

// inspectStatus fetches health state and exit code under the bounded
// per-item timeout so one hung inspect cannot stall the whole host.
func (c *Collector) inspectStatus(ctx context.Context, cli *client.Client, id string) (string, int) {
	ictx, cancel := context.WithTimeout(ctx, c.cfg.InspectTimeout)
	defer cancel()
	insp, err := cli.ContainerInspect(ictx, id)
	if err != nil || insp.State == nil {
		return "", 0
	}
	health := ""
	if insp.State.Health != nil {
		health = insp.State.Health.Status
	}
	return health, insp.State.ExitCode
}

// imageDigests indexes the host's locally-known repo digests by image ID and
// by repo:tag. A failed image listing just means digests stay empty.
func (c *Collector) imageDigests(ctx context.Context, cli *client.Client, hostName string) map[string]string {
	imgs, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		c.log.Debug("image list failed", "host", hostName, "error", err)
		return nil
	}
	idx := make(map[string]string)
	for _, img := range imgs {
		if len(img.RepoDigests) == 0 {
			continue
		}
		at := strings.LastIndexByte(img.RepoDigests[0], '@')
		if at < 0 {
			continue
		}
		d := img.RepoDigests[0][at+1:]
		idx[img.ID] = d
		for _, rt := range img.RepoTags {
			idx[rt] = d
		}
	}
	return idx
}

func itemState(state string) domain.ItemState {
	switch state {
	case "running":
		return domain.StateRunning
	case "exited", "dead":
		return domain.StateExited
	default:
		return domain.StateUnknown
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// parseImageRef splits an image reference into repository, tag and pinned
// digest. Unparseable references (raw image IDs) keep the raw string as the
// repository with no tag.
func parseImageRef(raw string) domain.ImageRef {
	named, err := reference.ParseNormalizedNamed(raw)
	if err != nil {
		return domain.ImageRef{Repository: raw}
	}
	ref := domain.ImageRef{Repository: reference.FamiliarName(named)}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	if canonical, ok := named.(reference.Canonical); ok {
		ref.Digest = canonical.Digest().String()
	} else if ref.Tag == "" {
		ref.Tag = "latest"
	}
	return ref
}
