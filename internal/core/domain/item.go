package domain

// ItemState is the coarse runtime state of an inventory item.
type ItemState string

const (
	StateRunning ItemState = "running"
	StateExited  ItemState = "exited"
	StateUnknown ItemState = "unknown"
)

// ImageRef identifies the image an item was created from. Digest is the
// locally-known repo digest and may be empty when the image has never been
// pulled from a registry.
type ImageRef struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Digest     string `json:"digest,omitempty"`
}

// String renders the reference as repository:tag.
func (r ImageRef) String() string {
	if r.Tag == "" {
		return r.Repository
	}
	return r.Repository + ":" + r.Tag
}

// PortSource distinguishes natively published ports from ports declared via
// the custom-ports label.
type PortSource string

const (
	PortPublished PortSource = "published"
	PortLabel     PortSource = "label"
)

// PortMapping is one published or labeled port of an item. When HostPortEnd
// is greater than HostPort the mapping represents a collapsed consecutive
// range HostPort-HostPortEnd.
type PortMapping struct {
	ContainerPort uint16     `json:"container_port,omitempty"`
	HostPort      uint16     `json:"host_port"`
	HostPortEnd   uint16     `json:"host_port_end,omitempty"`
	Protocol      string     `json:"protocol"`
	Scheme        string     `json:"scheme"`
	Source        PortSource `json:"source"`
	Linkable      bool       `json:"linkable"`
}

// ProxyRoute is a reverse-proxy rule parsed from an item's router labels.
type ProxyRoute struct {
	Router       string   `json:"router"`
	Hosts        []string `json:"hosts,omitempty"`
	PathPrefixes []string `json:"path_prefixes,omitempty"`
	EntryPoints  []string `json:"entrypoints,omitempty"`
	TLS          bool     `json:"tls"`
}

// Item is one container or swarm service normalized into the common record
// shape. Items are produced fresh on every aggregation pass and never mutated
// in place; every Item references exactly one host that was active when it
// was collected.
type Item struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Host     string        `json:"host"`
	Stack    string        `json:"stack,omitempty"`
	Image    ImageRef      `json:"image"`
	State    ItemState     `json:"state"`
	Status   string        `json:"status,omitempty"`
	Health   string        `json:"health,omitempty"`
	ExitCode int           `json:"exit_code,omitempty"`
	Swarm    bool          `json:"swarm"`
	Replicas string        `json:"replicas,omitempty"`
	Ports    []PortMapping `json:"ports,omitempty"`
	Routes   []ProxyRoute  `json:"routes,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Link     string        `json:"link,omitempty"`
	Update   UpdateResult  `json:"update"`
}

// Snapshot is one merged inventory pass: items from every host that
// responded, plus the per-host failures that were isolated instead of
// failing the whole pass.
type Snapshot struct {
	Items    []Item            `json:"items"`
	Hosts    []Host            `json:"hosts"`
	Failures map[string]string `json:"failures,omitempty"`
}
