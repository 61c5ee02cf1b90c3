package domain

// HostStatus reports whether a configured host answered its last probe.
type HostStatus string

const (
	HostActive   HostStatus = "active"
	HostInactive HostStatus = "inactive"
)

// Host is a point-in-time snapshot of one configured container-runtime
// endpoint. The client handle itself lives in the connection pool; a Host
// value only carries what the rest of the engine needs to know.
type Host struct {
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Status HostStatus `json:"status"`
	Swarm  bool       `json:"swarm"`
	Err    string     `json:"error,omitempty"`
}

// Active reports whether the host answered its last probe.
func (h Host) Active() bool {
	return h.Status == HostActive
}
