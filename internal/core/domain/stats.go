package domain

import "time"

// HostStats is a normalized resource snapshot for one host. A failed
// collection still yields a record, with Status "error" and the message in
// Err, so one bad host never drops out of the stats view.
type HostStats struct {
	Host              string    `json:"host"`
	Source            string    `json:"source"`
	CPUs              int       `json:"cpus,omitempty"`
	MemoryTotal       int64     `json:"memory_total,omitempty"`
	LayersSize        int64     `json:"layers_size,omitempty"`
	ContainersRunning int       `json:"containers_running"`
	ContainersTotal   int       `json:"containers_total"`
	ImagesTotal       int       `json:"images_total"`
	ServerVersion     string    `json:"server_version,omitempty"`
	Status            string    `json:"status"`
	Err               string    `json:"error,omitempty"`
	CollectedAt       time.Time `json:"collected_at"`
}
