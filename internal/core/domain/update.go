package domain

import "time"

// UpdateResult is the outcome of one image-update check.
type UpdateResult string

const (
	UpdateUnknown     UpdateResult = "unknown"
	UpdateUpToDate    UpdateResult = "up-to-date"
	UpdateAvailable   UpdateResult = "update-available"
	UpdateUnsupported UpdateResult = "unsupported"
	UpdateCheckFailed UpdateResult = "check-failed"
)

// UpdateRecord is the cached result of checking one (host, image) pair under
// a resolved tag.
type UpdateRecord struct {
	Host         string       `json:"host"`
	Image        ImageRef     `json:"image"`
	ResolvedTag  string       `json:"resolved_tag"`
	LocalDigest  string       `json:"local_digest,omitempty"`
	RemoteDigest string       `json:"remote_digest,omitempty"`
	Result       UpdateResult `json:"result"`
	Err          string       `json:"error,omitempty"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// ScanStatus is the observable state of the process-wide bulk update scan.
// Results holds the records completed so far; they survive cancellation.
type ScanStatus struct {
	Active    bool           `json:"active"`
	Checked   int            `json:"checked"`
	Total     int            `json:"total"`
	Cancelled bool           `json:"cancelled"`
	Done      bool           `json:"done"`
	Err       string         `json:"error,omitempty"`
	Results   []UpdateRecord `json:"results,omitempty"`
}
