package domain

import "time"

// FrameKind distinguishes real log output from synthetic liveness frames.
type FrameKind string

const (
	FrameLine      FrameKind = "line"
	FrameHeartbeat FrameKind = "heartbeat"
)

// LogFrame is one element of a log stream session: either a log line as it
// arrived from the host, or a heartbeat emitted during silence so the
// transport can detect a dead connection.
type LogFrame struct {
	Kind FrameKind `json:"kind"`
	Line string    `json:"line,omitempty"`
	Time time.Time `json:"time"`
}
