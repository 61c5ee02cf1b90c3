// Package logstream turns follow log streams into cancellable frame
// channels with liveness heartbeats. Every exit path (consumer close,
// context cancel, read error, stream end) releases the underlying handle
// exactly once and removes the session.
package logstream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/pkg/stdcopy"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// Manager owns the live log sessions.
type Manager struct {
	opener    ports.LogOpener
	heartbeat time.Duration
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[uint64]*session
	nextID   uint64
}

type session struct {
	id     uint64
	host   string
	item   string
	rc     io.ReadCloser
	frames chan domain.LogFrame
	done   chan struct{}
	once   sync.Once
}

// NewManager creates a session manager emitting one heartbeat frame per
// interval of silence.
func NewManager(opener ports.LogOpener, heartbeat time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		opener:    opener,
		heartbeat: heartbeat,
		log:       log,
		sessions:  make(map[uint64]*session),
	}
}

// Open implements ports.LogStreamService. The returned channel closes when
// the stream ends or the session is released; the close func is idempotent
// and must be called by the consumer on every disconnect path.
func (m *Manager) Open(ctx context.Context, host, id string) (<-chan domain.LogFrame, func(), error) {
	rc, tty, err := m.opener.OpenLogs(ctx, host, id)
	if err != nil {
		return nil, nil, err
	}

	s := &session{
		host:   host,
		item:   id,
		rc:     rc,
		frames: make(chan domain.LogFrame, 16),
		done:   make(chan struct{}),
	}
	m.add(s)

	lines := make(chan string)
	go readLines(demux(rc, tty), lines, s.done)
	go m.pump(ctx, s, lines)

	return s.frames, s.stop, nil
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll releases every live session, unblocking their readers.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()
	for _, s := range open {
		s.stop()
	}
}

func (m *Manager) add(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.id = m.nextID
	m.sessions[s.id] = s
}

func (m *Manager) remove(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
}

// stop signals teardown. Closing the underlying handle happens in the pump
// so it runs exactly once, and it unblocks any pending read.
func (s *session) stop() {
	s.once.Do(func() { close(s.done) })
}

// pump forwards log lines as frames, inserts heartbeats during silence and
// guarantees the release on every exit path.
func (m *Manager) pump(ctx context.Context, s *session, lines <-chan string) {
	defer func() {
		s.stop()
		_ = s.rc.Close()
		m.remove(s)
		close(s.frames)
		m.log.Debug("log session closed", "host", s.host, "item", s.item)
	}()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !s.send(domain.LogFrame{Kind: domain.FrameLine, Line: line, Time: time.Now()}) {
				return
			}
			ticker.Reset(m.heartbeat)
		case <-ticker.C:
			if !s.send(domain.LogFrame{Kind: domain.FrameHeartbeat, Time: time.Now()}) {
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) send(f domain.LogFrame) bool {
	select {
	case s.frames <- f:
		return true
	case <-s.done:
		return false
	}
}

// demux strips docker's stdout/stderr multiplex framing unless the stream
// came from a TTY container, which writes raw output.
func demux(rc io.Reader, tty bool) io.Reader {
	if tty {
		return rc
	}
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		_ = pw.CloseWithError(err)
	}()
	return pr
}

// readLines scans the stream into lines and closes the channel on EOF or
// error. Closing the underlying handle unblocks a pending read; done
// unblocks a pending send after the pump has gone away.
func readLines(r io.Reader, out chan<- string, done <-chan struct{}) {
	defer close(out)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-done:
			return
		}
	}
}
