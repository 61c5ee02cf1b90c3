package update

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// Scanner drives the process-wide bulk update scan. At most one scan is
// active at a time; a second start is rejected, not queued. Cancellation is
// cooperative: the flag is observed between items, so an in-flight registry
// call finishes before the scan stops.
type Scanner struct {
	inv     ports.InventoryService
	checker *Checker
	log     *slog.Logger

	cancelled atomic.Bool

	mu     sync.Mutex
	active bool
	status domain.ScanStatus
}

// NewScanner creates the scan manager. It also implements
// ports.UpdateService by delegating single checks to the checker.
func NewScanner(inv ports.InventoryService, checker *Checker, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{inv: inv, checker: checker, log: log}
}

// CheckItem implements the single-item half of ports.UpdateService.
func (s *Scanner) CheckItem(ctx context.Context, item domain.Item) domain.UpdateRecord {
	return s.checker.CheckItem(ctx, item)
}

// StartScan claims the scan slot and runs the scan in the background.
// Returns a scan_in_progress error while one is active. The scan is
// detached from the caller's context: an HTTP request returning does not
// kill the scan it started.
func (s *Scanner) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return domain.NewError(domain.CodeScanInProgress, "a bulk update scan is already running")
	}
	s.active = true
	s.cancelled.Store(false)
	s.status = domain.ScanStatus{Active: true}
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx))
	return nil
}

// CancelScan flips the cancellation flag. Completed results are kept.
func (s *Scanner) CancelScan() {
	s.cancelled.Store(true)
}

// ScanStatus returns a copy of the scan's observable state.
func (s *Scanner) ScanStatus() domain.ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Results = append([]domain.UpdateRecord(nil), s.status.Results...)
	return st
}

func (s *Scanner) run(ctx context.Context) {
	snap, err := s.inv.List(ctx)
	if err != nil {
		s.finish(func(st *domain.ScanStatus) { st.Err = err.Error() })
		return
	}

	s.mu.Lock()
	s.status.Total = len(snap.Items)
	s.mu.Unlock()
	s.log.Info("bulk update scan started", "items", len(snap.Items))

	for _, item := range snap.Items {
		if s.cancelled.Load() {
			s.finish(func(st *domain.ScanStatus) { st.Cancelled = true })
			s.log.Info("bulk update scan cancelled")
			return
		}
		rec := s.checker.CheckItem(ctx, item)
		s.mu.Lock()
		s.status.Checked++
		s.status.Results = append(s.status.Results, rec)
		s.mu.Unlock()
	}

	s.finish(nil)
	s.log.Info("bulk update scan finished")
}

// finish releases the slot. Progress and results stay readable until the
// next scan resets them.
func (s *Scanner) finish(mutate func(*domain.ScanStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Active = false
	s.status.Done = true
	if mutate != nil {
		mutate(&s.status)
	}
	s.active = false
}
