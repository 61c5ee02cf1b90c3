package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// Aggregator fans the per-host collector out across all discovered hosts
// and merges the results. One failing or slow host costs its own items,
// never the pass: its error lands in the snapshot's failure map while every
// other host's items are returned as usual.
type Aggregator struct {
	disc      *Discovery
	collector ports.Collector
	annotate  ports.UpdateAnnotator
	perHost   time.Duration
	log       *slog.Logger
}

// NewAggregator creates an aggregator. annotate may be nil when no update
// checker is wired; items then stay at their collected update state.
func NewAggregator(disc *Discovery, collector ports.Collector, annotate ports.UpdateAnnotator, perHost time.Duration, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		disc:      disc,
		collector: collector,
		annotate:  annotate,
		perHost:   perHost,
		log:       log,
	}
}

// Hosts implements the host-listing half of ports.InventoryService.
func (a *Aggregator) Hosts(ctx context.Context) ([]domain.Host, error) {
	return a.disc.Discover(ctx)
}

// List implements ports.InventoryService. Within one host items keep the
// runtime's listing order; across hosts the merge order is completion
// order. The only whole-call failure is having no hosts configured.
func (a *Aggregator) List(ctx context.Context) (domain.Snapshot, error) {
	hosts, err := a.disc.Discover(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(hosts) == 0 {
		return domain.Snapshot{}, domain.NewError(domain.CodeConfig, "no hosts configured")
	}

	snap := domain.Snapshot{
		Hosts:    hosts,
		Failures: make(map[string]string),
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	for _, h := range hosts {
		if !h.Active() {
			msg := h.Err
			if msg == "" {
				msg = "host is inactive"
			}
			snap.Failures[h.Name] = domain.NewError(domain.CodeHostUnreachable, msg).Error()
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, a.perHost)
			defer cancel()

			items, err := a.collector.Collect(cctx, h)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Only the per-host budget earns the timeout code; a
				// deadline inherited from the caller stays as is.
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					err = domain.WrapError(err, domain.CodeCollectionTimeout, "collection on "+h.Name+" exceeded its budget")
				}
				snap.Failures[h.Name] = err.Error()
				a.log.Warn("host collection failed", "host", h.Name, "error", err)
				return nil
			}
			snap.Items = append(snap.Items, a.annotated(items)...)
			return nil
		})
	}
	_ = g.Wait()
	return snap, nil
}

// annotated stamps cached update results onto fresh items so the inventory
// path never queries a registry.
func (a *Aggregator) annotated(items []domain.Item) []domain.Item {
	if a.annotate == nil {
		return items
	}
	for i := range items {
		if items[i].Swarm {
			continue
		}
		if rec, ok := a.annotate.Cached(items[i].Host, items[i].Image); ok {
			items[i].Update = rec.Result
		}
	}
	return items
}
