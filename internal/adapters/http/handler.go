// Package http is the thin API adapter over the engine's service
// interfaces. It carries no auth, sessions or rendering; those belong to
// the outer web layer.
package http

import (
	"bufio"
	"context"
	"log/slog"
	"sort"

	"github.com/gofiber/fiber/v2"

	"harborview/internal/core/domain"
	"harborview/internal/core/ports"
)

// Handler wires the service interfaces to fiber routes.
type Handler struct {
	inventory ports.InventoryService
	updates   ports.UpdateService
	logs      ports.LogStreamService
	stats     ports.StatsService
	log       *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(inv ports.InventoryService, upd ports.UpdateService, logs ports.LogStreamService, stats ports.StatsService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{inventory: inv, updates: upd, logs: logs, stats: stats, log: log}
}

// Register mounts all routes under /api/v1.
func (h *Handler) Register(app *fiber.App) {
	v1 := app.Group("/api").Group("/v1")

	v1.Get("/inventory", h.ListInventory)
	v1.Get("/hosts", h.ListHosts)
	v1.Get("/hosts/stats", h.HostStats)

	v1.Post("/updates/check", h.CheckUpdate)
	v1.Post("/updates/scan", h.StartScan)
	v1.Get("/updates/scan", h.ScanStatus)
	v1.Delete("/updates/scan", h.CancelScan)

	v1.Get("/logs/:host/:id", h.StreamLogs)
}

// ListInventory serves one dashboard refresh. The engine makes no cross-host
// ordering promise, so the presentation order is fixed here.
func (h *Handler) ListInventory(c *fiber.Ctx) error {
	snap, err := h.inventory.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	sort.SliceStable(snap.Items, func(i, j int) bool {
		if snap.Items[i].Host != snap.Items[j].Host {
			return snap.Items[i].Host < snap.Items[j].Host
		}
		return snap.Items[i].Name < snap.Items[j].Name
	})
	return c.JSON(snap)
}

func (h *Handler) ListHosts(c *fiber.Ctx) error {
	hosts, err := h.inventory.Hosts(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hosts)
}

func (h *Handler) HostStats(c *fiber.Ctx) error {
	all, err := h.stats.AllHostStats(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(all)
}

type checkUpdateRequest struct {
	Host string `json:"host"`
	ID   string `json:"id"`
}

// CheckUpdate checks a single item, located by host and id in the current
// inventory.
func (h *Handler) CheckUpdate(c *fiber.Ctx) error {
	var req checkUpdateRequest
	if err := c.BodyParser(&req); err != nil || req.Host == "" || req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "host and id are required",
		})
	}

	snap, err := h.inventory.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	for _, item := range snap.Items {
		if item.Host == req.Host && item.ID == req.ID {
			return c.JSON(h.updates.CheckItem(c.Context(), item))
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "no such item in the current inventory",
	})
}

func (h *Handler) StartScan(c *fiber.Ctx) error {
	if err := h.updates.StartScan(c.Context()); err != nil {
		if domain.IsCode(err, domain.CodeScanInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(h.updates.ScanStatus())
}

func (h *Handler) ScanStatus(c *fiber.Ctx) error {
	return c.JSON(h.updates.ScanStatus())
}

func (h *Handler) CancelScan(c *fiber.Ctx) error {
	h.updates.CancelScan()
	return c.JSON(h.updates.ScanStatus())
}

// StreamLogs tails one item's logs as plain text. Heartbeat frames flush an
// empty keepalive line; a failed write or flush is the disconnect signal
// that releases the session.
func (h *Handler) StreamLogs(c *fiber.Ctx) error {
	host := c.Params("host")
	id := c.Params("id")

	// The session outlives this handler, so it is opened on a detached
	// context; its lifetime is governed by the release func below.
	frames, release, err := h.logs.Open(context.Background(), host, id)
	if err != nil {
		if domain.IsCode(err, domain.CodeHostUnreachable) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer release()
		for frame := range frames {
			line := frame.Line
			if frame.Kind == domain.FrameHeartbeat {
				line = ""
			}
			if _, err := w.WriteString(line + "\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	h.log.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
