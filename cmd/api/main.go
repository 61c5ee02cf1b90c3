package main

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	"harborview/internal/adapters/docker"
	httpapi "harborview/internal/adapters/http"
	"harborview/internal/adapters/registry"
	"harborview/internal/config"
	"harborview/internal/core/inventory"
	"harborview/internal/core/logstream"
	"harborview/internal/core/stats"
	"harborview/internal/core/update"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(os.Getenv("HARBORVIEW_CONFIG"))
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	policy, err := update.ParsePolicy(cfg.UpdatePolicy)
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}

	pool := docker.NewPool(cfg, log)
	collector := docker.NewCollector(pool, cfg, log)
	discovery := inventory.NewDiscovery(pool, cfg.HostNames(), cfg.DiscoveryTTL, cfg.DiscoveryTimeout, log)

	checker := update.NewChecker(registry.NewClient(cfg.RegistryTimeout, log), policy, cfg.UpdateCacheTTL, log)
	aggregator := inventory.NewAggregator(discovery, collector, checker, cfg.CollectTimeout, log)
	scanner := update.NewScanner(aggregator, checker, log)

	logStreams := logstream.NewManager(collector, cfg.HeartbeatInterval, log)
	defer logStreams.CloseAll()
	hostStats := stats.NewCollector(pool, aggregator, cfg.StatsTTL, log)

	app := fiber.New()
	httpapi.NewHandler(aggregator, scanner, logStreams, hostStats, log).Register(app)

	log.Info("server starting", "listen", cfg.Listen, "hosts", len(cfg.Hosts), "update_policy", cfg.UpdatePolicy)
	if err := app.Listen(cfg.Listen); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
