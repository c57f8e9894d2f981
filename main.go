package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tender-scraper/browser"
	"tender-scraper/config"
	"tender-scraper/downloader"
	"tender-scraper/runner"
	"tender-scraper/scraper/rib"
	"tender-scraper/services"
	"tender-scraper/storage"
	"tender-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetDebug(cfg.Debug)

	logger.Info("=== Tender Scraping System starting ===")
	logger.Info("Config — portal: %s | max tenders: %d | concurrency: %d | rate: %dms",
		cfg.PortalURL, cfg.MaxTenders, cfg.MaxConcurrency, cfg.RateLimitMs)

	snapshots, err := storage.NewSnapshotWriter(cfg.OutputDir)
	if err != nil {
		logger.Error("Failed to create output directories: %v", err)
		os.Exit(1)
	}

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	session, err := browser.NewChromeSession(cfg, logger)
	if err != nil {
		logger.Error("Failed to start browser: %v", err)
		os.Exit(1)
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scraper := rib.New(cfg, logger, session)
	downloads := downloader.NewManager(cfg, logger)
	reports := services.NewReportService(logger)

	ctrl := runner.New(cfg, logger, scraper, store, downloads, snapshots)

	report, runErr := ctrl.Run(ctx)
	reports.Print(report)

	if runErr != nil {
		logger.Error("Run aborted: %v", runErr)
		os.Exit(1)
	}

	fmt.Printf("  Done. Snapshot → %s/data | Documents → %s/documents | Postgres (publications table)\n\n",
		cfg.OutputDir, cfg.OutputDir)
}
