// Package runner drives the extraction pipeline end to end: discover
// listing items, extract each one, persist the result and queue its
// documents, then write the snapshot artifacts and the run report.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tender-scraper/config"
	"tender-scraper/downloader"
	"tender-scraper/models"
	"tender-scraper/scraper/rib"
	"tender-scraper/storage"
	"tender-scraper/utils"
)

// Controller wires the scraper, persistence gateway, download manager and
// snapshot writer into one run.
type Controller struct {
	cfg       *config.Config
	logger    *utils.Logger
	scraper   *rib.Scraper
	store     storage.Ingestor
	downloads *downloader.Manager
	snapshots *storage.SnapshotWriter
}

// New creates a Controller.
func New(
	cfg *config.Config,
	logger *utils.Logger,
	scraper *rib.Scraper,
	store storage.Ingestor,
	downloads *downloader.Manager,
	snapshots *storage.SnapshotWriter,
) *Controller {
	return &Controller{
		cfg:       cfg,
		logger:    logger,
		scraper:   scraper,
		store:     store,
		downloads: downloads,
		snapshots: snapshots,
	}
}

// Run executes one full scrape. Per-item failures are counted and the run
// continues; only an unreachable listing aborts it. The returned report is
// valid even when err is non-nil, and whatever artifacts were produced
// before the abort stay on disk.
func (c *Controller) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		Portal:    c.scraper.PortalName(),
		StartedAt: time.Now(),
	}
	defer func() { report.FinishedAt = time.Now() }()

	c.logger.Info("Run %s — opening listing %s", report.RunID, c.scraper.ListingURL())

	if err := c.scraper.OpenListing(ctx); err != nil {
		return report, fmt.Errorf("runner: listing unreachable: %w", err)
	}
	c.scraper.Screenshot(ctx, filepath.Join(c.cfg.OutputDir, "screenshots", "start.png"))

	ids, err := c.scraper.DiscoverTenders(ctx)
	if err != nil {
		return report, fmt.Errorf("runner: discovery failed: %w", err)
	}
	report.Discovered = len(ids)

	var records []*models.RawTenderRecord
	for i, id := range ids {
		select {
		case <-ctx.Done():
			c.logger.Warn("Stop signal received — %d of %d item(s) processed", i, len(ids))
			goto finish
		default:
		}

		c.logger.Info("[%d/%d] Tender %s", i+1, len(ids), id)
		records = append(records, c.processItem(ctx, id, report))
	}

finish:
	records = compact(records)

	results := c.downloads.Wait()
	for _, res := range results {
		switch res.Status {
		case downloader.StatusSaved:
			report.DocumentsSaved++
		case downloader.StatusAlreadyPresent:
			report.DocumentsSkipped++
		case downloader.StatusFailed:
			report.DocumentsFailed++
		}
	}

	c.writeArtifacts(records, report)
	return report, nil
}

// processItem runs extraction, persistence and download queueing for one id.
// It returns nil when extraction failed.
func (c *Controller) processItem(ctx context.Context, id string, report *models.RunReport) *models.RawTenderRecord {
	rec, err := c.scraper.Extract(ctx, id)
	if err != nil {
		report.Failed++
		report.Errors = append(report.Errors, err.Error())
		c.logger.Error("Tender %s failed: %v", id, err)
		return nil
	}

	if rec.Degraded {
		report.Degraded++
	} else {
		report.Extracted++
	}

	// Durable checkpoint, independent of the final aggregate.
	if err := c.snapshots.WriteRaw(rec); err != nil {
		c.logger.Warn("Raw checkpoint for tender %s failed: %v", id, err)
	}

	input := rib.BuildPublicationInput(rec)
	res, err := c.store.Ingest(ctx, input)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("ingest tender %s: %v", id, err))
		c.logger.Error("Ingest for tender %s failed: %v", id, err)
		return rec
	}

	if !res.Created {
		// Already ingested in an earlier run: documents were handled
		// then, so nothing else is written for this tender.
		report.SkippedDuplicate++
		c.logger.Info("Tender %s (%s) already ingested — skipping", id, input.TenderNumber)
		return rec
	}

	report.Persisted++
	c.downloads.Submit(ctx, input.TenderNumber, rec.Documents)
	return rec
}

func (c *Controller) writeArtifacts(records []*models.RawTenderRecord, report *models.RunReport) {
	if err := c.snapshots.WriteAll(records); err != nil {
		c.logger.Error("Snapshot write failed: %v", err)
	}
	if err := c.snapshots.WriteOverview(records); err != nil {
		c.logger.Error("Overview CSV write failed: %v", err)
	}
	if err := c.snapshots.WriteReport(report); err != nil {
		c.logger.Error("Report write failed: %v", err)
	}
}

func compact(records []*models.RawTenderRecord) []*models.RawTenderRecord {
	out := records[:0]
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}
