package rib

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tender-scraper/browser"
	"tender-scraper/models"
)

// Stage names the extraction step an item failed in.
type Stage string

const (
	StageLocated  Stage = "located"
	StageExpanded Stage = "expanded"
	StageParsed   Stage = "parsed"
)

// ExtractionError tags a per-item failure with the item and the stage it
// died in. It never escapes the run controller: one item failing must not
// abort the run.
type ExtractionError struct {
	ItemID string
	Stage  Stage
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("rib: extract tender %s (stage %s): %v", e.ItemID, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract runs the per-item state machine: locate the listing item, expand
// its detail region, parse the detail text and resolve document links.
//
// An expand timeout does not fail the item: the record is built from the
// summary text alone and flagged as degraded.
func (s *Scraper) Extract(ctx context.Context, id string) (*models.RawTenderRecord, error) {
	item, err := s.session.Find(ctx, "#tender-"+id)
	if err != nil {
		return nil, &ExtractionError{ItemID: id, Stage: StageLocated, Err: err}
	}

	summary, err := item.Text(ctx)
	if err != nil {
		return nil, &ExtractionError{ItemID: id, Stage: StageLocated, Err: err}
	}

	rec := &models.RawTenderRecord{
		ID:             id,
		Portal:         portalName,
		PublicationURL: s.cfg.PortalURL,
		ScrapedAt:      time.Now(),
	}

	detailText, detailHTML, degraded := s.expand(ctx, id, item)
	if err := ctx.Err(); err != nil {
		return nil, &ExtractionError{ItemID: id, Stage: StageExpanded, Err: err}
	}
	if degraded {
		s.logger.Warn("[rib] Tender %s: detail did not expand — using summary text only", id)
		detailText = summary
	}

	rec.Degraded = degraded
	rec.DetailText = detailText
	rec.ParsedFields = ParseFields(detailText)
	rec.TenderNumber = tenderNumberOf(rec)
	rec.Title = firstLine(summary)
	if rec.Title == "" {
		rec.Title = "Ausschreibung " + id
	}

	if detailHTML != "" {
		docs, err := ResolveDocuments(detailHTML, s.baseURL(), s.filter)
		if err != nil {
			// Malformed detail markup loses the documents, not the record.
			s.logger.Warn("[rib] Tender %s: document resolution failed: %v", id, err)
		} else {
			rec.Documents = docs
			s.logger.Debug("[rib] Tender %s: %d document(s)", id, len(docs))
		}
	}

	s.Screenshot(ctx, filepath.Join(s.cfg.OutputDir, "screenshots", "tender_"+id+".png"))

	return rec, nil
}

// expand clicks the item and waits for its collapse region. It returns the
// detail text and HTML on success, or degraded=true when the region never
// became visible within the configured timeout.
func (s *Scraper) expand(ctx context.Context, id string, item browser.Element) (text, html string, degraded bool) {
	if err := item.Click(ctx); err != nil {
		s.logger.Debug("[rib] Tender %s: expand click failed: %v", id, err)
		return "", "", true
	}

	detail, err := s.session.Find(ctx, "#collapseItem-"+id)
	if err != nil {
		return "", "", true
	}

	if err := detail.WaitVisible(ctx, s.cfg.ExpandTimeout()); err != nil {
		if !errors.Is(err, browser.ErrVisibleTimeout) && !errors.Is(err, browser.ErrNotFound) {
			s.logger.Debug("[rib] Tender %s: wait visible: %v", id, err)
		}
		return "", "", true
	}

	text, err = detail.Text(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		return "", "", true
	}

	// Document links live in the same region; HTML failure only loses them.
	html, _ = detail.HTML(ctx)

	return text, html, false
}
