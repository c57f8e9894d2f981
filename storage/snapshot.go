package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tender-scraper/models"
)

const (
	titleBudget = 200
	textBudget  = 500
)

// SnapshotWriter writes the run's file artifacts below one output root:
// per-item raw checkpoints, the aggregate JSON snapshot, and the flat CSV
// overview for spreadsheet inspection.
type SnapshotWriter struct {
	root string
}

// NewSnapshotWriter creates the output directory layout under root.
func NewSnapshotWriter(root string) (*SnapshotWriter, error) {
	for _, dir := range []string{"data", "documents", "screenshots", "raw"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("snapshot: create %s dir: %w", dir, err)
		}
	}
	return &SnapshotWriter{root: root}, nil
}

// WriteRaw checkpoints one record to raw/tender_<id>.json right after
// extraction, so a crash later in the run loses nothing already extracted.
func (w *SnapshotWriter) WriteRaw(rec *models.RawTenderRecord) error {
	path := filepath.Join(w.root, "raw", "tender_"+rec.ID+".json")
	return w.writeJSON(path, rec)
}

// WriteAll writes the aggregate snapshot of every record in the run.
func (w *SnapshotWriter) WriteAll(recs []*models.RawTenderRecord) error {
	path := filepath.Join(w.root, "data", "all_tenders.json")
	return w.writeJSON(path, recs)
}

// WriteReport persists the final run report next to the snapshot.
func (w *SnapshotWriter) WriteReport(report *models.RunReport) error {
	path := filepath.Join(w.root, "data", "run_report.json")
	return w.writeJSON(path, report)
}

func (w *SnapshotWriter) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// WriteOverview writes data/tenders_overview.csv with one flattened row per
// tender. Long text fields are truncated to a fixed budget.
func (w *SnapshotWriter) WriteOverview(recs []*models.RawTenderRecord) error {
	path := filepath.Join(w.root, "data", "tenders_overview.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{
		"id", "tender_number", "title", "degraded", "documents", "detail_text", "scraped_at",
	}); err != nil {
		return fmt.Errorf("snapshot: write csv header: %w", err)
	}

	for _, rec := range recs {
		row := []string{
			rec.ID,
			rec.TenderNumber,
			truncate(rec.Title, titleBudget),
			strconv.FormatBool(rec.Degraded),
			strconv.Itoa(len(rec.Documents)),
			truncate(rec.DetailText, textBudget),
			rec.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("snapshot: write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
