package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tender-scraper/models"
)

func testRecord(id, title, detail string) *models.RawTenderRecord {
	return &models.RawTenderRecord{
		ID:           id,
		TenderNumber: "RIB-" + id,
		Title:        title,
		DetailText:   detail,
		ParsedFields: map[string]string{},
		ScrapedAt:    time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotWriterCreatesLayout(t *testing.T) {
	root := t.TempDir()
	if _, err := NewSnapshotWriter(root); err != nil {
		t.Fatal(err)
	}

	for _, dir := range []string{"data", "documents", "screenshots", "raw"} {
		if _, err := os.Stat(filepath.Join(root, dir)); err != nil {
			t.Errorf("missing %s directory: %v", dir, err)
		}
	}
}

func TestWriteRawCheckpoint(t *testing.T) {
	root := t.TempDir()
	w, err := NewSnapshotWriter(root)
	if err != nil {
		t.Fatal(err)
	}

	rec := testRecord("7", "Neubau Kita", "Tender Number: RIB-7")
	if err := w.WriteRaw(rec); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "raw", "tender_7.json"))
	if err != nil {
		t.Fatal(err)
	}

	var got models.RawTenderRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "7" || got.Title != "Neubau Kita" {
		t.Errorf("checkpoint = %+v", got)
	}
}

func TestWriteAllSnapshot(t *testing.T) {
	root := t.TempDir()
	w, err := NewSnapshotWriter(root)
	if err != nil {
		t.Fatal(err)
	}

	recs := []*models.RawTenderRecord{
		testRecord("1", "A", "x"),
		testRecord("2", "B", "y"),
	}
	if err := w.WriteAll(recs); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "data", "all_tenders.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []models.RawTenderRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("snapshot has %d records; want 2", len(got))
	}
}

func TestWriteOverviewTruncatesLongText(t *testing.T) {
	root := t.TempDir()
	w, err := NewSnapshotWriter(root)
	if err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("ä", 600)
	if err := w.WriteOverview([]*models.RawTenderRecord{testRecord("9", "T", long)}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(root, "data", "tenders_overview.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("csv has %d rows; want header + 1", len(rows))
	}

	detail := rows[1][5]
	if got := len([]rune(detail)); got != textBudget {
		t.Errorf("detail_text cell has %d runes; want %d", got, textBudget)
	}
	if rows[1][1] != "RIB-9" {
		t.Errorf("tender_number cell = %q", rows[1][1])
	}
}

// The overview column must carry the record's resolved tender number, not a
// lookup into the raw label map, so it matches the key the record was
// persisted under even when the portal used a German label.
func TestWriteOverviewUsesResolvedTenderNumber(t *testing.T) {
	root := t.TempDir()
	w, err := NewSnapshotWriter(root)
	if err != nil {
		t.Fatal(err)
	}

	rec := &models.RawTenderRecord{
		ID:           "7",
		TenderNumber: "RIB-2025-007",
		Title:        "Sanierung",
		ParsedFields: map[string]string{"vergabenummer": "RIB-2025-007"},
		ScrapedAt:    time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := w.WriteOverview([]*models.RawTenderRecord{rec}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(root, "data", "tenders_overview.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][1] != "RIB-2025-007" {
		t.Fatalf("tender_number cell = %q; want RIB-2025-007", rows[1][1])
	}
}
