package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"tender-scraper/config"
	"tender-scraper/models"
	"tender-scraper/utils"
)

func testManager(t *testing.T, root string) *Manager {
	t.Helper()
	cfg := &config.Config{
		OutputDir:          root,
		MaxConcurrency:     2,
		RateLimitMs:        0,
		DownloadTimeoutSec: 5,
	}
	return NewManager(cfg, utils.NewLogger())
}

func TestDownloadIdempotence(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	m := testManager(t, root)
	doc := models.DocumentRef{Filename: "lv.pdf", URL: srv.URL + "/files/lv.pdf"}

	m.Submit(context.Background(), "RIB-2025-001", []models.DocumentRef{doc})
	first := m.Wait()
	if len(first) != 1 || first[0].Status != StatusSaved {
		t.Fatalf("first download results = %+v", first)
	}

	m.Submit(context.Background(), "RIB-2025-001", []models.DocumentRef{doc})
	second := m.Wait()
	if len(second) != 2 || second[1].Status != StatusAlreadyPresent {
		t.Fatalf("second download results = %+v", second)
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hit %d times; want exactly 1", got)
	}

	data, err := os.ReadFile(filepath.Join(root, "documents", "RIB-2025-001", "lv.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("file content = %q", data)
	}
}

func TestDownloadFailureLeavesNoPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	root := t.TempDir()
	m := testManager(t, root)

	m.Submit(context.Background(), "RIB-2025-002", []models.DocumentRef{
		{Filename: "lv.pdf", URL: srv.URL + "/files/lv.pdf"},
	})
	results := m.Wait()
	if len(results) != 1 || results[0].Status != StatusFailed {
		t.Fatalf("results = %+v; want one failure", results)
	}

	dir := filepath.Join(root, "documents", "RIB-2025-002")
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) > 0 {
		t.Errorf("failure left files behind: %v", entries)
	}
}

// Two queued downloads of the same target must serialize on the path lock:
// the second worker finds the file on disk and never hits the server.
func TestConcurrentDownloadsSameTargetFetchOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	m := testManager(t, t.TempDir())
	doc := models.DocumentRef{Filename: "lv.pdf", URL: srv.URL + "/files/lv.pdf"}

	m.Submit(context.Background(), "RIB-2025-004", []models.DocumentRef{doc, doc})
	results := m.Wait()

	if len(results) != 2 {
		t.Fatalf("got %d results; want 2", len(results))
	}
	var saved, present int
	for _, res := range results {
		switch res.Status {
		case StatusSaved:
			saved++
		case StatusAlreadyPresent:
			present++
		}
	}
	if saved != 1 || present != 1 {
		t.Errorf("statuses = %+v; want one saved and one already present", results)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hit %d times; want exactly 1", got)
	}
}

func TestSubmitSkipsDocumentsWithoutURL(t *testing.T) {
	m := testManager(t, t.TempDir())
	m.Submit(context.Background(), "RIB-2025-003", []models.DocumentRef{
		{Filename: "note.pdf"},
	})
	if results := m.Wait(); len(results) != 0 {
		t.Errorf("results = %+v; want none for URL-less documents", results)
	}
}

func TestSanitizeFolder(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RIB-2025-001", "RIB-2025-001"},
		{"Sanierung / Umbau: Grundschule", "Sanierung_Umbau_Grundschule"},
		{"a  b\tc", "a_b_c"},
		{"", "tender"},
		{"..", "tender"},
	}
	for _, tt := range tests {
		if got := SanitizeFolder(tt.in); got != tt.want {
			t.Errorf("SanitizeFolder(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFolder(string(make([]byte, 100)))
	if len(long) > maxFolderLen {
		t.Errorf("folder name not truncated: %d chars", len(long))
	}

	if SanitizeFolder("Neubau Kita Sonnenschein") != SanitizeFolder("Neubau Kita Sonnenschein") {
		t.Error("sanitization is not deterministic")
	}
}
