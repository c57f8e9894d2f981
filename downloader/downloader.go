// Package downloader fetches tender documents exactly once per
// (tender, filename) pair and stores them under a per-tender folder.
package downloader

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"tender-scraper/config"
	"tender-scraper/models"
	"tender-scraper/utils"
)

// Status of a single document download.
type Status string

const (
	StatusSaved          Status = "saved"
	StatusAlreadyPresent Status = "already_present"
	StatusFailed         Status = "failed"
)

// Result reports the outcome of one document download.
type Result struct {
	Tender   string
	Filename string
	URL      string
	Status   Status
	Err      error
}

const lockStripes = 64

// Manager downloads documents with bounded parallelism. Downloads for
// different tenders run concurrently; a striped per-path lock keeps two
// workers from racing on the same target file without growing state per path.
type Manager struct {
	root   string
	client *http.Client
	logger *utils.Logger
	pool   *utils.WorkerPool

	locks [lockStripes]sync.Mutex

	resMu   sync.Mutex
	results []Result
}

// NewManager creates a Manager writing below <root>/documents.
func NewManager(cfg *config.Config, logger *utils.Logger) *Manager {
	return &Manager{
		root:   cfg.OutputDir,
		client: &http.Client{Timeout: cfg.DownloadTimeout()},
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
	}
}

// Submit queues every document of one tender for download. Documents
// without a URL are skipped silently: there is nothing to fetch.
func (m *Manager) Submit(ctx context.Context, tender string, docs []models.DocumentRef) {
	folder := SanitizeFolder(tender)
	for _, doc := range docs {
		if doc.URL == "" {
			continue
		}
		d := doc
		m.pool.Submit(func() {
			m.record(m.download(ctx, tender, folder, d))
		})
	}
}

// Wait blocks until all queued downloads finished and returns their results.
func (m *Manager) Wait() []Result {
	m.pool.Wait()

	m.resMu.Lock()
	defer m.resMu.Unlock()
	out := make([]Result, len(m.results))
	copy(out, m.results)
	return out
}

func (m *Manager) record(res Result) {
	m.resMu.Lock()
	m.results = append(m.results, res)
	m.resMu.Unlock()
}

func (m *Manager) download(ctx context.Context, tender, folder string, doc models.DocumentRef) Result {
	res := Result{Tender: tender, Filename: doc.Filename, URL: doc.URL}

	dir := filepath.Join(m.root, "documents", folder)
	target := filepath.Join(dir, sanitizeFilename(doc.Filename))

	lock := m.pathLock(target)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(target); err == nil {
		m.logger.Debug("[download] Already present: %s", target)
		res.Status = StatusAlreadyPresent
		return res
	}

	if err := m.fetch(ctx, doc.URL, dir, target); err != nil {
		m.logger.Warn("[download] %s (%s): %v", doc.Filename, tender, err)
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	m.logger.Info("[download] Saved %s", target)
	res.Status = StatusSaved
	return res
}

// fetch writes the response body to a temp file and renames it into place,
// so a failed download never leaves a partial target file.
func (m *Manager) fetch(ctx context.Context, rawURL, dir, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("download: build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("download: fetch: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("download: create dir: %w", err)
	}

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("download: create temp file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("download: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("download: close temp file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("download: rename: %w", err)
	}
	return nil
}

func (m *Manager) pathLock(path string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &m.locks[h.Sum32()%lockStripes]
}

const maxFolderLen = 50

// SanitizeFolder turns a tender identifier or title into a filesystem-safe
// folder name: unsafe runes become underscores, runs collapse, and the
// result is truncated to 50 characters. Deterministic for the same input.
func SanitizeFolder(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		safe := r == '-' || r == '.' ||
			unicode.IsLetter(r) || unicode.IsDigit(r)
		if safe {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_.")
	if len(out) > maxFolderLen {
		out = out[:maxFolderLen]
	}
	if out == "" {
		out = "tender"
	}
	return out
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.TrimSpace(name)
	if name == "" {
		name = "document"
	}
	return name
}
