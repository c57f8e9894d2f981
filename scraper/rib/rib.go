// Package rib scrapes tender publications from the public RIB meinauftrag
// listing. The page is a client-rendered list of collapsible tender items:
// each item carries an id of the form "tender-<n>" and expands into a
// "collapseItem-<n>" region holding the detail text and document links.
package rib

import (
	"context"
	"net/url"
	"strings"
	"time"

	"tender-scraper/browser"
	"tender-scraper/config"
	"tender-scraper/models"
	"tender-scraper/utils"
)

const portalName = "RIB meinauftrag"

// Scraper discovers tender items on the listing and extracts one raw record
// per item. It holds a single browser session, so callers must not run
// discovery or extraction concurrently.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	session browser.Session
	retry   *utils.RetryConfig

	seen   *utils.IDSet
	filter func(models.DocumentRef) bool
}

// New creates a Scraper bound to the given browser session. The document
// filter is built from the configured keywords; an empty keyword list keeps
// every document link.
func New(cfg *config.Config, logger *utils.Logger, session browser.Session) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		session: session,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		seen:   utils.NewIDSet(),
		filter: KeywordFilter(cfg.DocKeywords),
	}
}

// ListingURL returns the configured portal listing URL.
func (s *Scraper) ListingURL() string {
	return s.cfg.PortalURL
}

// PortalName identifies the portal in persisted records.
func (s *Scraper) PortalName() string {
	return portalName
}

// OpenListing navigates to the listing page. Failure here means the portal
// is unreachable and the whole run should abort.
func (s *Scraper) OpenListing(ctx context.Context) error {
	return s.retry.Do(ctx, "open-listing", func() error {
		return s.session.Navigate(ctx, s.cfg.PortalURL)
	})
}

// Screenshot saves a best-effort screenshot of the current page.
func (s *Scraper) Screenshot(ctx context.Context, path string) {
	if err := s.session.Screenshot(ctx, path); err != nil {
		s.logger.Debug("[rib] Screenshot %s failed: %v", path, err)
	}
}

// baseURL is used to absolutize relative document links.
func (s *Scraper) baseURL() *url.URL {
	u, err := url.Parse(s.cfg.PortalURL)
	if err != nil {
		return nil
	}
	return u
}

// firstLine returns the first non-empty line of a text block.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
