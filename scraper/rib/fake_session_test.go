package rib

import (
	"context"
	"time"

	"tender-scraper/browser"
	"tender-scraper/config"
	"tender-scraper/utils"
)

// fakeElement and fakeSession implement the browser interfaces for tests
// without a real browser.
type fakeElement struct {
	text    string
	attrs   map[string]string
	html    string
	visible bool
	onClick func()
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Text(ctx context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) HTML(ctx context.Context) (string, error) { return e.html, nil }

func (e *fakeElement) WaitVisible(ctx context.Context, timeout time.Duration) error {
	if e.visible {
		return nil
	}
	return browser.ErrVisibleTimeout
}

type fakeSession struct {
	singles   map[string]*fakeElement
	lists     map[string][]*fakeElement
	onScroll  func()
	navigated []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		singles: make(map[string]*fakeElement),
		lists:   make(map[string][]*fakeElement),
	}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) Find(ctx context.Context, selector string) (browser.Element, error) {
	if el, ok := s.singles[selector]; ok {
		return el, nil
	}
	if els := s.lists[selector]; len(els) > 0 {
		return els[0], nil
	}
	return nil, browser.ErrNotFound
}

func (s *fakeSession) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	els := s.lists[selector]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (s *fakeSession) ScrollToBottom(ctx context.Context) error {
	if s.onScroll != nil {
		s.onScroll()
	}
	return nil
}

func (s *fakeSession) Screenshot(ctx context.Context, path string) error { return nil }

func (s *fakeSession) Close() error { return nil }

// addTender registers a listing item with the given summary text.
func (s *fakeSession) addTender(id, summary string) *fakeElement {
	el := &fakeElement{
		text:  summary,
		attrs: map[string]string{"id": "tender-" + id},
	}
	s.lists[itemSelector] = append(s.lists[itemSelector], el)
	s.singles["#tender-"+id] = el
	return el
}

// addDetail registers the item's expanded detail region.
func (s *fakeSession) addDetail(id, text, html string, visible bool) *fakeElement {
	el := &fakeElement{text: text, html: html, visible: visible}
	s.singles["#collapseItem-"+id] = el
	return el
}

func testConfig() *config.Config {
	return &config.Config{
		PortalURL:        "https://portal.example/public/publications",
		OutputDir:        "",
		MaxRetries:       1,
		MaxScrollIters:   10,
		ExpandTimeoutSec: 1,
	}
}

func testScraper(sess *fakeSession, cfg *config.Config) *Scraper {
	if cfg == nil {
		cfg = testConfig()
	}
	return New(cfg, utils.NewLogger(), sess)
}
