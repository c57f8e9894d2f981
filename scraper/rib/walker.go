package rib

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	itemSelector   = "[id^='tender-']"
	buttonSelector = "button"
)

var tenderIDPattern = regexp.MustCompile(`^tender-(\d+)$`)

// DiscoverTenders walks the listing until the set of visible tender ids
// stops growing, the configured item cap is reached, or MaxScrollIters load
// attempts have been made. Ids are returned deduplicated in discovery order.
//
// The seen-set lives on the Scraper, so a second call within the same
// session returns a superset of the first call's ids.
func (s *Scraper) DiscoverTenders(ctx context.Context) ([]string, error) {
	s.logger.Info("[rib] Discovering tenders (cap: %d, max load iterations: %d)",
		s.cfg.MaxTenders, s.cfg.MaxScrollIters)

	lastCount := -1
	for iter := 0; iter < s.cfg.MaxScrollIters; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := s.collectVisibleIDs(ctx); err != nil {
			return nil, fmt.Errorf("rib: collect listing ids: %w", err)
		}
		s.logger.Debug("[rib] Load iteration %d — %d unique ids", iter+1, s.seen.Size())

		if s.cfg.MaxTenders > 0 && s.seen.Size() >= s.cfg.MaxTenders {
			break
		}
		if s.seen.Size() == lastCount {
			// Fixed point: a load attempt produced nothing new.
			break
		}
		lastCount = s.seen.Size()

		s.loadMore(ctx)
	}

	ids := s.seen.Values()
	if s.cfg.MaxTenders > 0 && len(ids) > s.cfg.MaxTenders {
		ids = ids[:s.cfg.MaxTenders]
	}

	s.logger.Info("[rib] Discovery done — %d tender(s)", len(ids))
	return ids, nil
}

// collectVisibleIDs records every tender id currently present in the DOM.
// The expanded detail regions use "collapseItem-<n>" ids and never match
// the tender id pattern.
func (s *Scraper) collectVisibleIDs(ctx context.Context) error {
	els, err := s.session.FindAll(ctx, itemSelector)
	if err != nil {
		return err
	}

	for _, el := range els {
		id, ok, err := el.Attribute(ctx, "id")
		if err != nil || !ok {
			continue
		}
		m := tenderIDPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		if s.seen.Add(m[1]) {
			s.logger.Debug("[rib] Found tender %s", m[1])
		}
	}
	return nil
}

// loadMore scrolls to the bottom and clicks a "load more" button when one is
// present. Both actions are best effort: a listing without lazy loading
// simply reaches its fixed point on the next pass.
func (s *Scraper) loadMore(ctx context.Context) {
	if err := s.session.ScrollToBottom(ctx); err != nil {
		s.logger.Debug("[rib] Scroll failed: %v", err)
	}

	buttons, err := s.session.FindAll(ctx, buttonSelector)
	if err != nil {
		return
	}
	for _, btn := range buttons {
		text, err := btn.Text(ctx)
		if err != nil {
			continue
		}
		lower := strings.ToLower(text)
		if strings.Contains(lower, "mehr") || strings.Contains(lower, "load") {
			if err := btn.Click(ctx); err == nil {
				s.logger.Debug("[rib] Clicked load-more button %q", strings.TrimSpace(text))
				time.Sleep(2 * time.Second)
			}
			return
		}
	}
}
