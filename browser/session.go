package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a selector resolves to no element.
var ErrNotFound = errors.New("browser: element not found")

// ErrVisibleTimeout is returned when an element did not become visible
// within the given timeout.
var ErrVisibleTimeout = errors.New("browser: element not visible before timeout")

// Session is the automation capability the scraper runs against. A session
// owns exactly one page context: callers must serialize navigation and
// element interaction on it. Any DOM-capable driver can implement it; the
// production implementation is backed by chromedp.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	ScrollToBottom(ctx context.Context) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Element is a handle to a single element on the session's current page.
// Handles are positional: they go stale when the page re-renders, in which
// case operations report ErrNotFound.
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	HTML(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, timeout time.Duration) error
}
