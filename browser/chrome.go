package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"tender-scraper/config"
	"tender-scraper/utils"
)

// ChromeSession implements Session on top of a single headless Chrome tab.
type ChromeSession struct {
	cfg    *config.Config
	logger *utils.Logger

	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChromeSession starts the browser and opens the tab the session will use
// for its whole lifetime. The returned session must be closed by the caller.
func NewChromeSession(cfg *config.Config, logger *utils.Logger) (*ChromeSession, error) {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Launch eagerly so a missing binary fails here instead of mid-run.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	return &ChromeSession{
		cfg:         cfg,
		logger:      logger,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes chromedp actions on the session tab, honoring the caller's
// deadline and cancellation.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the given URL and gives the page a moment to render.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second), // settle time for client-side rendering
	)
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Find returns a handle to the first element matching selector.
func (s *ChromeSession) Find(ctx context.Context, selector string) (Element, error) {
	els, err := s.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

// FindAll returns handles to every element matching selector, in DOM order.
func (s *ChromeSession) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var count int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := s.run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}

	els := make([]Element, count)
	for i := 0; i < count; i++ {
		els[i] = &chromeElement{sess: s, selector: selector, index: i}
	}
	return els, nil
}

// ScrollToBottom scrolls the page to its current full height, which triggers
// lazy loading on infinite-scroll listings.
func (s *ChromeSession) ScrollToBottom(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// Screenshot captures the viewport to a PNG file.
func (s *ChromeSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("browser: screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("browser: write screenshot %q: %w", path, err)
	}
	return nil
}

// Close tears down the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// chromeElement addresses an element by selector and match index, so handles
// survive as long as the page keeps its structure.
type chromeElement struct {
	sess     *ChromeSession
	selector string
	index    int
}

type evalResult struct {
	Found bool   `json:"found"`
	Has   bool   `json:"has"`
	Value string `json:"value"`
}

func (e *chromeElement) eval(ctx context.Context, body string, out *evalResult) error {
	js := fmt.Sprintf(`(function() {
		var el = document.querySelectorAll(%q)[%d];
		if (!el) return {found: false, value: ''};
		%s
	})()`, e.selector, e.index, body)
	return e.sess.run(ctx, chromedp.Evaluate(js, out))
}

// Click scrolls the element into view and clicks it.
func (e *chromeElement) Click(ctx context.Context) error {
	var out evalResult
	body := `el.scrollIntoView({block: 'center'});
		el.click();
		return {found: true, value: ''};`
	if err := e.eval(ctx, body, &out); err != nil {
		return fmt.Errorf("browser: click %q: %w", e.selector, err)
	}
	if !out.Found {
		return ErrNotFound
	}
	return nil
}

// Text returns the element's rendered text.
func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var out evalResult
	body := `return {found: true, value: el.innerText || ''};`
	if err := e.eval(ctx, body, &out); err != nil {
		return "", fmt.Errorf("browser: text %q: %w", e.selector, err)
	}
	if !out.Found {
		return "", ErrNotFound
	}
	return out.Value, nil
}

// Attribute returns the named attribute and whether it is present.
func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var out evalResult
	body := fmt.Sprintf(`var v = el.getAttribute(%q);
		if (v === null) return {found: true, has: false, value: ''};
		return {found: true, has: true, value: v};`, name)
	if err := e.eval(ctx, body, &out); err != nil {
		return "", false, fmt.Errorf("browser: attribute %q on %q: %w", name, e.selector, err)
	}
	if !out.Found {
		return "", false, ErrNotFound
	}
	return out.Value, out.Has, nil
}

// HTML returns the element's outer HTML.
func (e *chromeElement) HTML(ctx context.Context) (string, error) {
	var out evalResult
	body := `return {found: true, value: el.outerHTML || ''};`
	if err := e.eval(ctx, body, &out); err != nil {
		return "", fmt.Errorf("browser: html %q: %w", e.selector, err)
	}
	if !out.Found {
		return "", ErrNotFound
	}
	return out.Value, nil
}

// WaitVisible polls until the element is rendered or the timeout elapses.
func (e *chromeElement) WaitVisible(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		var out evalResult
		body := `var visible = el.offsetParent !== null && el.getClientRects().length > 0;
			return {found: true, value: visible ? 'y' : ''};`
		if err := e.eval(ctx, body, &out); err != nil {
			return fmt.Errorf("browser: wait visible %q: %w", e.selector, err)
		}
		if out.Found && out.Value == "y" {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrVisibleTimeout
		}
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// findChromeBinary locates the Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
