package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab wraps the session's Rod page. It implements the Page capability the
// action layer binds its browser actions to.
type Tab struct {
	page       *rod.Page
	navTimeout time.Duration
}

// OpenTab creates a stealth tab and navigates it to url.
func (m *Manager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	if m.browser == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	page, err := stealth.Page(m.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{page: page, navTimeout: m.cfg.NavTimeout}
	if err := t.Navigate(ctx, url); err != nil {
		page.Close()
		return nil, err
	}
	return t, nil
}

// Navigate loads url and waits for the page load, bounded by the
// configured navigation timeout.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.navTimeout)
	defer cancel()

	if err := t.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := t.page.Context(navCtx).WaitLoad(); err != nil {
		// Slow assets should not fail the navigation; the DOM is usable.
		return nil
	}
	return nil
}

// HTML returns the current DOM serialised as outer HTML.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// URL returns the current page URL, "" when it cannot be read.
func (t *Tab) URL() string {
	info, err := t.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// SetFileInput sets path on the file input matching selector.
func (t *Tab) SetFileInput(ctx context.Context, selector, path string) error {
	el, err := t.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: no element for %q: %w", selector, err)
	}
	if err := el.SetFiles([]string{path}); err != nil {
		return fmt.Errorf("browser: set files on %q: %w", selector, err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	return t.page.Close()
}

// URLSource reports the current page URL. *Tab is the production
// implementation.
type URLSource interface {
	URL() string
}

// LoginWatcher waits for the operator to finish signing in manually. It
// polls the tab URL until it reaches the authenticated landing prefix.
// The driver injects it as its login waiter.
type LoginWatcher struct {
	Tab URLSource

	// SuccessPrefix marks login completion, e.g. the feed URL.
	SuccessPrefix string

	// Interval between URL checks. Default: 2s.
	Interval time.Duration
}

// Wait blocks until the tab reaches the success prefix or ctx ends. A
// session that is already authenticated returns without waiting a tick.
func (w *LoginWatcher) Wait(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	if w.arrived() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.arrived() {
				return nil
			}
		}
	}
}

func (w *LoginWatcher) arrived() bool {
	return strings.HasPrefix(w.Tab.URL(), w.SuccessPrefix)
}
