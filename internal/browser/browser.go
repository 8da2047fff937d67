// Package browser implements the crawler's render-target interfaces on top
// of headless Chrome via chromedp. One Browser owns the Chrome process; each
// Page is a tab with its own CDP session and network-activity tracking.
package browser

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"glean/internal/crawler"
)

const (
	// idleQuiet is the window with no in-flight requests after which the
	// page counts as network-idle.
	idleQuiet = 500 * time.Millisecond
	// idleTimeout bounds the network-idle wait; pages with long-polling
	// connections would otherwise never settle.
	idleTimeout = 30 * time.Second
	// opTimeout bounds the cheap per-page operations (scroll, serialize,
	// anchor enumeration).
	opTimeout = 10 * time.Second
)

// Browser wraps a shared headless Chrome instance.
type Browser struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New launches headless Chrome. The returned Browser must be closed.
func New() (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process now so a missing Chrome binary fails fast
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a fresh tab.
func (b *Browser) NewPage() (crawler.Page, error) {
	ctx, cancel := chromedp.NewContext(b.browserCtx)

	p := &Page{ctx: ctx, cancel: cancel}
	p.touch()

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			p.inflight.Add(1)
			p.touch()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			// Finished events for cached responses can outnumber the
			// requests we saw; never go negative.
			if p.inflight.Add(-1) < 0 {
				p.inflight.Store(0)
			}
			p.touch()
		}
	})

	return p, nil
}

// Close shuts down the browser process.
func (b *Browser) Close() {
	b.browserCancel()
	b.allocCancel()
}

// Page is a single Chrome tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc

	inflight     atomic.Int64
	lastActivity atomic.Int64 // unix nanos of the most recent network event
}

func (p *Page) touch() {
	p.lastActivity.Store(time.Now().UnixNano())
}

func (p *Page) quietFor() time.Duration {
	return time.Since(time.Unix(0, p.lastActivity.Load()))
}

// run executes chromedp actions on this tab, bounded by timeout and by the
// caller's ctx. A timeout surfaces as context.DeadlineExceeded.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

// Navigate loads url and waits for the document body to be ready.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return p.run(ctx, timeout,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitNetworkIdle blocks until no requests have been in flight for the
// quiescence window.
func (p *Page) WaitNetworkIdle(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(p.ctx, idleTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-tctx.Done():
			return tctx.Err()
		case <-ticker.C:
			if p.inflight.Load() == 0 && p.quietFor() >= idleQuiet {
				return nil
			}
		}
	}
}

// ScrollToBottom scrolls the document to its full height.
func (p *Page) ScrollToBottom(ctx context.Context) error {
	return p.run(ctx, opTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	)
}

// WaitSelector blocks until at least one element matches the CSS selector.
func (p *Page) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
	)
}

// HTML returns the serialized markup of the rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, opTimeout,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

// AnchorHrefs returns the href attribute of every anchor that has one. An
// anchor whose attribute cannot be read is logged and skipped.
func (p *Page) AnchorHrefs(ctx context.Context) ([]string, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, opTimeout,
		chromedp.Nodes("a[href]", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, err
	}

	hrefs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		href := node.AttributeValue("href")
		if href == "" {
			log.Debug("skipping anchor with unreadable href", "node", node.NodeID)
			continue
		}
		hrefs = append(hrefs, href)
	}
	return hrefs, nil
}

// Close releases the tab.
func (p *Page) Close() {
	p.cancel()
}
