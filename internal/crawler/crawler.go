package crawler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
)

// Client runs prompt-guided scrapes against a Browser. One Client can serve
// many Scrape calls; all crawl state lives in the call.
type Client struct {
	browser   Browser
	navigator *Navigator
	extractor *Extractor

	// OnVisit, when set, is called with each admitted address and its
	// ordinal position. The CLI hangs its spinner off this.
	OnVisit func(url string, index int)
}

// New returns a Client crawling through browser with default navigation and
// extraction settings.
func New(browser Browser) *Client {
	return &Client{
		browser:   browser,
		navigator: NewNavigator(),
		extractor: NewExtractor(),
	}
}

// Scrape crawls depth-first from the request's seed address and returns every
// extracted record, in extraction order. Branch failures only truncate their
// own subtree; the only fatal conditions are a bad seed address and failing
// to open the initial tab. Partial results are returned even when branches
// failed along the way.
func (c *Client) Scrape(ctx context.Context, req Request) ([]Record, error) {
	req = req.withDefaults()

	seed, err := url.Parse(req.URL)
	if err != nil || !seed.IsAbs() || seed.Host == "" {
		return nil, fmt.Errorf("seed address %q is not an absolute URL", req.URL)
	}

	page, err := c.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("opening initial tab: %w", err)
	}
	defer page.Close()

	frontier := NewFrontier(req.Pages)
	var records []Record
	c.crawl(ctx, page, req.URL, req, frontier, &records)

	log.Info("crawl finished", "visited", frontier.VisitedCount(), "records", len(records))
	return records, nil
}

// crawl is the per-address state machine: admit, settle, extract, discover,
// recurse. Every early return truncates only this address's subtree.
func (c *Client) crawl(ctx context.Context, page Page, addr string, req Request, frontier *Frontier, records *[]Record) {
	if ctx.Err() != nil {
		return
	}
	if !frontier.Admit(addr) {
		return
	}
	index := frontier.VisitedCount()
	if c.OnVisit != nil {
		c.OnVisit(addr, index)
	}

	if err := c.navigator.Settle(ctx, page, addr, req.Timeout); err != nil {
		log.Error("page contributed no records", "url", addr, "page", index, "error", err)
		return
	}

	extracted, err := c.extractor.Extract(ctx, page, req.Selector, req.Prompt, index)
	if err != nil {
		log.Error("extraction failed", "url", addr, "page", index, "error", err)
		return
	}
	*records = append(*records, extracted...)

	for _, link := range discoverLinks(ctx, page) {
		if !frontier.WouldAdmit(link) {
			continue
		}
		next, err := c.browser.NewPage()
		if err != nil {
			log.Error("could not open tab for link", "url", link, "error", err)
			continue
		}
		c.crawl(ctx, next, link, req, frontier, records)
		next.Close()
	}
}
