package crawler

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
)

// discoverLinks enumerates outbound hyperlinks on a settled page, keeping
// only absolute http(s) addresses. Relative and non-HTTP links are dropped
// silently; deduplication is the Frontier's job at admission time.
func discoverLinks(ctx context.Context, page Page) []string {
	hrefs, err := page.AnchorHrefs(ctx)
	if err != nil {
		log.Error("error enumerating links", "error", err)
		return nil
	}

	var links []string
	for _, href := range hrefs {
		if href == "" || !strings.HasPrefix(href, "http") {
			continue
		}
		links = append(links, href)
	}
	return links
}
