package crawler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePageData describes one address served by the fake browser.
type fakePageData struct {
	html        string
	navFailures int  // number of attempts that time out before succeeding
	navBroken   bool // every attempt fails with a non-timeout error
}

// fakeBrowser serves canned pages for crawler tests.
type fakeBrowser struct {
	site       map[string]*fakePageData
	pagesOpen  int
	pagesShut  int
	newPageErr error
}

func (b *fakeBrowser) NewPage() (Page, error) {
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.pagesOpen++
	return &fakePage{browser: b}, nil
}

func (b *fakeBrowser) Close() {}

type fakePage struct {
	browser *fakeBrowser
	current *fakePageData
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	data, ok := p.browser.site[url]
	if !ok {
		return assert.AnError
	}
	if data.navBroken {
		return assert.AnError
	}
	if data.navFailures > 0 {
		data.navFailures--
		return context.DeadlineExceeded
	}
	p.current = data
	return nil
}

func (p *fakePage) WaitNetworkIdle(context.Context) error { return nil }
func (p *fakePage) ScrollToBottom(context.Context) error  { return nil }

func (p *fakePage) WaitSelector(_ context.Context, selector string, _ time.Duration) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.current.html))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return context.DeadlineExceeded
	}
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.current.html, nil }

func (p *fakePage) AnchorHrefs(context.Context) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.current.html))
	if err != nil {
		return nil, err
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		hrefs = append(hrefs, href)
	})
	return hrefs, nil
}

func (p *fakePage) Close() { p.browser.pagesShut++ }

// newTestClient builds a Client over the fake site with sleeping disabled.
func newTestClient(b *fakeBrowser) *Client {
	c := New(b)
	c.navigator.sleep = func(time.Duration) {}
	return c
}

func TestScrapeExtractsMatchingElements(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: `
			<html><body>
				<p class="item">We have a job opening</p>
				<p class="item">Contact us</p>
			</body></html>`},
	}}

	records, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Prompt:   "HR chatbot",
		Selector: ".item",
		Pages:    1,
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, Record{Prompt: "HR chatbot", Page: 1, Content: "We have a job opening"}, records[0])
	assert.Equal(t, Record{Prompt: "HR chatbot", Page: 1, Content: "Contact us"}, records[1])
}

func TestScrapeNormalizesWhitespace(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: "<html><body><p>Hiring   now\n\tfor  interns</p></body></html>"},
	}}

	records, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Selector: "p",
		Pages:    1,
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "Hiring now for interns", records[0].Content)
}

func TestScrapeSelfLoopTerminates(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: `
			<html><body>
				<p>loop</p>
				<a href="https://seed.test/">me again</a>
			</body></html>`},
	}}

	done := make(chan struct{})
	var records []Record
	var err error
	go func() {
		defer close(done)
		records, err = newTestClient(b).Scrape(context.Background(), Request{
			URL:      "https://seed.test/",
			Selector: "p",
			Pages:    5,
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not terminate on a self-loop")
	}
	require.NoError(t, err)
	assert.Len(t, records, 1, "the self-address is visited exactly once")
}

func TestScrapeBudgetStopsDepthFirstDescent(t *testing.T) {
	seedHTML := `<html><body><p>seed</p>
		<a href="https://site.test/1">1</a>
		<a href="https://site.test/2">2</a>
		<a href="https://site.test/3">3</a>
		<a href="https://site.test/4">4</a>
		<a href="https://site.test/5">5</a>
	</body></html>`
	site := map[string]*fakePageData{
		"https://seed.test/": {html: seedHTML},
	}
	for _, leaf := range []string{"1", "2", "3", "4", "5"} {
		site["https://site.test/"+leaf] = &fakePageData{html: "<html><body><p>leaf " + leaf + "</p></body></html>"}
	}
	b := &fakeBrowser{site: site}

	records, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Selector: "p",
		Pages:    3,
	})
	require.NoError(t, err)

	// Seed plus the first two links; the rest are never navigated.
	require.Len(t, records, 3)
	assert.Equal(t, "seed", records[0].Content)
	assert.Equal(t, "leaf 1", records[1].Content)
	assert.Equal(t, "leaf 2", records[2].Content)
	assert.Equal(t, []int{1, 2, 3}, []int{records[0].Page, records[1].Page, records[2].Page})
}

func TestScrapeTimedOutBranchDoesNotAbortSiblings(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: `<html><body><p>seed</p>
			<a href="https://site.test/dead">dead</a>
			<a href="https://site.test/alive">alive</a>
		</body></html>`},
		"https://site.test/dead":  {navFailures: 100},
		"https://site.test/alive": {html: "<html><body><p>alive</p></body></html>"},
	}}

	records, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Selector: "p",
		Pages:    3,
	})
	require.NoError(t, err)

	// The dead page consumed a budget slot but contributed nothing; the
	// sibling was still crawled.
	require.Len(t, records, 2)
	assert.Equal(t, "seed", records[0].Content)
	assert.Equal(t, "alive", records[1].Content)
	assert.Equal(t, 3, records[1].Page)
}

func TestScrapeUnexpectedNavigationErrorNotRetried(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: `<html><body><p>seed</p>
			<a href="https://site.test/broken">broken</a>
		</body></html>`},
		"https://site.test/broken": {navBroken: true},
	}}

	records, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Selector: "p",
		Pages:    3,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestScrapeClosesLinkTabs(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: `<html><body><p>seed</p>
			<a href="https://site.test/a">a</a>
		</body></html>`},
		"https://site.test/a": {html: "<html><body><p>a</p></body></html>"},
	}}

	_, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Selector: "p",
		Pages:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, b.pagesOpen)
	assert.Equal(t, 2, b.pagesShut, "every tab is closed, including the seed's")
}

func TestScrapeSkipsNonAbsoluteLinks(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{
		"https://seed.test/": {html: `<html><body><p>seed</p>
			<a href="/relative">rel</a>
			<a href="mailto:hi@site.test">mail</a>
			<a href="https://site.test/abs">abs</a>
		</body></html>`},
		"https://site.test/abs": {html: "<html><body><p>abs</p></body></html>"},
	}}

	records, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "https://seed.test/",
		Selector: "p",
		Pages:    10,
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "abs", records[1].Content)
}

func TestScrapeRejectsRelativeSeed(t *testing.T) {
	b := &fakeBrowser{site: map[string]*fakePageData{}}

	_, err := newTestClient(b).Scrape(context.Background(), Request{
		URL:      "/not/absolute",
		Selector: "p",
	})
	assert.Error(t, err)
}

func TestScrapeDefaults(t *testing.T) {
	req := Request{URL: "https://seed.test/"}.withDefaults()
	assert.Equal(t, 3, req.Pages)
	assert.Equal(t, 30*time.Second, req.Timeout)
}
