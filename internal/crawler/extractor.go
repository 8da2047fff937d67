package crawler

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
)

// DefaultSelectorTimeout bounds the wait for a first matching element,
// independent of the navigation timeout.
const DefaultSelectorTimeout = 30 * time.Second

var whitespacePattern = regexp.MustCompile(`\s+`)

// Extractor pulls the text of every element matching a CSS selector from a
// settled page and emits one Record per element.
type Extractor struct {
	SelectorTimeout time.Duration
}

// NewExtractor returns an Extractor with the default selector wait.
func NewExtractor() *Extractor {
	return &Extractor{SelectorTimeout: DefaultSelectorTimeout}
}

// Extract waits for at least one element matching selector, retrieves the
// rendered markup and returns a Record for every match, in document order.
// Elements whose text normalizes to the empty string are still emitted;
// dropping them is the relevance filter's call, not ours.
func (e *Extractor) Extract(ctx context.Context, page Page, selector, prompt string, pageIndex int) ([]Record, error) {
	if err := page.WaitSelector(ctx, selector, e.SelectorTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ExtractionError{Kind: ExtractionSelectorTimeout, Selector: selector, Err: err}
		}
		return nil, &ExtractionError{Kind: ExtractionFailed, Selector: selector, Err: err}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, &ExtractionError{Kind: ExtractionFailed, Selector: selector, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{Kind: ExtractionFailed, Selector: selector, Err: err}
	}

	var records []Record
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		content := normalizeWhitespace(s.Text())
		log.Debug("extracted element text", "page", pageIndex, "content", content)
		records = append(records, Record{
			Prompt:  prompt,
			Page:    pageIndex,
			Content: content,
		})
	})

	return records, nil
}

// normalizeWhitespace trims the text and collapses internal whitespace runs
// to single spaces.
func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
