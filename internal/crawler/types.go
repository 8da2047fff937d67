package crawler

import (
	"context"
	"fmt"
	"time"
)

// Default limits matching the CLI defaults.
const (
	DefaultPages   = 3
	DefaultTimeout = 30 * time.Second
)

// Request describes a single scrape invocation. It is read-only once built.
type Request struct {
	URL      string
	Prompt   string
	Selector string
	Pages    int
	Timeout  time.Duration
}

// withDefaults fills in the zero-valued limits.
func (r Request) withDefaults() Request {
	if r.Pages <= 0 {
		r.Pages = DefaultPages
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	return r
}

// Record is one extracted element. Page is the ordinal position of the page
// the content came from (size of the visited set at extraction time), not a
// stable page identity.
type Record struct {
	Prompt  string `json:"prompt"`
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Page is the capability surface the engine needs from a single rendered
// browser tab. Implementations must return an error satisfying
// errors.Is(err, context.DeadlineExceeded) when an operation's time bound
// expires, so callers can tell timeouts from other failures.
type Page interface {
	// Navigate loads the address and waits for the document to be ready,
	// bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitNetworkIdle blocks until no requests have been in flight for a
	// quiescence window, or ctx expires.
	WaitNetworkIdle(ctx context.Context) error
	// ScrollToBottom scrolls the document to its full height to trigger
	// lazy-loaded content.
	ScrollToBottom(ctx context.Context) error
	// WaitSelector blocks until at least one element matches the CSS
	// selector, bounded by timeout.
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	// HTML returns the serialized markup of the fully rendered document.
	HTML(ctx context.Context) (string, error)
	// AnchorHrefs returns the href values of all anchor elements carrying an
	// href attribute. A single unreadable anchor is skipped, not fatal.
	AnchorHrefs(ctx context.Context) ([]string, error)
	// Close releases the tab.
	Close()
}

// Browser opens rendered tabs. The engine opens a fresh tab per discovered
// link and closes it once that link's subtree is done.
type Browser interface {
	NewPage() (Page, error)
	Close()
}

// NavigationErrorKind tags the two ways navigation gives up on an address.
type NavigationErrorKind int

const (
	// NavigationTimeoutExhausted means every attempt timed out.
	NavigationTimeoutExhausted NavigationErrorKind = iota
	// NavigationUnexpected means a non-timeout failure aborted navigation
	// without retrying.
	NavigationUnexpected
)

// NavigationError reports that an address could not be settled.
type NavigationError struct {
	Kind NavigationErrorKind
	URL  string
	Err  error
}

func (e *NavigationError) Error() string {
	switch e.Kind {
	case NavigationTimeoutExhausted:
		return fmt.Sprintf("navigation to %s failed after retries", e.URL)
	default:
		return fmt.Sprintf("unexpected navigation error for %s: %v", e.URL, e.Err)
	}
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionErrorKind tags extraction failures.
type ExtractionErrorKind int

const (
	// ExtractionSelectorTimeout means no element matched the selector within
	// the wait bound.
	ExtractionSelectorTimeout ExtractionErrorKind = iota
	// ExtractionFailed covers every other failure while pulling content.
	ExtractionFailed
)

// ExtractionError reports that a settled page yielded no records.
type ExtractionError struct {
	Kind     ExtractionErrorKind
	Selector string
	Err      error
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case ExtractionSelectorTimeout:
		return fmt.Sprintf("timed out waiting for selector %q", e.Selector)
	default:
		return fmt.Sprintf("extraction failed for selector %q: %v", e.Selector, e.Err)
	}
}

func (e *ExtractionError) Unwrap() error { return e.Err }
