package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Default settle parameters.
const (
	DefaultMaxRetries = 3
	DefaultDwell      = 3 * time.Second
)

// Navigator drives a tab to an address and waits for the page to settle:
// document ready, network idle, lazy-loaded content triggered by a scroll to
// the bottom, then a fixed dwell. Timeouts are retried with exponential
// backoff; anything else aborts immediately.
type Navigator struct {
	MaxRetries int
	Dwell      time.Duration

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewNavigator returns a Navigator with the default retry and dwell settings.
func NewNavigator() *Navigator {
	return &Navigator{
		MaxRetries: DefaultMaxRetries,
		Dwell:      DefaultDwell,
		sleep:      time.Sleep,
	}
}

// Settle runs the settle protocol against page for url. Retries are local to
// this one address; they never touch the budget or the visited set.
func (n *Navigator) Settle(ctx context.Context, page Page, url string, timeout time.Duration) error {
	for attempt := 0; attempt < n.MaxRetries; attempt++ {
		err := n.attempt(ctx, page, url, timeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			log.Error("unexpected error during navigation", "url", url, "error", err)
			return &NavigationError{Kind: NavigationUnexpected, URL: url, Err: err}
		}
		log.Warn("timeout navigating, retrying",
			"url", url, "attempt", attempt+1, "max_retries", n.MaxRetries)
		n.sleep(time.Duration(1<<attempt) * time.Second)
	}

	log.Error("failed to load page after retries", "url", url, "attempts", n.MaxRetries)
	return &NavigationError{Kind: NavigationTimeoutExhausted, URL: url}
}

func (n *Navigator) attempt(ctx context.Context, page Page, url string, timeout time.Duration) error {
	if err := page.Navigate(ctx, url, timeout); err != nil {
		return err
	}
	if err := page.WaitNetworkIdle(ctx); err != nil {
		return err
	}
	if err := page.ScrollToBottom(ctx); err != nil {
		return err
	}
	// Let lazy-loaded content finish rendering.
	n.sleep(n.Dwell)
	return nil
}
