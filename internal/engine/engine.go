// Package engine defines the fetching contracts shared by the static transport,
// the rendering driver, and everything built on top of them.
package engine

import "context"

// Fetcher retrieves the markup of a single URL.
type Fetcher interface {
	// Fetch returns the page markup. It fails with a *FetchError on network
	// error, timeout, or non-success status.
	Fetch(ctx context.Context, url string) (string, error)

	// Name returns the name of the fetcher implementation
	Name() string
}

// Browser is the minimal surface of a live rendering session that the
// pagination driver needs. The chromedp-backed session implements it; tests
// substitute fakes.
type Browser interface {
	// Navigate opens the URL and, when waitSelector is non-empty, waits for it
	// to appear before returning.
	Navigate(ctx context.Context, url, waitSelector string) error

	// Markup returns the current serialized document.
	Markup(ctx context.Context) (string, error)

	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)

	// ClickVisible clicks the first visible element matching selector.
	// It reports false, nil when the element is missing or not visible.
	ClickVisible(ctx context.Context, selector string) (bool, error)

	// WaitFor blocks until an element matching selector is visible, bounded
	// by the session's wait timeout.
	WaitFor(ctx context.Context, selector string) error

	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)

	// ClickNth clicks the i-th (0-based) element matching selector.
	ClickNth(ctx context.Context, selector string, i int) error

	// ScrollToBottom scrolls to the document bottom and returns the resulting
	// scroll height.
	ScrollToBottom(ctx context.Context) (int64, error)
}
