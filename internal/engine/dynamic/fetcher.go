// internal/engine/dynamic/fetcher.go
package dynamic

import (
	"context"
)

// Fetcher adapts a Session to the engine.Fetcher contract: navigate, wait,
// return the rendered markup.
type Fetcher struct {
	sess         *Session
	waitSelector string
}

// NewFetcher wraps a session. waitSelector, when non-empty, is awaited on
// every page before the markup is read.
func NewFetcher(sess *Session, waitSelector string) *Fetcher {
	return &Fetcher{sess: sess, waitSelector: waitSelector}
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "DynamicFetcher"
}

// Fetch renders the URL and returns its markup.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.sess.Navigate(ctx, url, f.waitSelector); err != nil {
		return "", err
	}
	return f.sess.Markup(ctx)
}
