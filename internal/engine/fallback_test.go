package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedFetcher returns a fixed result and counts calls.
type scriptedFetcher struct {
	markup string
	err    error
	calls  int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.markup, f.err
}

func (f *scriptedFetcher) Name() string { return "scripted" }

func plausibleListing() string {
	return "<html><body>" + strings.Repeat(`<div class="card">Acme Corp, Hall 4, Booth A-12</div>`, 20) + "</body></html>"
}

func TestFallbackSkipsRenderForPlausibleMarkup(t *testing.T) {
	static := &scriptedFetcher{markup: plausibleListing()}
	render := &scriptedFetcher{markup: "<html>rendered</html>"}

	got, err := NewFallbackFetcher(static, render).Fetch(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != static.markup {
		t.Error("direct result not returned")
	}
	if render.calls != 0 {
		t.Errorf("render fetcher called %d times for a plausible direct result", render.calls)
	}
}

func TestFallbackRendersShellMarkup(t *testing.T) {
	static := &scriptedFetcher{markup: "<html><body></body></html>"}
	render := &scriptedFetcher{markup: plausibleListing()}

	got, err := NewFallbackFetcher(static, render).Fetch(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != render.markup {
		t.Error("shell markup must be retried through the rendering driver")
	}
	if render.calls != 1 {
		t.Errorf("render calls = %d, want 1", render.calls)
	}
}

func TestFallbackRendersAfterDirectError(t *testing.T) {
	static := &scriptedFetcher{err: errors.New("connection refused")}
	render := &scriptedFetcher{markup: plausibleListing()}

	got, err := NewFallbackFetcher(static, render).Fetch(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != render.markup {
		t.Error("rendered result not returned after direct failure")
	}
}

func TestFallbackKeepsShellWhenRenderFails(t *testing.T) {
	shell := "<html><body></body></html>"
	static := &scriptedFetcher{markup: shell}
	render := &scriptedFetcher{err: errors.New("browser gone")}

	got, err := NewFallbackFetcher(static, render).Fetch(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != shell {
		t.Errorf("got %q, want the direct shell back", got)
	}
}

func TestFallbackBothTransportsFail(t *testing.T) {
	static := &scriptedFetcher{err: errors.New("connection refused")}
	renderErr := errors.New("browser gone")
	render := &scriptedFetcher{err: renderErr}

	if _, err := NewFallbackFetcher(static, render).Fetch(context.Background(), "https://example.com"); !errors.Is(err, renderErr) {
		t.Fatalf("err = %v, want the render error", err)
	}
}

func TestFallbackNilRenderPassesThrough(t *testing.T) {
	shell := "<html><body></body></html>"
	static := &scriptedFetcher{markup: shell}

	got, err := NewFallbackFetcher(static, nil).Fetch(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != shell {
		t.Error("without a render transport the direct result stands")
	}
}
