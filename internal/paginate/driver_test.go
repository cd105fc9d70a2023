package paginate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/expo-works/scrape/pkg/models"
)

// fakeFetcher serves canned markup per URL.
type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	markup, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return markup, nil
}

func (f *fakeFetcher) Name() string { return "FakeFetcher" }

// fakeBrowser is a scriptable stand-in for a rendering session.
type fakeBrowser struct {
	navigateFn func(url, wait string) error
	markupFn   func() (string, error)
	locationFn func() (string, error)
	clickFn    func(sel string) (bool, error)
	waitFn     func(sel string) error
	countFn    func(sel string) (int, error)
	clickNthFn func(sel string, i int) error
	scrollFn   func() (int64, error)
}

func (b *fakeBrowser) Navigate(_ context.Context, url, wait string) error {
	if b.navigateFn != nil {
		return b.navigateFn(url, wait)
	}
	return nil
}

func (b *fakeBrowser) Markup(_ context.Context) (string, error) {
	if b.markupFn != nil {
		return b.markupFn()
	}
	return "", nil
}

func (b *fakeBrowser) Location(_ context.Context) (string, error) {
	if b.locationFn != nil {
		return b.locationFn()
	}
	return "", nil
}

func (b *fakeBrowser) ClickVisible(_ context.Context, sel string) (bool, error) {
	if b.clickFn != nil {
		return b.clickFn(sel)
	}
	return false, nil
}

func (b *fakeBrowser) WaitFor(_ context.Context, sel string) error {
	if b.waitFn != nil {
		return b.waitFn(sel)
	}
	return nil
}

func (b *fakeBrowser) Count(_ context.Context, sel string) (int, error) {
	if b.countFn != nil {
		return b.countFn(sel)
	}
	return 0, nil
}

func (b *fakeBrowser) ClickNth(_ context.Context, sel string, i int) error {
	if b.clickNthFn != nil {
		return b.clickNthFn(sel, i)
	}
	return nil
}

func (b *fakeBrowser) ScrollToBottom(_ context.Context) (int64, error) {
	if b.scrollFn != nil {
		return b.scrollFn()
	}
	return 0, nil
}

// listing builds markup with n item cards named from start.
func listing(start, n int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `<div class="card"><span class="name">Company %d</span></div>`, start+i)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

var testTarget = models.ExtractionTarget{
	ItemContainerSelector: ".card",
	FieldSelectors:        map[string]string{"name": ".name"},
}

func TestNoneFetchesExactlyOnePage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/list": listing(1, 4),
	}}
	plan := &models.ExtractionPlan{
		URL:        "https://example.com/list",
		Pagination: models.PaginationNone,
		// A stray URL list must not turn a single-page plan into a crawl.
		PaginationURLs: []string{"https://example.com/list?page=2"},
		Target:         testTarget,
	}

	pages, err := New(fetcher, nil, nil, Options{}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != plan.URL {
		t.Errorf("unexpected fetch calls: %v", fetcher.calls)
	}
	if len(pages[0].Items) != 4 {
		t.Errorf("expected 4 items, got %d", len(pages[0].Items))
	}
}

func TestPageNumbersHonorsCeiling(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	var urls []string
	for i := 1; i <= 5; i++ {
		u := fmt.Sprintf("https://example.com/list?page=%d", i)
		urls = append(urls, u)
		fetcher.pages[u] = listing(i*10, 2)
	}

	plan := &models.ExtractionPlan{
		URL:            "https://example.com/list",
		Pagination:     models.PaginationPageNumbers,
		PaginationURLs: urls,
		Target:         testTarget,
	}

	pages, err := New(fetcher, nil, nil, Options{MaxPages: 3}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected min(5, 3) = 3 pages, got %d", len(pages))
	}
	for i, page := range pages {
		if page.URL != urls[i] {
			t.Errorf("page %d URL = %s, want %s", i, page.URL, urls[i])
		}
	}
}

func TestPageNumbersSkipsFailedPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/p1": listing(1, 2),
		"https://example.com/p3": listing(3, 2),
	}}
	plan := &models.ExtractionPlan{
		URL:            "https://example.com/p1",
		Pagination:     models.PaginationPageNumbers,
		PaginationURLs: []string{"https://example.com/p1", "https://example.com/p2", "https://example.com/p3"},
		Target:         testTarget,
	}

	pages, err := New(fetcher, nil, nil, Options{}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages after skipping the dead one, got %d", len(pages))
	}
}

func TestNextButtonWalksThreePages(t *testing.T) {
	// Three views; the next control disappears after the second click.
	views := []string{listing(1, 3), listing(4, 3), listing(7, 2)}
	view := 0
	browser := &fakeBrowser{
		markupFn:   func() (string, error) { return views[view], nil },
		locationFn: func() (string, error) { return fmt.Sprintf("https://example.com/list#%d", view+1), nil },
		clickFn: func(sel string) (bool, error) {
			if sel != "a.next" {
				t.Fatalf("clicked unexpected selector %q", sel)
			}
			if view >= len(views)-1 {
				return false, nil
			}
			view++
			return true, nil
		},
	}

	plan := &models.ExtractionPlan{
		URL:                "https://example.com/list",
		Pagination:         models.PaginationNextButton,
		PaginationSelector: "a.next",
		Target:             testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	total := 0
	for _, p := range pages {
		total += len(p.Items)
	}
	if total != 8 {
		t.Errorf("expected 8 items across pages, got %d", total)
	}
}

func TestNextButtonWaitsForSelectorWhenConfigured(t *testing.T) {
	views := []string{listing(1, 2), listing(3, 2), listing(5, 2)}
	view := 0
	var waits []string
	browser := &fakeBrowser{
		markupFn: func() (string, error) { return views[view], nil },
		clickFn: func(string) (bool, error) {
			if view >= len(views)-1 {
				return false, nil
			}
			view++
			return true, nil
		},
		waitFn: func(sel string) error {
			waits = append(waits, sel)
			return nil
		},
	}

	plan := &models.ExtractionPlan{
		URL:                "https://example.com/list",
		Pagination:         models.PaginationNextButton,
		PaginationSelector: "a.next",
		WaitSelector:       ".card",
		Target:             testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	// One wait per successful click.
	if len(waits) != 2 {
		t.Fatalf("expected 2 waits, got %d: %v", len(waits), waits)
	}
	for _, sel := range waits {
		if sel != ".card" {
			t.Errorf("waited on %q, want .card", sel)
		}
	}
}

func TestNextButtonWaitFailureEndsWalk(t *testing.T) {
	browser := &fakeBrowser{
		markupFn: func() (string, error) { return listing(1, 2), nil },
		clickFn:  func(string) (bool, error) { return true, nil },
		waitFn:   func(string) error { return errors.New("selector never appeared") },
	}
	plan := &models.ExtractionPlan{
		URL:                "https://example.com/list",
		Pagination:         models.PaginationNextButton,
		PaginationSelector: "a.next",
		WaitSelector:       ".card",
		Target:             testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page before the failed wait, got %d", len(pages))
	}
}

func TestNextButtonStopsAtCeiling(t *testing.T) {
	browser := &fakeBrowser{
		markupFn: func() (string, error) { return listing(1, 1), nil },
		clickFn:  func(string) (bool, error) { return true, nil }, // never runs out
	}
	plan := &models.ExtractionPlan{
		URL:                "https://example.com/list",
		Pagination:         models.PaginationNextButton,
		PaginationSelector: "a.next",
		Target:             testTarget,
	}

	pages, err := New(nil, browser, nil, Options{MaxPages: 4, SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 4 {
		t.Fatalf("expected the ceiling of 4 pages, got %d", len(pages))
	}
}

func TestNextButtonClickErrorEndsWalkCleanly(t *testing.T) {
	clicks := 0
	browser := &fakeBrowser{
		markupFn: func() (string, error) { return listing(1, 2), nil },
		clickFn: func(string) (bool, error) {
			clicks++
			if clicks == 2 {
				return false, errors.New("node detached")
			}
			return true, nil
		},
	}
	plan := &models.ExtractionPlan{
		URL:                "https://example.com/list",
		Pagination:         models.PaginationNextButton,
		PaginationSelector: "a.next",
		Target:             testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages before the dead control, got %d", len(pages))
	}
}

func TestNextButtonRequiresBrowser(t *testing.T) {
	plan := &models.ExtractionPlan{
		URL:        "https://example.com/list",
		Pagination: models.PaginationNextButton,
		Target:     testTarget,
	}
	_, err := New(&fakeFetcher{}, nil, nil, Options{}).Run(context.Background(), plan)
	if !errors.Is(err, ErrBrowserRequired) {
		t.Fatalf("expected ErrBrowserRequired, got %v", err)
	}
}

func TestLoadMoreClicksUntilGoneThenExtractsOnce(t *testing.T) {
	loaded := 3
	browser := &fakeBrowser{
		markupFn: func() (string, error) { return listing(1, loaded), nil },
		clickFn: func(string) (bool, error) {
			if loaded >= 7 {
				return false, nil
			}
			loaded += 2
			return true, nil
		},
	}
	plan := &models.ExtractionPlan{
		URL:                "https://example.com/list",
		Pagination:         models.PaginationLoadMoreButton,
		PaginationSelector: "button.more",
		Target:             testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("load-more yields a single accumulated page, got %d", len(pages))
	}
	if len(pages[0].Items) != 7 {
		t.Errorf("expected 7 accumulated items, got %d", len(pages[0].Items))
	}
}

func TestInfiniteScrollStopsWhenHeightStable(t *testing.T) {
	heights := []int64{1000, 2000, 2000}
	scroll := 0
	loaded := 2
	browser := &fakeBrowser{
		markupFn: func() (string, error) { return listing(1, loaded), nil },
		scrollFn: func() (int64, error) {
			h := heights[scroll]
			if scroll < len(heights)-1 {
				scroll++
				loaded += 2
			}
			return h, nil
		},
	}
	plan := &models.ExtractionPlan{
		URL:        "https://example.com/list",
		Pagination: models.PaginationInfiniteScroll,
		Target:     testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("infinite scroll yields a single accumulated page, got %d", len(pages))
	}
	if scroll < 2 {
		t.Errorf("expected at least 3 scrolls before stability, got %d", scroll+1)
	}
}

func TestAlphabetTabsOnePagePerTab(t *testing.T) {
	current := -1
	browser := &fakeBrowser{
		countFn: func(sel string) (int, error) { return 3, nil },
		clickNthFn: func(sel string, i int) error {
			current = i
			return nil
		},
		markupFn: func() (string, error) { return listing(current*10, current+1), nil },
	}
	plan := &models.ExtractionPlan{
		URL:                 "https://example.com/list",
		Pagination:          models.PaginationAlphabetTabs,
		AlphabetTabSelector: ".tabs a",
		Target:              testTarget,
	}

	pages, err := New(nil, browser, nil, Options{SettleDelay: 1}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected one page per tab, got %d", len(pages))
	}
	if len(pages[2].Items) != 3 {
		t.Errorf("third tab should carry 3 items, got %d", len(pages[2].Items))
	}
}
