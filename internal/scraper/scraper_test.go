package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/expo-works/scrape/internal/config"
	"github.com/expo-works/scrape/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPTimeout:           5 * time.Second,
		UserAgent:             "test-agent",
		MaxPagesPerCrawl:      10,
		MaxConcurrentRequests: 2,
		MaxSubLinksPerDetail:  5,
		MaxDetailFetches:      20,
		SettleDelay:           time.Millisecond,
		ProbeTimeout:          time.Second,
		RateLimitRPS:          100,
		RateLimitBurst:        100,
		CacheTTL:              time.Minute,
		CacheMaxSizeBytes:     1 << 20,
	}
}

func listingHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString("<html><body>")
		for i := 1; i <= 8; i++ {
			fmt.Fprintf(&sb,
				`<div class="card"><span class="name">Company %d</span><a class="more" href="/detail/%d">more</a></div>`,
				i, i)
		}
		sb.WriteString("</body></html>")
		fmt.Fprint(w, sb.String())
	})
	mux.HandleFunc("/detail/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>Detail %s</h1></body></html>`, r.URL.Path)
	})
	return mux
}

func TestExecuteStaticPlan(t *testing.T) {
	server := httptest.NewServer(listingHandler(t))
	defer server.Close()

	s := New(testConfig(), nil)
	defer s.Close()

	plan := &models.ExtractionPlan{
		URL:        server.URL + "/list",
		Pagination: models.PaginationNone,
		Target: models.ExtractionTarget{
			ItemContainerSelector: ".card",
			FieldSelectors:        map[string]string{"name": ".name"},
			DetailLinkSelector:    "a.more",
		},
	}

	result, err := s.Execute(context.Background(), plan, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(result.Pages))
	}
	if result.ItemCount() != 8 {
		t.Errorf("expected 8 items, got %d", result.ItemCount())
	}
	if len(result.Pages[0].DetailPages) != 8 {
		t.Errorf("expected 8 detail pages, got %d", len(result.Pages[0].DetailPages))
	}
	// Every item's link must be absolute after enrichment.
	for i, item := range result.Pages[0].Items {
		link, ok := item.Get(models.DetailLinkField)
		if !ok || !strings.HasPrefix(link, server.URL) {
			t.Errorf("item %d detail_link = %q", i, link)
		}
	}
}

func TestExecutePreviewTrims(t *testing.T) {
	server := httptest.NewServer(listingHandler(t))
	defer server.Close()

	s := New(testConfig(), nil)
	defer s.Close()

	plan := &models.ExtractionPlan{
		URL:        server.URL + "/list",
		Pagination: models.PaginationNone,
		Target: models.ExtractionTarget{
			ItemContainerSelector: ".card",
			FieldSelectors:        map[string]string{"name": ".name"},
			DetailLinkSelector:    "a.more",
		},
	}

	result, err := s.Execute(context.Background(), plan, RunOptions{Preview: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.ItemCount() != previewItemCap {
		t.Errorf("preview items = %d, want %d", result.ItemCount(), previewItemCap)
	}
	if got := len(result.Pages[0].DetailPages); got > config.DefaultPreviewSubLinks {
		t.Errorf("preview fetched %d detail pages, cap is %d", got, config.DefaultPreviewSubLinks)
	}
}

func TestExecuteRejectsInvalidPlan(t *testing.T) {
	s := New(testConfig(), nil)
	defer s.Close()

	plan := &models.ExtractionPlan{URL: "https://example.com"}
	if _, err := s.Execute(context.Background(), plan, RunOptions{}); err == nil {
		t.Fatal("expected validation error for missing container selector")
	}
}

func TestExecutePageNumbers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><div class="card"><span class="name">On %s</span></div></body></html>`, r.URL.Path)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := New(testConfig(), nil)
	defer s.Close()

	plan := &models.ExtractionPlan{
		URL:        server.URL + "/page/1",
		Pagination: models.PaginationPageNumbers,
		PaginationURLs: []string{
			server.URL + "/page/1",
			server.URL + "/page/2",
			server.URL + "/page/3",
		},
		Target: models.ExtractionTarget{
			ItemContainerSelector: ".card",
			FieldSelectors:        map[string]string{"name": ".name"},
		},
	}

	result, err := s.Execute(context.Background(), plan, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(result.Pages))
	}
	if result.ItemCount() != 3 {
		t.Errorf("expected 3 items, got %d", result.ItemCount())
	}
}
