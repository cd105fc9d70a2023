// Package enrich deepens raw listing pages: it pulls per-item detail pages,
// follows planned sub-links off them, and calls per-item detail APIs.
package enrich

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/fetchpool"
	"github.com/expo-works/scrape/internal/retry"
	urlutil "github.com/expo-works/scrape/internal/utils/url"
	"github.com/expo-works/scrape/pkg/models"
)

// JSONFetcher issues the per-item API requests.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, extra map[string]string) (string, error)
}

// Options bounds an enrichment pass.
type Options struct {
	// MaxDetailFetches caps detail pages fetched across the whole run.
	MaxDetailFetches int

	// MaxSubLinksPerDetail caps sub-links followed from one detail page.
	MaxSubLinksPerDetail int

	UserAgent string
}

func (o *Options) fillDefaults() {
	if o.MaxDetailFetches <= 0 {
		o.MaxDetailFetches = 200
	}
	if o.MaxSubLinksPerDetail <= 0 {
		o.MaxSubLinksPerDetail = 10
	}
}

// Enricher runs the detail, sub-link, and API enrichment passes. All fetching
// goes through the pool, which owns concurrency and pacing.
type Enricher struct {
	pool *fetchpool.Pool
	json JSONFetcher
	opts Options
}

// New creates an enricher. json may be nil when the plan has no detail API.
func New(pool *fetchpool.Pool, json JSONFetcher, opts Options) *Enricher {
	opts.fillDefaults()
	return &Enricher{pool: pool, json: json, opts: opts}
}

// DetailPages resolves every item's detail link, fetches the pages, and
// attaches the markup to the raw page the item came from. Item detail_link
// values are rewritten to their resolved absolute form.
func (e *Enricher) DetailPages(ctx context.Context, plan *models.ExtractionPlan, pages []*models.RawPage) {
	budget := e.opts.MaxDetailFetches

	for _, page := range pages {
		if budget <= 0 {
			log.Warn().Int("cap", e.opts.MaxDetailFetches).Msg("Detail fetch budget exhausted")
			return
		}

		urls := e.resolveDetailLinks(page)
		if len(urls) == 0 {
			continue
		}
		if len(urls) > budget {
			urls = urls[:budget]
		}
		budget -= len(urls)

		log.Info().Str("page", page.URL).Int("detail_pages", len(urls)).Msg("Fetching detail pages")

		for url, markup := range e.pool.FetchAll(ctx, urls) {
			page.DetailPages[url] = markup
		}
	}
}

// resolveDetailLinks collects each item's detail link resolved against the
// page it was extracted from, deduplicated in item order.
func (e *Enricher) resolveDetailLinks(page *models.RawPage) []string {
	seen := make(map[string]bool)
	var urls []string

	for _, item := range page.Items {
		href, ok := item.Get(models.DetailLinkField)
		if !ok || urlutil.Skippable(href) {
			continue
		}

		resolved := urlutil.ResolveURL(page.URL, href)
		if err := urlutil.ValidateURL(resolved); err != nil {
			log.Debug().Str("href", href).Msg("Skipping unresolvable detail link")
			continue
		}
		item[models.DetailLinkField] = &resolved

		if !seen[resolved] {
			seen[resolved] = true
			urls = append(urls, resolved)
		}
	}
	return urls
}

// SubLinks follows the plan's labeled sub-links off every fetched detail page.
// Only same-origin links are followed; pages arrive under their label.
func (e *Enricher) SubLinks(ctx context.Context, plan *models.ExtractionPlan, pages []*models.RawPage) {
	if plan.DetailPage == nil || len(plan.DetailPage.SubLinks) == 0 {
		return
	}

	for _, page := range pages {
		for detailURL, markup := range page.DetailPages {
			targets := e.resolveSubLinks(detailURL, markup, plan.DetailPage.SubLinks)
			if len(targets) == 0 {
				continue
			}

			urls := make([]string, 0, len(targets))
			for u := range targets {
				urls = append(urls, u)
			}

			fetched := e.pool.FetchAll(ctx, urls)
			for u, label := range targets {
				if subMarkup, ok := fetched[u]; ok {
					page.AttachSubPage(detailURL, label, subMarkup)
				}
			}
		}
	}
}

// resolveSubLinks maps sub-link URL to label for one detail page, capped and
// restricted to the detail page's origin.
func (e *Enricher) resolveSubLinks(detailURL, markup string, subLinks []models.DetailSubLink) map[string]string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		log.Warn().Err(err).Str("url", detailURL).Msg("Failed to parse detail page")
		return nil
	}

	targets := make(map[string]string)
	for _, sub := range subLinks {
		if len(targets) >= e.opts.MaxSubLinksPerDetail {
			break
		}

		el := doc.Find(sub.Selector).First()
		if el.Length() == 0 {
			continue
		}

		attr := sub.Attribute
		if attr == "" {
			attr = "href"
		}
		href, ok := el.Attr(attr)
		if !ok || urlutil.Skippable(href) {
			continue
		}

		resolved := urlutil.ResolveURL(detailURL, href)
		if urlutil.ValidateURL(resolved) != nil {
			continue
		}
		if !urlutil.SameOrigin(detailURL, resolved) {
			log.Debug().Str("url", resolved).Str("label", sub.Label).Msg("Skipping off-origin sub-link")
			continue
		}
		if _, dup := targets[resolved]; dup {
			continue
		}
		targets[resolved] = sub.Label
	}
	return targets
}

// retryConfig is shared by the API enrichment calls.
var retryConfig = retry.DefaultConfig()
