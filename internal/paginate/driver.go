// Package paginate walks a listing through its pagination mechanism, producing
// one raw page of extracted items per revealed view.
package paginate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/engine"
	"github.com/expo-works/scrape/internal/extract"
	"github.com/expo-works/scrape/pkg/models"
)

// ErrBrowserRequired is returned when a plan's pagination strategy needs a
// live rendering session and none was supplied.
var ErrBrowserRequired = errors.New("pagination strategy requires a rendering session")

// APIFetcher issues JSON requests for API-driven pagination.
type APIFetcher interface {
	FetchJSON(ctx context.Context, url string, extra map[string]string) (string, error)
}

// Options bounds a pagination walk.
type Options struct {
	// MaxPages caps pages visited, clicks issued, and scrolls performed.
	MaxPages int

	// SettleDelay is how long to wait after a click or scroll for new content.
	SettleDelay time.Duration

	// RequestDelay spaces successive URL fetches.
	RequestDelay time.Duration
}

func (o *Options) fillDefaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 500
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 1500 * time.Millisecond
	}
}

// Driver executes one plan's pagination strategy. URL-list strategies go
// through the fetcher; interactive strategies need the browser.
type Driver struct {
	fetcher engine.Fetcher
	browser engine.Browser // nil when no rendering session is open
	api     APIFetcher
	opts    Options
}

// New creates a driver. browser and api may be nil when the plan's strategy
// does not need them.
func New(fetcher engine.Fetcher, browser engine.Browser, api APIFetcher, opts Options) *Driver {
	opts.fillDefaults()
	return &Driver{fetcher: fetcher, browser: browser, api: api, opts: opts}
}

// Run walks the plan's pagination and returns the raw pages in visit order.
func (d *Driver) Run(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	strategy := plan.Pagination
	if strategy == models.PaginationAPIEndpoint && plan.APIEndpoint == "" {
		log.Warn().Msg("API pagination planned without an endpoint, treating as single page")
		strategy = models.PaginationNone
	}

	log.Info().
		Str("strategy", string(strategy)).
		Str("url", plan.URL).
		Msg("Starting pagination")

	switch strategy {
	case models.PaginationNone, "":
		return d.singlePage(ctx, plan)
	case models.PaginationPageNumbers:
		return d.pageNumbers(ctx, plan)
	case models.PaginationNextButton:
		return d.nextButton(ctx, plan)
	case models.PaginationLoadMoreButton:
		return d.loadMore(ctx, plan)
	case models.PaginationInfiniteScroll:
		return d.infiniteScroll(ctx, plan)
	case models.PaginationAlphabetTabs:
		return d.alphabetTabs(ctx, plan)
	case models.PaginationAPIEndpoint:
		return d.apiPages(ctx, plan)
	default:
		log.Warn().Str("strategy", string(strategy)).Msg("Unknown pagination strategy, treating as single page")
		return d.singlePage(ctx, plan)
	}
}

// singlePage fetches exactly the plan URL, ignoring any pagination URL list.
func (d *Driver) singlePage(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	page, err := d.fetchAndExtract(ctx, plan, plan.URL)
	if err != nil {
		return nil, err
	}
	return []*models.RawPage{page}, nil
}

// pageNumbers visits the precomputed URL list up to the page ceiling. A page
// that fails to fetch is skipped, not fatal.
func (d *Driver) pageNumbers(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	urls := plan.PaginationURLs
	if len(urls) == 0 {
		return d.singlePage(ctx, plan)
	}
	if len(urls) > d.opts.MaxPages {
		log.Warn().
			Int("planned", len(urls)).
			Int("max_pages", d.opts.MaxPages).
			Msg("Truncating pagination URL list at page ceiling")
		urls = urls[:d.opts.MaxPages]
	}

	pages := make([]*models.RawPage, 0, len(urls))
	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if i > 0 {
			d.pause(ctx, d.opts.RequestDelay)
		}

		page, err := d.fetchAndExtract(ctx, plan, pageURL)
		if err != nil {
			log.Warn().Err(err).Str("url", pageURL).Msg("Skipping unfetchable page")
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// nextButton renders the listing and repeatedly clicks the next control,
// extracting each revealed page. A missing or unclickable control ends the
// walk cleanly.
func (d *Driver) nextButton(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	if d.browser == nil {
		return nil, ErrBrowserRequired
	}

	if err := d.browser.Navigate(ctx, plan.URL, plan.WaitSelector); err != nil {
		return nil, err
	}

	var pages []*models.RawPage
	for len(pages) < d.opts.MaxPages {
		page, err := d.extractCurrent(ctx, plan)
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)

		if len(pages) == d.opts.MaxPages {
			break
		}

		clicked, err := d.browser.ClickVisible(ctx, plan.PaginationSelector)
		if err != nil {
			// A dead control mid-walk ends pagination with what we have.
			log.Warn().Err(err).Int("pages", len(pages)).Msg("Next control failed, ending pagination")
			break
		}
		if !clicked {
			log.Debug().Int("pages", len(pages)).Msg("Next control gone, pagination complete")
			break
		}

		// The plan's wait selector marks the new page as ready; without one,
		// a fixed settle delay has to do.
		if plan.WaitSelector != "" {
			if err := d.browser.WaitFor(ctx, plan.WaitSelector); err != nil {
				log.Warn().Err(err).Int("pages", len(pages)).Msg("Wait selector never appeared, ending pagination")
				break
			}
		} else {
			d.pause(ctx, d.opts.SettleDelay)
		}
	}
	return pages, nil
}

// loadMore clicks the load-more control until it disappears, then extracts the
// fully revealed listing once.
func (d *Driver) loadMore(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	if d.browser == nil {
		return nil, ErrBrowserRequired
	}

	if err := d.browser.Navigate(ctx, plan.URL, plan.WaitSelector); err != nil {
		return nil, err
	}

	for clicks := 0; clicks < d.opts.MaxPages; clicks++ {
		clicked, err := d.browser.ClickVisible(ctx, plan.PaginationSelector)
		if err != nil {
			log.Warn().Err(err).Int("clicks", clicks).Msg("Load-more control failed, extracting what loaded")
			break
		}
		if !clicked {
			log.Debug().Int("clicks", clicks).Msg("Load-more control gone")
			break
		}
		d.pause(ctx, d.opts.SettleDelay)
	}

	page, err := d.extractCurrent(ctx, plan)
	if err != nil {
		return nil, err
	}
	return []*models.RawPage{page}, nil
}

// infiniteScroll scrolls until the document height stops growing, then
// extracts the accumulated listing once.
func (d *Driver) infiniteScroll(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	if d.browser == nil {
		return nil, ErrBrowserRequired
	}

	if err := d.browser.Navigate(ctx, plan.URL, plan.WaitSelector); err != nil {
		return nil, err
	}

	var lastHeight int64 = -1
	for scrolls := 0; scrolls < d.opts.MaxPages; scrolls++ {
		height, err := d.browser.ScrollToBottom(ctx)
		if err != nil {
			log.Warn().Err(err).Int("scrolls", scrolls).Msg("Scroll failed, extracting what loaded")
			break
		}
		d.pause(ctx, d.opts.SettleDelay)
		if height == lastHeight {
			log.Debug().Int("scrolls", scrolls).Int64("height", height).Msg("Page height stable, scroll complete")
			break
		}
		lastHeight = height
	}

	page, err := d.extractCurrent(ctx, plan)
	if err != nil {
		return nil, err
	}
	return []*models.RawPage{page}, nil
}

// alphabetTabs clicks each letter tab in turn and extracts the listing it
// reveals, one raw page per tab.
func (d *Driver) alphabetTabs(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	if d.browser == nil {
		return nil, ErrBrowserRequired
	}

	if err := d.browser.Navigate(ctx, plan.URL, plan.WaitSelector); err != nil {
		return nil, err
	}

	selector := plan.AlphabetTabSelector
	if selector == "" {
		selector = plan.PaginationSelector
	}

	total, err := d.browser.Count(ctx, selector)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		log.Warn().Str("selector", selector).Msg("No alphabet tabs found, extracting current view")
		page, err := d.extractCurrent(ctx, plan)
		if err != nil {
			return nil, err
		}
		return []*models.RawPage{page}, nil
	}
	if total > d.opts.MaxPages {
		total = d.opts.MaxPages
	}

	pages := make([]*models.RawPage, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if err := d.browser.ClickNth(ctx, selector, i); err != nil {
			log.Warn().Err(err).Int("tab", i).Msg("Skipping unclickable tab")
			continue
		}
		d.pause(ctx, d.opts.SettleDelay)

		page, err := d.extractCurrent(ctx, plan)
		if err != nil {
			log.Warn().Err(err).Int("tab", i).Msg("Skipping unextractable tab")
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// fetchAndExtract pulls one URL through the fetcher and applies the target.
func (d *Driver) fetchAndExtract(ctx context.Context, plan *models.ExtractionPlan, url string) (*models.RawPage, error) {
	markup, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	page := models.NewRawPage(url)
	page.Items = extract.Items(markup, plan.Target, plan.DetailAPI)
	log.Debug().Str("url", url).Int("items", len(page.Items)).Msg("Extracted page")
	return page, nil
}

// extractCurrent reads the browser's current document and applies the target.
func (d *Driver) extractCurrent(ctx context.Context, plan *models.ExtractionPlan) (*models.RawPage, error) {
	markup, err := d.browser.Markup(ctx)
	if err != nil {
		return nil, err
	}
	url, err := d.browser.Location(ctx)
	if err != nil || url == "" {
		url = plan.URL
	}
	page := models.NewRawPage(url)
	page.Items = extract.Items(markup, plan.Target, plan.DetailAPI)
	log.Debug().Str("url", url).Int("items", len(page.Items)).Msg("Extracted page")
	return page, nil
}

// pause sleeps for d, returning early on context cancellation.
func (d *Driver) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
