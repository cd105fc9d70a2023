// Package scraper wires the planner, engine, pagination, discovery, and
// enrichment into the run loop behind the CLI.
package scraper

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/cache"
	"github.com/expo-works/scrape/internal/config"
	"github.com/expo-works/scrape/internal/discover"
	"github.com/expo-works/scrape/internal/engine"
	"github.com/expo-works/scrape/internal/engine/dynamic"
	"github.com/expo-works/scrape/internal/engine/hybrid"
	"github.com/expo-works/scrape/internal/engine/static"
	"github.com/expo-works/scrape/internal/enrich"
	"github.com/expo-works/scrape/internal/fetchpool"
	"github.com/expo-works/scrape/internal/oracle"
	"github.com/expo-works/scrape/internal/paginate"
	"github.com/expo-works/scrape/internal/ratelimit"
	"github.com/expo-works/scrape/internal/reqctx"
	"github.com/expo-works/scrape/pkg/models"
)

// RunOptions tunes one execution.
type RunOptions struct {
	// Preview crawls a single page and a handful of items so the user can
	// check the plan before committing to a full run.
	Preview bool

	// Instructions are forwarded to replanning.
	Instructions string
}

// Result is one completed crawl.
type Result struct {
	// Plan is the plan that actually ran, which may be a corrected or
	// discovery-augmented successor of the input plan.
	Plan *models.ExtractionPlan

	Pages []*models.RawPage

	// Replanned reports whether a correction round happened.
	Replanned bool
}

// ItemCount sums extracted items across pages.
func (r *Result) ItemCount() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Items)
	}
	return n
}

// previewItemCap bounds items carried into enrichment during a preview.
const previewItemCap = 5

// Scraper owns the long-lived pieces shared across runs.
type Scraper struct {
	cfg     *config.Config
	static  *static.Fetcher
	store   cache.Cache
	limiter ratelimit.RateLimiter
	planner oracle.Planner
}

// New builds a scraper. planner may be nil when executing saved plans without
// replanning or API discovery.
func New(cfg *config.Config, planner oracle.Planner) *Scraper {
	return &Scraper{
		cfg:     cfg,
		static:  static.New(cfg.HTTPTimeout, cfg.UserAgent, cfg.Proxy),
		store:   cache.NewMemoryCache(cfg.CacheMaxSizeBytes),
		limiter: ratelimit.NewHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		planner: planner,
	}
}

// Close releases the scraper's shared resources.
func (s *Scraper) Close() {
	s.store.Close()
}

// Plan fetches a listing page and asks the planner to design its extraction.
func (s *Scraper) Plan(ctx context.Context, url, instructions string) (*models.ExtractionPlan, error) {
	if s.planner == nil {
		return nil, fmt.Errorf("no planner configured")
	}

	markup, rendered, err := s.planningMarkup(ctx, url)
	if err != nil {
		return nil, err
	}

	simplified, err := oracle.SimplifyHTML(markup, oracle.DefaultPayloadLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to simplify markup: %w", err)
	}

	plan, err := s.planner.Plan(ctx, oracle.PlanRequest{
		URL:          url,
		Markup:       simplified,
		Instructions: instructions,
	})
	if err != nil {
		return nil, err
	}
	if rendered {
		plan.RequiresRendering = true
	}
	return plan, nil
}

// planningMarkup fetches the page for planning, falling back to a short-lived
// rendering session when the static result looks script-rendered.
func (s *Scraper) planningMarkup(ctx context.Context, url string) (string, bool, error) {
	markup, err := s.static.Fetch(ctx, url)
	if err == nil && !hybrid.NeedsRendering(markup) {
		return markup, false, nil
	}

	sess, serr := s.openSession()
	if serr != nil {
		if err != nil {
			return "", false, err
		}
		log.Warn().Err(serr).Msg("No rendering session available, planning against static markup")
		return markup, false, nil
	}
	defer sess.Close()

	rendered, rerr := dynamic.NewFetcher(sess, "").Fetch(ctx, url)
	if rerr != nil {
		if err != nil {
			return "", false, rerr
		}
		return markup, false, nil
	}
	return rendered, true, nil
}

// Execute runs a plan end to end: paginate, optionally discover and derive the
// detail API, then enrich.
func (s *Scraper) Execute(ctx context.Context, plan *models.ExtractionPlan, opts RunOptions) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	ctx = reqctx.WithRunContext(ctx)
	rc := reqctx.GetRunContext(ctx)
	log.Info().Str("run_id", rc.RunID).Str("url", plan.URL).Msg("Starting run")

	var sess *dynamic.Session
	if s.needsBrowser(plan) {
		var err error
		sess, err = s.openSession()
		if err != nil {
			return nil, fmt.Errorf("plan needs rendering: %w", err)
		}
		defer sess.Close()
	}

	// Discovery runs before pagination so API enrichment can cover every page.
	plan = s.maybeDiscoverAPI(ctx, plan, sess)

	pages, err := s.paginate(ctx, plan, sess, opts)
	if err != nil {
		return nil, reqctx.NewRunError(ctx, err)
	}

	result := &Result{Plan: plan, Pages: pages}

	// One correction round when extraction came back empty.
	if result.ItemCount() == 0 && s.planner != nil {
		corrected, ok := s.replan(ctx, plan, sess, opts)
		if ok {
			pages, err = s.paginate(ctx, corrected, sess, opts)
			if err != nil {
				return nil, reqctx.NewRunError(ctx, err)
			}
			result = &Result{Plan: corrected, Pages: pages, Replanned: true}
		}
	}

	if opts.Preview {
		trimForPreview(result)
	}

	s.enrich(ctx, result.Plan, result.Pages, sess, opts)

	log.Info().
		Str("run_id", rc.RunID).
		Int("pages", len(result.Pages)).
		Int("items", result.ItemCount()).
		Msg("Run complete")

	return result, nil
}

// needsBrowser reports whether the plan can only run with a live session.
func (s *Scraper) needsBrowser(plan *models.ExtractionPlan) bool {
	if plan.RequiresRendering {
		return true
	}
	switch plan.Pagination {
	case models.PaginationNextButton, models.PaginationLoadMoreButton,
		models.PaginationInfiniteScroll, models.PaginationAlphabetTabs:
		return true
	}
	// A script-bound detail control means API discovery, which needs clicks.
	return plan.DetailAPI == nil && plan.Target.DetailButtonSelector != "" && s.planner != nil
}

func (s *Scraper) openSession() (*dynamic.Session, error) {
	return dynamic.NewSession(dynamic.Options{
		Headless:          s.cfg.BrowserHeadless,
		UserAgent:         s.cfg.UserAgent,
		Proxy:             s.cfg.Proxy,
		RemoteDebuggerURL: s.cfg.RemoteDebuggerURL,
	})
}

// maybeDiscoverAPI runs the discovery probe when the plan flags a script-bound
// detail control but carries no API template yet. Failures degrade to markup
// extraction; the input plan is never mutated.
func (s *Scraper) maybeDiscoverAPI(ctx context.Context, plan *models.ExtractionPlan, sess *dynamic.Session) *models.ExtractionPlan {
	if plan.DetailAPI != nil || plan.Target.DetailButtonSelector == "" || sess == nil || s.planner == nil {
		return plan
	}

	obs, err := sess.ObserveJSON()
	if err != nil {
		log.Warn().Err(err).Msg("Could not observe network, skipping API discovery")
		return plan
	}

	probe := discover.New(sess, obs, discover.NewScorer(discover.DefaultWeights()), discover.Options{
		Timeout:     s.cfg.ProbeTimeout,
		SettleDelay: s.cfg.SettleDelay,
	})

	candidate, err := probe.Run(ctx, plan)
	if err != nil {
		log.Info().Err(err).Msg("API discovery found nothing, staying with markup extraction")
		return plan
	}

	markup, err := sess.Markup(ctx)
	if err != nil {
		markup = ""
	}
	simplified, _ := oracle.SimplifyHTML(markup, oracle.DefaultPayloadLimit)

	apiPlan, err := s.planner.DeriveDetailAPI(ctx, oracle.DeriveAPIRequest{
		EndpointURL:   candidate.URL,
		SampleBody:    candidate.Body,
		ListingMarkup: simplified,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Could not derive API template, staying with markup extraction")
		return plan
	}

	enriched := *plan
	enriched.DetailAPI = apiPlan
	return &enriched
}

// fetchStack is the static transport, extended with a render retry when a
// session is open.
func (s *Scraper) fetchStack(sess *dynamic.Session, waitSelector string) engine.Fetcher {
	if sess == nil {
		return s.static
	}
	return engine.NewFallbackFetcher(s.static, dynamic.NewFetcher(sess, waitSelector))
}

// paginate builds the fetch stack for this plan and walks its pages.
func (s *Scraper) paginate(ctx context.Context, plan *models.ExtractionPlan, sess *dynamic.Session, opts RunOptions) ([]*models.RawPage, error) {
	fetcher := s.fetchStack(sess, plan.WaitSelector)
	var browser engine.Browser
	if sess != nil {
		browser = sess
	}

	maxPages := s.cfg.MaxPagesPerCrawl
	if opts.Preview {
		maxPages = 1
	}

	driver := paginate.New(fetcher, browser, s.static, paginate.Options{
		MaxPages:     maxPages,
		SettleDelay:  s.cfg.SettleDelay,
		RequestDelay: s.cfg.RequestDelay,
	})
	return driver.Run(ctx, plan)
}

// replan asks the planner for a corrected plan after zero items came back.
func (s *Scraper) replan(ctx context.Context, plan *models.ExtractionPlan, sess *dynamic.Session, opts RunOptions) (*models.ExtractionPlan, bool) {
	log.Warn().Str("container", plan.Target.ItemContainerSelector).Msg("Zero items extracted, asking for a corrected plan")

	markup, err := s.fetchStack(sess, "").Fetch(ctx, plan.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Could not refetch page for replanning")
		return nil, false
	}
	simplified, err := oracle.SimplifyHTML(markup, oracle.DefaultPayloadLimit)
	if err != nil {
		return nil, false
	}

	corrected, err := s.planner.Replan(ctx, oracle.ReplanRequest{
		Previous: plan,
		Markup:   simplified,
		Failure:  fmt.Sprintf("container selector %q matched zero items", plan.Target.ItemContainerSelector),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Replanning failed")
		return nil, false
	}
	return corrected, true
}

// enrich runs the detail page, sub-link, and detail API passes. Detail pages
// go through the same static-first fetch stack as the listing, so a rendered
// plan's detail pages get the render retry too.
func (s *Scraper) enrich(ctx context.Context, plan *models.ExtractionPlan, pages []*models.RawPage, sess *dynamic.Session, opts RunOptions) {
	pool := fetchpool.New(s.fetchStack(sess, ""), fetchpool.Options{
		Concurrency: s.cfg.MaxConcurrentRequests,
		Limiter:     s.limiter,
		Cache:       s.store,
		CacheTTL:    s.cfg.CacheTTL,
	})

	maxDetail := s.cfg.MaxDetailFetches
	if opts.Preview {
		maxDetail = config.DefaultPreviewSubLinks
	}

	enricher := enrich.New(pool, s.static, enrich.Options{
		MaxDetailFetches:     maxDetail,
		MaxSubLinksPerDetail: s.cfg.MaxSubLinksPerDetail,
		UserAgent:            s.cfg.UserAgent,
	})

	if plan.DetailPage != nil || plan.Target.DetailLinkSelector != "" {
		enricher.DetailPages(ctx, plan, pages)
		enricher.SubLinks(ctx, plan, pages)
	}
	enricher.DetailAPI(ctx, plan, pages)
}

// trimForPreview cuts the crawl down to one page and a handful of items.
func trimForPreview(result *Result) {
	if len(result.Pages) > 1 {
		result.Pages = result.Pages[:1]
	}
	if len(result.Pages) == 1 && len(result.Pages[0].Items) > previewItemCap {
		result.Pages[0].Items = result.Pages[0].Items[:previewItemCap]
	}
	log.Info().Msg("Preview mode: trimmed to one page")
}
