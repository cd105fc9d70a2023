// Package fetchpool runs many page fetches concurrently under a shared rate
// limit. The enrichment passes use it to pull detail and sub-link pages.
package fetchpool

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/cache"
	"github.com/expo-works/scrape/internal/engine"
	"github.com/expo-works/scrape/internal/ratelimit"
)

// Result is the outcome of one pooled fetch.
type Result struct {
	URL    string
	Markup string
	Err    error
}

// Pool manages concurrent fetches using a worker pool pattern.
type Pool struct {
	fetcher     engine.Fetcher
	limiter     ratelimit.RateLimiter
	store       cache.Cache
	concurrency int
	cacheTTL    time.Duration
}

// Options tunes a pool. Limiter and Cache may be nil to disable pacing or
// caching respectively.
type Options struct {
	Concurrency int
	Limiter     ratelimit.RateLimiter
	Cache       cache.Cache
	CacheTTL    time.Duration
}

// New creates a pool around the given fetcher.
func New(fetcher engine.Fetcher, opts Options) *Pool {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	if concurrency > 50 {
		concurrency = 50 // Keep the process from overwhelming itself or the site
	}

	return &Pool{
		fetcher:     fetcher,
		limiter:     opts.Limiter,
		store:       opts.Cache,
		concurrency: concurrency,
		cacheTTL:    opts.CacheTTL,
	}
}

// FetchAll fetches every URL concurrently and returns URL to markup for the
// ones that succeeded. Failures are logged and omitted; a partial map is
// normal output, not an error.
func (p *Pool) FetchAll(ctx context.Context, urls []string) map[string]string {
	out := make(map[string]string, len(urls))
	for _, r := range p.FetchBatch(ctx, urls) {
		if r.Err == nil {
			out[r.URL] = r.Markup
		}
	}
	return out
}

// JSONFetcher issues one JSON request with extra headers.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, extra map[string]string) (string, error)
}

// FetchJSONAll issues every API call concurrently through the pool's workers
// and returns URL to body for the ones that succeeded. Failures are logged and
// omitted, mirroring FetchAll. The pool's rate limiter paces the calls; the
// markup cache is not consulted.
func (p *Pool) FetchJSONAll(ctx context.Context, json JSONFetcher, urls []string, extra map[string]string) map[string]string {
	results := p.batch(ctx, urls, func(ctx context.Context, url string) *Result {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx, url); err != nil {
				return &Result{URL: url, Err: err}
			}
		}
		body, err := json.FetchJSON(ctx, url, extra)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Pooled API call failed")
			return &Result{URL: url, Err: err}
		}
		return &Result{URL: url, Markup: body}
	})

	out := make(map[string]string, len(urls))
	for _, r := range results {
		if r.Err == nil {
			out[r.URL] = r.Markup
		}
	}
	return out
}

// FetchBatch fetches every URL concurrently and returns one Result per URL.
func (p *Pool) FetchBatch(ctx context.Context, urls []string) []*Result {
	return p.batch(ctx, urls, p.fetchOne)
}

// batch fans urls out over the worker pool, applying fn to each.
func (p *Pool) batch(ctx context.Context, urls []string, fn func(context.Context, string) *Result) []*Result {
	if len(urls) == 0 {
		return []*Result{}
	}

	jobs := make(chan string, len(urls))
	results := make(chan *Result, len(urls))

	var wg sync.WaitGroup
	for w := 1; w <= p.concurrency; w++ {
		wg.Add(1)
		go p.worker(ctx, w, fn, jobs, results, &wg)
	}

	go func() {
		for _, url := range urls {
			jobs <- url
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	all := make([]*Result, 0, len(urls))
	for result := range results {
		all = append(all, result)
	}

	return all
}

// worker processes fetch jobs from the jobs channel.
func (p *Pool) worker(ctx context.Context, id int, fn func(context.Context, string) *Result, jobs <-chan string, results chan<- *Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for url := range jobs {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker_id", id).Msg("Worker cancelled")
			return
		default:
		}

		result := fn(ctx, url)

		select {
		case results <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) fetchOne(ctx context.Context, url string) *Result {
	if p.store != nil {
		if markup, ok := p.store.Get(cache.Key(url, "")); ok {
			return &Result{URL: url, Markup: markup}
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, url); err != nil {
			return &Result{URL: url, Err: err}
		}
	}

	markup, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Pooled fetch failed")
		return &Result{URL: url, Err: err}
	}

	if p.store != nil {
		_ = p.store.Set(cache.Key(url, ""), markup, p.cacheTTL)
	}

	return &Result{URL: url, Markup: markup}
}
