// internal/enrich/api.go
package enrich

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/retry"
	"github.com/expo-works/scrape/internal/utils/headers"
	urlutil "github.com/expo-works/scrape/internal/utils/url"
	"github.com/expo-works/scrape/pkg/models"
)

// DetailAPI calls the plan's per-item detail endpoint once per discovered item
// id and attaches the raw responses. Calls fan out in parallel through the
// fetch pool; failed calls are logged inside the pool and simply leave no
// entry for their id.
func (e *Enricher) DetailAPI(ctx context.Context, plan *models.ExtractionPlan, pages []*models.RawPage) {
	if plan.DetailAPI == nil || e.json == nil {
		return
	}

	origin := urlutil.Origin(plan.URL)
	hdrs := headers.APIDefaults(e.opts.UserAgent, plan.URL, origin)

	budget := e.opts.MaxDetailFetches
	seen := make(map[string]bool)

	for _, page := range pages {
		// ids keyed by endpoint URL; a template without the placeholder
		// collapses every id onto one URL.
		byURL := make(map[string][]string)
		var urls []string

		for _, item := range page.Items {
			if budget <= 0 {
				break
			}
			id, ok := item.Get(models.DetailAPIIDField)
			if !ok || id == "" || seen[id] {
				continue
			}
			seen[id] = true
			budget--

			url := strings.ReplaceAll(plan.DetailAPI.URLTemplate, models.IDPlaceholder, id)
			if _, dup := byURL[url]; !dup {
				urls = append(urls, url)
			}
			byURL[url] = append(byURL[url], id)
		}

		if len(urls) > 0 {
			log.Info().Str("page", page.URL).Int("calls", len(urls)).Msg("Calling detail API")
			for url, body := range e.pool.FetchJSONAll(ctx, retryingJSON{e.json}, urls, hdrs) {
				for _, id := range byURL[url] {
					page.APIResponses[id] = body
				}
			}
		}

		if budget <= 0 {
			log.Warn().Int("cap", e.opts.MaxDetailFetches).Msg("Detail API budget exhausted")
			return
		}
	}
}

// retryingJSON applies the shared backoff policy around each pooled API call,
// so transient failures (429, 5xx) retry inside the worker that owns them.
type retryingJSON struct {
	inner JSONFetcher
}

func (r retryingJSON) FetchJSON(ctx context.Context, url string, extra map[string]string) (string, error) {
	var body string
	err := retry.WithRetry(ctx, retryConfig, func() error {
		var ferr error
		body, ferr = r.inner.FetchJSON(ctx, url, extra)
		return ferr
	})
	return body, err
}
