// internal/engine/fallback.go
package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/engine/hybrid"
)

// FallbackFetcher tries the cheap direct transport first and retries exactly
// once through the rendering driver when the direct result is implausible:
// the fetch failed, the body is suspiciously short, or it carries a no-script
// marker. Static sites stay cheap; script-rendered ones stay correct.
type FallbackFetcher struct {
	static Fetcher
	render Fetcher // nil when no rendering session is available
}

// NewFallbackFetcher composes the two transports. render may be nil, in which
// case direct results are returned as-is.
func NewFallbackFetcher(static, render Fetcher) *FallbackFetcher {
	return &FallbackFetcher{static: static, render: render}
}

// Name returns the name of this fetcher
func (f *FallbackFetcher) Name() string {
	return "FallbackFetcher"
}

// Fetch retrieves markup, applying the single-retry rendering fallback.
func (f *FallbackFetcher) Fetch(ctx context.Context, url string) (string, error) {
	markup, err := f.static.Fetch(ctx, url)

	switch {
	case err == nil && !hybrid.NeedsRendering(markup):
		return markup, nil
	case f.render == nil:
		return markup, err
	}

	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("Direct fetch failed, retrying with rendering")
	} else {
		log.Debug().Str("url", url).Int("bytes", len(markup)).Msg("Markup looks script-rendered, retrying with rendering")
	}

	rendered, rerr := f.render.Fetch(ctx, url)
	if rerr != nil {
		// The direct result, even a shell, beats nothing.
		if err == nil {
			log.Warn().Err(rerr).Str("url", url).Msg("Rendering fallback failed, keeping direct result")
			return markup, nil
		}
		return "", rerr
	}
	return rendered, nil
}
