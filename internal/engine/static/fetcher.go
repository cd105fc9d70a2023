// internal/engine/static/fetcher.go
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/engine"
	"github.com/expo-works/scrape/internal/utils/headers"
)

// Fetcher retrieves markup over a plain HTTP transport - extremely fast, but
// blind to script-rendered content.
type Fetcher struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// New creates a static Fetcher with a keep-alive transport.
func New(timeout time.Duration, userAgent, proxy string) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Warn().Str("proxy", proxy).Msg("Ignoring unparseable proxy URL")
		}
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent: userAgent,
		headers:   headers.BrowserDefaults(userAgent),
	}
}

// NewWithClient creates a Fetcher around an existing client (shared transport).
func NewWithClient(client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		headers:   headers.BrowserDefaults(userAgent),
	}
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "StaticFetcher"
}

// Fetch retrieves a URL and returns its body. Non-2xx statuses are reported
// as a *engine.FetchError so callers can trigger the rendering fallback.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()

	log.Debug().
		Str("url", rawURL).
		Str("fetcher", f.Name()).
		Msg("Starting fetch")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", engine.NewFetchError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", engine.NewStatusError(rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", engine.NewFetchError(rawURL, err)
	}

	log.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Fetch completed")

	return string(body), nil
}

// FetchJSON retrieves a URL with API-shaped browser-mimicking headers. Used by
// API pagination and per-item enrichment, which bypass the rendering driver.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, extra map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for key, value := range extra {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", engine.NewFetchError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", engine.NewStatusError(rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", engine.NewFetchError(rawURL, err)
	}
	return string(body), nil
}
