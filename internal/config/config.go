package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP transport
	HTTPTimeout time.Duration
	UserAgent   string
	Proxy       string

	// Crawl limits
	MaxPagesPerCrawl      int
	MaxConcurrentRequests int
	RequestDelay          time.Duration
	MaxSubLinksPerDetail  int
	MaxDetailFetches      int

	// Pagination / probe timing
	SettleDelay  time.Duration
	ProbeTimeout time.Duration

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Rendering driver
	BrowserHeadless   bool
	ChromePath        string
	RemoteDebuggerURL string

	// Caching
	CacheTTL          time.Duration
	CacheMaxSizeBytes int64
}

// Load builds a Config by combining defaults, environment variables, and CLI
// flags. Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:              DefaultLogLevel,
		JSONLog:               DefaultJSONLog,
		HTTPTimeout:           DefaultHTTPTimeout,
		UserAgent:             DefaultUserAgent,
		MaxPagesPerCrawl:      DefaultMaxPagesPerCrawl,
		MaxConcurrentRequests: DefaultMaxConcurrent,
		RequestDelay:          DefaultRequestDelay,
		MaxSubLinksPerDetail:  DefaultMaxSubLinks,
		MaxDetailFetches:      DefaultMaxDetailFetches,
		SettleDelay:           DefaultSettleDelay,
		ProbeTimeout:          DefaultProbeTimeout,
		RateLimitRPS:          DefaultRateLimitRPS,
		RateLimitBurst:        DefaultRateLimitBurst,
		BrowserHeadless:       DefaultBrowserHeadless,
		CacheTTL:              DefaultCacheTTL,
		CacheMaxSizeBytes:     DefaultCacheMaxSizeBytes,
	}

	// Override from environment variables (simple helpers)
	if v := os.Getenv("SCRAPE_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("SCRAPE_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("SCRAPE_REMOTE_DEBUGGER_URL"); v != "" {
		cfg.RemoteDebuggerURL = v
	}
	if v := os.Getenv("SCRAPE_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPagesPerCrawl = n
		}
	}

	// Read CLI flags if provided
	if cmd != nil {
		if f := cmd.Flags().Lookup("user-agent"); f != nil {
			if s := f.Value.String(); s != "" {
				cfg.UserAgent = s
			}
		}
		if f := cmd.Flags().Lookup("proxy"); f != nil {
			if s := f.Value.String(); s != "" {
				cfg.Proxy = s
			}
		}
		if f := cmd.Flags().Lookup("timeout"); f != nil {
			if s := f.Value.String(); s != "" {
				if d, err := time.ParseDuration(s); err == nil {
					cfg.HTTPTimeout = d
				}
			}
		}
		if f := cmd.Flags().Lookup("max-pages"); f != nil {
			if n, err := strconv.Atoi(f.Value.String()); err == nil && n > 0 {
				cfg.MaxPagesPerCrawl = n
			}
		}
		if f := cmd.Flags().Lookup("concurrency"); f != nil {
			if n, err := strconv.Atoi(f.Value.String()); err == nil && n > 0 {
				cfg.MaxConcurrentRequests = n
			}
		}
		if f := cmd.Flags().Lookup("delay"); f != nil {
			if s := f.Value.String(); s != "" {
				if d, err := time.ParseDuration(s); err == nil {
					cfg.RequestDelay = d
				}
			}
		}
		if f := cmd.Flags().Lookup("remote-debugger"); f != nil {
			if s := f.Value.String(); s != "" {
				cfg.RemoteDebuggerURL = s
			}
		}
		if f := cmd.Flags().Lookup("headful"); f != nil {
			if f.Value.String() == "true" {
				cfg.BrowserHeadless = false
			}
		}
		if f := cmd.Flags().Lookup("json"); f != nil {
			if f.Value.String() == "true" {
				cfg.JSONLog = true
			}
		}
		if f := cmd.Flags().Lookup("verbose"); f != nil {
			if f.Value.String() == "true" {
				cfg.LogLevel = "debug"
			}
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
