package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel = "info"
	DefaultJSONLog  = false

	// Browser-mimicking default; plain bot agents get blocked by most directories.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	DefaultHTTPTimeout       = 30 * time.Second
	DefaultMaxPagesPerCrawl  = 500
	DefaultMaxConcurrent     = 5
	DefaultRequestDelay      = 1 * time.Second
	DefaultMaxSubLinks       = 10
	DefaultPreviewSubLinks   = 3
	DefaultMaxDetailFetches  = 200
	DefaultSettleDelay       = 1500 * time.Millisecond
	DefaultProbeTimeout      = 15 * time.Second
	DefaultBrowserHeadless   = true
	DefaultRateLimitRPS      = 5.0
	DefaultRateLimitBurst    = 10
	DefaultCacheTTL          = 5 * time.Minute
	DefaultCacheMaxSizeBytes = 100 * 1024 * 1024 // 100MB
)
