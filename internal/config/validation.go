package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.MaxPagesPerCrawl <= 0 {
		return fmt.Errorf("max pages per crawl must be > 0")
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max concurrent requests must be > 0")
	}
	if c.MaxSubLinksPerDetail < 0 {
		return fmt.Errorf("max sub-links per detail page must be >= 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	return nil
}
