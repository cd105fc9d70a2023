package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "30s", "Set hard timeout for requests")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().Int("max-pages", DefaultMaxPagesPerCrawl, "Maximum pages per crawl")
	cmd.PersistentFlags().Int("concurrency", DefaultMaxConcurrent, "Maximum concurrent requests")
	cmd.PersistentFlags().String("delay", DefaultRequestDelay.String(), "Delay between requests")
	cmd.PersistentFlags().String("remote-debugger", "", "Remote DevTools endpoint instead of a local browser")
	cmd.PersistentFlags().Bool("headful", false, "Run the browser with a visible window")
}
