package headers

import (
	"strings"
)

// ParseHeaders converts an array of header strings ("Key: Value") into a map
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) == 2 {
			m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return m
}

// BrowserDefaults returns the header set a real browser would send. Directory
// sites frequently block requests missing these.
func BrowserDefaults(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}

// APIDefaults returns browser-mimicking headers for per-item API calls made
// outside the browser: user agent plus Referer/Origin of the listing page.
func APIDefaults(userAgent, listingURL, origin string) map[string]string {
	m := map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/json, text/plain, */*",
	}
	if listingURL != "" {
		m["Referer"] = listingURL
	}
	if origin != "" {
		m["Origin"] = origin
	}
	return m
}
