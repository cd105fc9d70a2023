// Package discover probes a rendered listing for the JSON API behind it:
// click a detail control, watch the network, and score what comes back.
package discover

import (
	"encoding/json"
	"strings"
)

// Weights tunes response scoring. Zero values fall back to the defaults, so a
// partially filled struct is safe.
type Weights struct {
	// NoiseFloor is the score assigned to responses from known tracking and
	// infrastructure URLs. It must be low enough that no body can redeem them.
	NoiseFloor int

	// KeyHit is awarded per directory-data key found in the body.
	KeyHit int

	// URLHit is awarded per directory-flavored word in the response URL.
	URLHit int
}

// DefaultWeights returns the scoring weights used in production.
func DefaultWeights() Weights {
	return Weights{NoiseFloor: -1000, KeyHit: 10, URLHit: 15}
}

func (w *Weights) fillDefaults() {
	if w.NoiseFloor == 0 {
		w.NoiseFloor = -1000
	}
	if w.KeyHit == 0 {
		w.KeyHit = 10
	}
	if w.URLHit == 0 {
		w.URLHit = 15
	}
}

// noiseFragments mark analytics, consent, and CDN infrastructure URLs whose
// responses can never be the directory API.
var noiseFragments = []string{
	"analytics", "tracking", "pixel", "beacon", "telemetry",
	"consent", "cookie", "gdpr", "onetrust", "usercentrics",
	"gtag", "gtm", "googletagmanager", "google-analytics", "doubleclick",
	"facebook", "hotjar", "sentry", "segment", "intercom", "clarity",
	"cdn-cgi", "recaptcha", "adservice",
}

// detailDataKeys are words that directory record field names carry. Matched by
// substring so camelCase and snake_case variants (companyName, contact_email)
// hit too.
var detailDataKeys = []string{
	"name", "address", "phone", "telephone",
	"email", "website", "url", "description",
	"company", "contact", "fax", "city",
	"country", "postal", "zip", "street",
	"profile", "social", "category", "product",
	"brand", "booth", "stand", "hall",
	"exhibitor",
}

// indicativeURLWords in a response URL suggest a per-item directory endpoint.
var indicativeURLWords = []string{"exhibitor", "profile", "detail", "company", "seller", "vendor"}

// Scorer ranks captured JSON responses by how much they look like the
// directory's own data API.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer; zero-valued weights use the defaults.
func NewScorer(w Weights) *Scorer {
	w.fillDefaults()
	return &Scorer{weights: w}
}

// Score rates one captured response. Noise URLs bottom out at the noise floor
// regardless of body; everything else scores by URL wording, recognizable
// record keys, and body breadth.
func (s *Scorer) Score(rawURL string, body []byte) int {
	lower := strings.ToLower(rawURL)
	for _, frag := range noiseFragments {
		if strings.Contains(lower, frag) {
			return s.weights.NoiseFloor
		}
	}

	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return s.weights.NoiseFloor
	}

	record := recordObject(root)
	if record == nil {
		return s.weights.NoiseFloor
	}

	score := 0
	for _, word := range indicativeURLWords {
		if strings.Contains(lower, word) {
			score += s.weights.URLHit
		}
	}

	for key := range collectKeys(record) {
		if keyIndicative(key) {
			score += s.weights.KeyHit
		}
	}

	score += len(record)
	return score
}

// recordObject finds the representative record in a response: a bare object,
// or the first object of an array at the root or one level down.
func recordObject(root interface{}) map[string]interface{} {
	switch v := root.(type) {
	case map[string]interface{}:
		return v
	case []interface{}:
		if len(v) > 0 {
			if obj, ok := v[0].(map[string]interface{}); ok {
				return obj
			}
		}
	}
	return nil
}

// keyIndicative reports whether a lowercased key name carries any directory
// vocabulary word.
func keyIndicative(key string) bool {
	for _, word := range detailDataKeys {
		if strings.Contains(key, word) {
			return true
		}
	}
	return false
}

// collectKeys gathers the record's keys as a deduplicated set, top level plus
// one nested level, lowercased. Nested arrays contribute the keys of their
// first object. A key repeated across levels counts once.
func collectKeys(record map[string]interface{}) map[string]bool {
	keys := make(map[string]bool, len(record)*2)
	for k, v := range record {
		keys[strings.ToLower(k)] = true
		switch nested := v.(type) {
		case map[string]interface{}:
			for nk := range nested {
				keys[strings.ToLower(nk)] = true
			}
		case []interface{}:
			if len(nested) > 0 {
				if obj, ok := nested[0].(map[string]interface{}); ok {
					for nk := range obj {
						keys[strings.ToLower(nk)] = true
					}
				}
			}
		}
	}
	return keys
}
