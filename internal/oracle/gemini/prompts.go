// internal/oracle/gemini/prompts.go
package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expo-works/scrape/internal/oracle"
	"github.com/expo-works/scrape/pkg/models"
)

const plannerSystemPrompt = `You are an expert web scraping planner. Given the simplified HTML of a
directory listing page, you design a declarative extraction plan as a single JSON object with these fields:
"url", "requires_dynamic_rendering" (bool), "pagination" (one of: none, next_button, page_numbers,
infinite_scroll, load_more_button, alphabet_tabs, api_endpoint), "pagination_selector",
"pagination_urls" (array), "alphabet_tab_selector", "api_endpoint", "api_params" (object),
"wait_selector", "notes", and "target" with "item_container_selector", "field_selectors" (object of
field name to CSS selector relative to the container), "field_attributes" (object of field name to
attribute, only where the value lives in an attribute rather than text), "detail_link_selector", and
"detail_button_selector". Optionally "detail_page" with "field_selectors", "field_attributes", and
"sub_links" (array of {"label","selector","attribute"}). Selectors must match the provided HTML.
Respond with the JSON object only.`

const deriveSystemPrompt = `You are an expert at reverse engineering web APIs. Given a concrete API URL
that loading one item's details triggered, the JSON it returned, and the listing page HTML, produce a
JSON object with: "api_url_template" (the URL with the item-specific identifier replaced by the literal
{id}), "id_selector" (a CSS selector matching, inside each item container, the element carrying that
identifier), "id_attribute" (the attribute holding it, omit if it is the element text), and "id_regex"
(optional regular expression with one capture group extracting the identifier from the raw value).
Respond with the JSON object only.`

const parserSystemPrompt = `You are a data extraction assistant. You receive raw scraped directory data:
per-item field values, detail page content, and API responses. Consolidate them into clean records
following the user's instructions. Respond with a JSON array of flat objects whose values are strings;
use an empty string for unknown fields. Respond with the JSON array only.`

// BuildPlanPrompt assembles the planning prompt for one listing page.
func BuildPlanPrompt(req oracle.PlanRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n\n", req.URL)
	if req.Instructions != "" {
		fmt.Fprintf(&sb, "The user wants: %s\n\n", req.Instructions)
	}
	sb.WriteString("Simplified page HTML:\n\n")
	sb.WriteString(req.Markup)
	return sb.String()
}

// BuildReplanPrompt assembles the correction prompt after a failed crawl.
func BuildReplanPrompt(req oracle.ReplanRequest) string {
	previous, _ := json.Marshal(req.Previous)

	var sb strings.Builder
	sb.WriteString("The previous plan failed and must be corrected.\n\n")
	fmt.Fprintf(&sb, "Previous plan:\n%s\n\n", previous)
	fmt.Fprintf(&sb, "Failure: %s\n\n", req.Failure)
	sb.WriteString("The page as actually fetched:\n\n")
	sb.WriteString(req.Markup)
	sb.WriteString("\n\nProduce a corrected plan whose selectors match this HTML.")
	return sb.String()
}

// BuildDerivePrompt assembles the API template derivation prompt.
func BuildDerivePrompt(req oracle.DeriveAPIRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Observed API URL:\n%s\n\n", req.EndpointURL)
	fmt.Fprintf(&sb, "Response body:\n%s\n\n", oracle.Truncate(req.SampleBody, 4000))
	sb.WriteString("Listing page HTML:\n\n")
	sb.WriteString(req.ListingMarkup)
	return sb.String()
}

// parsePayloadPage is the per-page shape serialized into the parsing prompt.
type parsePayloadPage struct {
	URL          string            `json:"url"`
	Items        []models.Item     `json:"items"`
	DetailPages  map[string]string `json:"detail_pages,omitempty"`
	APIResponses map[string]string `json:"api_responses,omitempty"`
}

// BuildParsePrompt assembles the consolidation prompt. Detail markup is
// converted to markdown and bounded so a large crawl still fits a request.
func BuildParsePrompt(pages []*models.RawPage, instructions string) (string, error) {
	payload := make([]parsePayloadPage, 0, len(pages))
	for _, page := range pages {
		p := parsePayloadPage{
			URL:          page.URL,
			Items:        page.Items,
			APIResponses: make(map[string]string, len(page.APIResponses)),
		}
		if len(page.DetailPages) > 0 {
			p.DetailPages = make(map[string]string, len(page.DetailPages))
			for url, markup := range page.DetailPages {
				md, err := oracle.ToMarkdown(markup, 8000)
				if err != nil {
					continue
				}
				p.DetailPages[url] = md
			}
			// Sub-link documents ride along under their detail page.
			for detailURL, subs := range page.SubPages {
				for label, markup := range subs {
					md, err := oracle.ToMarkdown(markup, 4000)
					if err != nil {
						continue
					}
					p.DetailPages[detailURL+"#"+label] = md
				}
			}
		}
		for id, body := range page.APIResponses {
			p.APIResponses[id] = oracle.Truncate(body, 4000)
		}
		payload = append(payload, p)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize crawl output: %w", err)
	}

	var sb strings.Builder
	if instructions != "" {
		fmt.Fprintf(&sb, "Instructions: %s\n\n", instructions)
	}
	sb.WriteString("Raw scraped data:\n\n")
	sb.WriteString(string(data))
	return sb.String(), nil
}
