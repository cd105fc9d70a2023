// Package models defines the shared data types exchanged between the planner,
// the extraction engine, and the parser.
package models

import "strings"

// PaginationStrategy identifies the mechanism a site uses to reveal more items.
type PaginationStrategy string

const (
	PaginationNone           PaginationStrategy = "none"
	PaginationNextButton     PaginationStrategy = "next_button"
	PaginationPageNumbers    PaginationStrategy = "page_numbers"
	PaginationInfiniteScroll PaginationStrategy = "infinite_scroll"
	PaginationLoadMoreButton PaginationStrategy = "load_more_button"
	PaginationAlphabetTabs   PaginationStrategy = "alphabet_tabs"
	PaginationAPIEndpoint    PaginationStrategy = "api_endpoint"
)

// ExtractionTarget describes how to locate and extract items on one listing page.
type ExtractionTarget struct {
	// ItemContainerSelector matches the repeating container wrapping each item.
	// It is required and always non-empty on a valid plan.
	ItemContainerSelector string `json:"item_container_selector"`

	// FieldSelectors maps field name to a CSS selector relative to the container.
	FieldSelectors map[string]string `json:"field_selectors"`

	// FieldAttributes maps field name to an HTML attribute to read instead of
	// the element's text content.
	FieldAttributes map[string]string `json:"field_attributes,omitempty"`

	// DetailLinkSelector locates the link to an item's detail page.
	DetailLinkSelector string `json:"detail_link_selector,omitempty"`

	// DetailButtonSelector locates a script-bound detail control with no href.
	// Only used by API discovery.
	DetailButtonSelector string `json:"detail_button_selector,omitempty"`
}

// DetailSubLink names one link to follow from a detail page.
type DetailSubLink struct {
	Label     string `json:"label"`
	Selector  string `json:"selector"`
	Attribute string `json:"attribute,omitempty"`
}

// DetailPagePlan describes extraction from per-item detail pages.
type DetailPagePlan struct {
	FieldSelectors  map[string]string `json:"field_selectors,omitempty"`
	FieldAttributes map[string]string `json:"field_attributes,omitempty"`
	SubLinks        []DetailSubLink   `json:"sub_links,omitempty"`
}

// IDPlaceholder is the literal substituted per item in DetailAPIPlan.URLTemplate.
const IDPlaceholder = "{id}"

// DetailAPIPlan is a learned template for calling an intercepted JSON endpoint
// once per item.
type DetailAPIPlan struct {
	// URLTemplate always contains IDPlaceholder.
	URLTemplate string `json:"api_url_template"`

	// IDSelector locates, within the item container, the element carrying the
	// item's API id.
	IDSelector string `json:"id_selector"`

	// IDAttribute names the attribute to read the id from; empty means text.
	IDAttribute string `json:"id_attribute,omitempty"`

	// IDRegex optionally refines the raw value through a single capture group.
	IDRegex string `json:"id_regex,omitempty"`

	// SampleResponse is the body captured during discovery, kept for replanning.
	SampleResponse string `json:"sample_response,omitempty"`
}

// ExtractionPlan is the full declarative plan produced by the planner for one URL.
// A plan is immutable for the duration of a crawl; replanning yields a new value.
type ExtractionPlan struct {
	URL               string             `json:"url"`
	RequiresRendering bool               `json:"requires_dynamic_rendering"`
	Pagination        PaginationStrategy `json:"pagination"`

	// PaginationSelector locates the pagination control (next button,
	// load-more button, page links).
	PaginationSelector string `json:"pagination_selector,omitempty"`

	// PaginationURLs is a precomputed page URL list when the pattern is predictable.
	PaginationURLs []string `json:"pagination_urls,omitempty"`

	AlphabetTabSelector string `json:"alphabet_tab_selector,omitempty"`

	// APIEndpoint and APIParams describe a JSON listing endpoint when the
	// pagination strategy is PaginationAPIEndpoint.
	APIEndpoint string            `json:"api_endpoint,omitempty"`
	APIParams   map[string]string `json:"api_params,omitempty"`

	Target     ExtractionTarget `json:"target"`
	DetailPage *DetailPagePlan  `json:"detail_page,omitempty"`
	DetailAPI  *DetailAPIPlan   `json:"detail_api,omitempty"`

	// WaitSelector is waited for before extraction on rendered pages.
	WaitSelector string `json:"wait_selector,omitempty"`

	// Notes carries free-text planner remarks about edge cases.
	Notes string `json:"notes,omitempty"`
}

// Validate checks the structural invariants a plan must satisfy before a crawl.
func (p *ExtractionPlan) Validate() error {
	if p.URL == "" {
		return ErrMissingURL
	}
	if strings.TrimSpace(p.Target.ItemContainerSelector) == "" {
		return ErrMissingContainer
	}
	if p.DetailAPI != nil && !strings.Contains(p.DetailAPI.URLTemplate, IDPlaceholder) {
		return ErrBadAPITemplate
	}
	return nil
}

// Item is one raw extracted record: field name to value, where a nil value
// means the selector matched nothing and "" means a matched but empty element.
type Item map[string]*string

// Clone returns a copy sharing the value pointers.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Get returns the dereferenced value and whether it is non-nil.
func (it Item) Get(field string) (string, bool) {
	v, ok := it[field]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// RawPage is the unparsed output of one fetch-and-extract cycle. Its maps only
// ever accumulate during a run; nothing is removed.
type RawPage struct {
	URL   string `json:"url"`
	Items []Item `json:"items"`

	// DetailPages maps detail-page URL to its fetched markup.
	DetailPages map[string]string `json:"detail_pages,omitempty"`

	// SubPages maps detail-page URL to {sub-link label -> markup}.
	SubPages map[string]map[string]string `json:"sub_pages,omitempty"`

	// APIResponses maps item id to the raw body of the per-item detail API call.
	APIResponses map[string]string `json:"api_responses,omitempty"`
}

// NewRawPage returns a RawPage with initialized accumulation maps.
func NewRawPage(url string) *RawPage {
	return &RawPage{
		URL:          url,
		DetailPages:  make(map[string]string),
		SubPages:     make(map[string]map[string]string),
		APIResponses: make(map[string]string),
	}
}

// AttachSubPage records a fetched sub-link document under its detail page.
func (p *RawPage) AttachSubPage(detailURL, label, markup string) {
	if p.SubPages == nil {
		p.SubPages = make(map[string]map[string]string)
	}
	if p.SubPages[detailURL] == nil {
		p.SubPages[detailURL] = make(map[string]string)
	}
	p.SubPages[detailURL][label] = markup
}

// DetailLinkField is the synthetic item field carrying the resolved detail URL.
const DetailLinkField = "detail_link"

// DetailAPIIDField is the synthetic item field carrying the per-item API id.
const DetailAPIIDField = "_detail_api_id"
