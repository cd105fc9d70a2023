// Package oracle defines the planning brain of the scraper: the component
// that studies a page and emits the declarative extraction plan the engine
// executes. Implementations live in subpackages; gemini is the production one.
package oracle

import (
	"context"
	"errors"

	"github.com/expo-works/scrape/pkg/models"
)

// ErrUnplannable means the planner inspected the page and could not produce a
// usable plan for it.
var ErrUnplannable = errors.New("page cannot be planned")

// PlanRequest carries everything the planner sees when designing a plan.
type PlanRequest struct {
	// URL of the listing page.
	URL string

	// Markup is the page's simplified HTML.
	Markup string

	// Instructions are the user's words about what to extract.
	Instructions string
}

// ReplanRequest asks for a corrected plan after the first one produced nothing.
type ReplanRequest struct {
	Previous *models.ExtractionPlan

	// Markup is the page as the engine actually saw it, which may differ from
	// what the original plan was built against.
	Markup string

	// Failure describes what went wrong (no containers matched, zero items).
	Failure string
}

// DeriveAPIRequest asks the planner to generalize an observed endpoint into a
// per-item call template.
type DeriveAPIRequest struct {
	// EndpointURL is the concrete URL one detail click triggered.
	EndpointURL string

	// SampleBody is the JSON that URL returned.
	SampleBody string

	// ListingMarkup is the simplified listing HTML, for locating the id.
	ListingMarkup string
}

// Planner designs and repairs extraction plans.
type Planner interface {
	// Plan produces a plan for one listing page.
	Plan(ctx context.Context, req PlanRequest) (*models.ExtractionPlan, error)

	// Replan produces a corrected plan after a failed crawl attempt.
	Replan(ctx context.Context, req ReplanRequest) (*models.ExtractionPlan, error)

	// DeriveDetailAPI turns an observed endpoint into a templated detail API plan.
	DeriveDetailAPI(ctx context.Context, req DeriveAPIRequest) (*models.DetailAPIPlan, error)
}

// Parser turns the raw crawl output into final structured records.
type Parser interface {
	// Parse consolidates the raw pages into one record per item, following the
	// user's instructions for field naming and shape.
	Parse(ctx context.Context, pages []*models.RawPage, instructions string) ([]map[string]string, error)
}
