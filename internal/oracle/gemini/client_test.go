package gemini

import (
	"strings"
	"testing"

	"github.com/expo-works/scrape/internal/oracle"
	"github.com/expo-works/scrape/pkg/models"
)

func TestDecodeJSONPlain(t *testing.T) {
	var plan models.ExtractionPlan
	raw := `{"url":"https://example.com","target":{"item_container_selector":".card"}}`
	if err := decodeJSON(raw, &plan); err != nil {
		t.Fatal(err)
	}
	if plan.Target.ItemContainerSelector != ".card" {
		t.Errorf("container = %q", plan.Target.ItemContainerSelector)
	}
}

func TestDecodeJSONFenced(t *testing.T) {
	var plan models.ExtractionPlan
	raw := "```json\n{\"url\":\"https://example.com\",\"pagination\":\"next_button\",\"target\":{\"item_container_selector\":\".row\"}}\n```"
	if err := decodeJSON(raw, &plan); err != nil {
		t.Fatal(err)
	}
	if plan.Pagination != models.PaginationNextButton {
		t.Errorf("pagination = %q", plan.Pagination)
	}
}

func TestBuildPlanPromptIncludesPieces(t *testing.T) {
	prompt := BuildPlanPrompt(oracle.PlanRequest{
		URL:          "https://fair.example.com/exhibitors",
		Markup:       `<div class="card">Acme</div>`,
		Instructions: "company name and booth number",
	})
	for _, want := range []string{"https://fair.example.com/exhibitors", "company name and booth number", `class="card"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildReplanPromptCarriesFailure(t *testing.T) {
	prompt := BuildReplanPrompt(oracle.ReplanRequest{
		Previous: &models.ExtractionPlan{
			URL:    "https://example.com",
			Target: models.ExtractionTarget{ItemContainerSelector: ".old"},
		},
		Markup:  "<div class=\"new\"></div>",
		Failure: "container selector matched 0 elements",
	})
	if !strings.Contains(prompt, "matched 0 elements") {
		t.Error("failure description missing")
	}
	if !strings.Contains(prompt, ".old") {
		t.Error("previous plan missing")
	}
}

func TestBuildParsePromptBoundsDetailPages(t *testing.T) {
	page := models.NewRawPage("https://example.com/list")
	name := "Acme"
	page.Items = []models.Item{{"name": &name}}
	page.DetailPages["https://example.com/d/1"] = "<h1>Acme</h1>" + strings.Repeat("<p>text</p>", 5000)
	page.AttachSubPage("https://example.com/d/1", "products", "<ul><li>Widget</li></ul>")
	page.APIResponses["1"] = `{"name":"Acme"}`

	prompt, err := BuildParsePrompt([]*models.RawPage{page}, "names only")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "names only") {
		t.Error("instructions missing")
	}
	if !strings.Contains(prompt, "Widget") {
		t.Error("sub-page content missing")
	}
	// A 5000-paragraph detail page must not be passed through whole.
	if len(prompt) > 60_000 {
		t.Errorf("prompt ballooned to %d bytes", len(prompt))
	}
}
