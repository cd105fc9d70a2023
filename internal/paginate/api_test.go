package paginate

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/expo-works/scrape/pkg/models"
)

// fakeAPI serves canned JSON bodies keyed by the page query parameter.
type fakeAPI struct {
	bodies map[string]string
	calls  []string
}

func (f *fakeAPI) FetchJSON(_ context.Context, rawURL string, _ map[string]string) (string, error) {
	f.calls = append(f.calls, rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	body, ok := f.bodies[u.Query().Get("page")]
	if !ok {
		return "", fmt.Errorf("no page %s", u.Query().Get("page"))
	}
	return body, nil
}

func apiPlan() *models.ExtractionPlan {
	return &models.ExtractionPlan{
		URL:         "https://fair.example.com/exhibitors",
		Pagination:  models.PaginationAPIEndpoint,
		APIEndpoint: "https://fair.example.com/api/exhibitors",
		Target:      testTarget,
	}
}

func TestAPIPagesUntilEmpty(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"0": `{"data":[{"name":"Acme"},{"name":"Globex"}]}`,
		"1": `{"data":[{"name":"Initech"}]}`,
		"2": `{"data":[]}`,
	}}

	pages, err := New(nil, nil, api, Options{}).Run(context.Background(), apiPlan())
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if len(pages[0].Items) != 2 || len(pages[1].Items) != 1 {
		t.Errorf("item counts = %d, %d", len(pages[0].Items), len(pages[1].Items))
	}
	if v, ok := pages[0].Items[0].Get("name"); !ok || v != "Acme" {
		t.Errorf("first item name = %q", v)
	}
}

func TestAPIPagesStartAtZero(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"0": `{"data":[]}`,
	}}

	if _, err := New(nil, nil, api, Options{}).Run(context.Background(), apiPlan()); err != nil {
		t.Fatal(err)
	}
	if len(api.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(api.calls))
	}
	u, _ := url.Parse(api.calls[0])
	if got := u.Query().Get("page"); got != "0" {
		t.Errorf("first request asked for page %q, want 0", got)
	}
}

func TestAPIPagesStopOnErrorAfterFirst(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"0": `[{"name":"Acme"}]`,
	}}

	pages, err := New(nil, nil, api, Options{}).Run(context.Background(), apiPlan())
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
}

func TestAPIPagesFirstPageErrorIsFatal(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{}}
	if _, err := New(nil, nil, api, Options{}).Run(context.Background(), apiPlan()); err == nil {
		t.Fatal("expected error when the first API page fails")
	}
}

func TestAPIPagesCeiling(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"0": `[{"name":"a"}]`, "1": `[{"name":"b"}]`, "2": `[{"name":"c"}]`, "3": `[{"name":"d"}]`,
	}}

	pages, err := New(nil, nil, api, Options{MaxPages: 2}).Run(context.Background(), apiPlan())
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected the ceiling of 2 pages, got %d", len(pages))
	}
}

func TestAPIMissingEndpointFallsBackToSinglePage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://fair.example.com/exhibitors": listing(1, 2),
	}}
	plan := apiPlan()
	plan.APIEndpoint = ""

	pages, err := New(fetcher, nil, nil, Options{}).Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || len(pages[0].Items) != 2 {
		t.Fatalf("expected single markup page with 2 items, got %d pages", len(pages))
	}
}

func TestBuildAPIURLPlaceholderParam(t *testing.T) {
	got, err := buildAPIURL("https://x.test/api", map[string]string{"p": "{page}", "size": "50"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("p") != "3" || u.Query().Get("size") != "50" {
		t.Errorf("got %s", got)
	}
	if u.Query().Has("page") {
		t.Error("implicit page param must not be added when a placeholder is bound")
	}
}

func TestParseAPIItemsBareObject(t *testing.T) {
	items, isList := parseAPIResponse(`{"name":"Acme","booth":null,"size":12}`)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if isList {
		t.Error("bare object must not be treated as a paged list")
	}
	if v, ok := items[0].Get("name"); !ok || v != "Acme" {
		t.Errorf("name = %q", v)
	}
	if items[0]["booth"] != nil {
		t.Error("null must map to a nil value")
	}
	if v, _ := items[0].Get("size"); v != "12" {
		t.Errorf("size = %q", v)
	}
}

func TestParseAPIItemsWrapperKeys(t *testing.T) {
	items, isList := parseAPIResponse(`{"exhibitors":[{"name":"Acme"}],"total":1}`)
	if len(items) != 1 {
		t.Fatalf("expected 1 item from wrapper, got %d", len(items))
	}
	if !isList {
		t.Error("wrapped array is a paged list")
	}
}
