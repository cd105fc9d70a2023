package discover

import (
	"context"
	"testing"
	"time"

	"github.com/expo-works/scrape/internal/engine/dynamic"
	"github.com/expo-works/scrape/pkg/models"
)

func TestScoreDirectoryEndpoint(t *testing.T) {
	s := NewScorer(DefaultWeights())

	// URL carries "exhibitor" and "profile" (2 x 15), the body has two keys,
	// both of which are recognizable record fields (2 x 10).
	score := s.Score(
		"https://fair.example.com/api/exhibitors/42/profile",
		[]byte(`{"name":"Acme Corp","booth":"A-12"}`),
	)
	if score != 52 {
		t.Errorf("score = %d, want 52", score)
	}
}

func TestScoreNoiseFloorBeatsRichBody(t *testing.T) {
	s := NewScorer(DefaultWeights())

	body := []byte(`{"name":"x","address":"y","phone":"z","email":"e","company":"c"}`)
	score := s.Score("https://www.google-analytics.com/collect", body)
	if score != -1000 {
		t.Errorf("noise score = %d, want -1000", score)
	}

	// The noise floor must lose to any positive-scoring real endpoint.
	real := s.Score("https://fair.example.com/api/companies/1", []byte(`{"name":"Acme"}`))
	if real <= score {
		t.Errorf("real endpoint (%d) must outrank noise (%d)", real, score)
	}
}

func TestScoreNonJSONIsNoise(t *testing.T) {
	s := NewScorer(DefaultWeights())
	if score := s.Score("https://fair.example.com/api/items", []byte("<html>")); score != -1000 {
		t.Errorf("non-JSON score = %d, want -1000", score)
	}
}

func TestScoreArrayRootUsesFirstRecord(t *testing.T) {
	s := NewScorer(DefaultWeights())
	score := s.Score(
		"https://fair.example.com/api/list",
		[]byte(`[{"name":"Acme","city":"Berlin"},{"name":"Globex"}]`),
	)
	// Two key hits plus two top-level keys, no URL words.
	if score != 22 {
		t.Errorf("score = %d, want 22", score)
	}
}

func TestScoreNestedKeysCount(t *testing.T) {
	s := NewScorer(DefaultWeights())
	score := s.Score(
		"https://fair.example.com/api/record",
		[]byte(`{"data":{"name":"Acme","phone":"1"},"meta":"x"}`),
	)
	// Nested name and phone hit (2 x 10); top-level breadth is 2.
	if score != 22 {
		t.Errorf("score = %d, want 22", score)
	}
}

func TestScoreMatchesKeySubstrings(t *testing.T) {
	s := NewScorer(DefaultWeights())
	score := s.Score(
		"https://fair.example.com/api/item",
		[]byte(`{"companyName":"Acme","contactEmail":"a@b","boothNumber":"A1"}`),
	)
	// companyName, contactEmail, and boothNumber each contain a vocabulary
	// word (3 x 10); no URL words; three top-level keys.
	if score != 33 {
		t.Errorf("score = %d, want 33", score)
	}
}

func TestScoreCountsRepeatedKeyOnce(t *testing.T) {
	s := NewScorer(DefaultWeights())
	score := s.Score(
		"https://fair.example.com/api/item",
		[]byte(`{"name":"Acme","contact":{"name":"Jo"}}`),
	)
	// The deduplicated key set is {name, contact}: two hits (2 x 10) plus
	// two top-level keys, not three hits.
	if score != 22 {
		t.Errorf("score = %d, want 22", score)
	}
}

func TestScoreFiveIndicativeKeysPlainURL(t *testing.T) {
	s := NewScorer(DefaultWeights())
	score := s.Score(
		"https://fair.example.com/api/batch",
		[]byte(`{"name":"a","address":"b","phone":"c","email":"d","website":"e"}`),
	)
	// Five key hits and no URL words: 50 plus the five-key breadth.
	if score != 55 {
		t.Errorf("score = %d, want 55", score)
	}
}

func TestScoreCustomWeights(t *testing.T) {
	s := NewScorer(Weights{NoiseFloor: -5, KeyHit: 1, URLHit: 2})
	score := s.Score("https://fair.example.com/api/exhibitor", []byte(`{"name":"A"}`))
	// One URL word (2) + one key hit (1) + one top-level key (1).
	if score != 4 {
		t.Errorf("score = %d, want 4", score)
	}
	if s.Score("https://tracking.example.com/x", []byte(`{}`)) != -5 {
		t.Error("custom noise floor not applied")
	}
}

// fakeProber scripts the browser side of a probe run.
type fakeProber struct {
	hasContainer bool
	clicked      bool
}

func (f *fakeProber) Navigate(context.Context, string, string) error { return nil }
func (f *fakeProber) Has(_ context.Context, _ string) (bool, error)  { return f.hasContainer, nil }
func (f *fakeProber) ClickWithin(_ context.Context, _, _ string) error {
	f.clicked = true
	return nil
}
func (f *fakeProber) DismissConsent(context.Context)       {}
func (f *fakeProber) Sleep(context.Context, time.Duration) {}

type fakeWatcher struct {
	captures []dynamic.Capture
	cleared  bool
	stopped  bool
}

func (f *fakeWatcher) Clear()                      { f.cleared = true }
func (f *fakeWatcher) Len() int                    { return len(f.captures) }
func (f *fakeWatcher) Captures() []dynamic.Capture { return f.captures }
func (f *fakeWatcher) Stop()                       { f.stopped = true }

func probePlan() *models.ExtractionPlan {
	return &models.ExtractionPlan{
		URL: "https://fair.example.com/exhibitors",
		Target: models.ExtractionTarget{
			ItemContainerSelector: ".card",
			DetailButtonSelector:  "button.details",
		},
	}
}

func TestProbePicksBestCapture(t *testing.T) {
	sess := &fakeProber{hasContainer: true}
	obs := &fakeWatcher{captures: []dynamic.Capture{
		{URL: "https://www.googletagmanager.com/gtm.js", Body: []byte(`{"a":1}`)},
		{URL: "https://fair.example.com/api/exhibitors/42", Body: []byte(`{"name":"Acme","booth":"A1"}`)},
		{URL: "https://fair.example.com/api/misc", Body: []byte(`{"x":1}`)},
	}}

	probe := New(sess, obs, nil, Options{Timeout: 10 * time.Millisecond, SettleDelay: time.Millisecond})
	got, err := probe.Run(context.Background(), probePlan())
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://fair.example.com/api/exhibitors/42" {
		t.Errorf("picked %s", got.URL)
	}
	if !sess.clicked || !obs.cleared || !obs.stopped {
		t.Error("probe must clear before clicking and stop after")
	}
}

func TestProbeNoContainer(t *testing.T) {
	probe := New(&fakeProber{hasContainer: false}, &fakeWatcher{}, nil,
		Options{Timeout: 10 * time.Millisecond, SettleDelay: time.Millisecond})
	if _, err := probe.Run(context.Background(), probePlan()); err != ErrNoAPI {
		t.Fatalf("expected ErrNoAPI, got %v", err)
	}
}

func TestProbeOnlyNoiseCaptured(t *testing.T) {
	obs := &fakeWatcher{captures: []dynamic.Capture{
		{URL: "https://hotjar.com/api", Body: []byte(`{"name":"x"}`)},
	}}
	probe := New(&fakeProber{hasContainer: true}, obs, nil,
		Options{Timeout: 10 * time.Millisecond, SettleDelay: time.Millisecond})
	if _, err := probe.Run(context.Background(), probePlan()); err != ErrNoAPI {
		t.Fatalf("expected ErrNoAPI, got %v", err)
	}
}

func TestProbeAcceptsZeroScoreWinner(t *testing.T) {
	// An empty object at a bland URL scores exactly zero. Only negative
	// scores disqualify, so it must still be returned.
	obs := &fakeWatcher{captures: []dynamic.Capture{
		{URL: "https://fair.example.com/api/x", Body: []byte(`{}`)},
	}}
	probe := New(&fakeProber{hasContainer: true}, obs, nil,
		Options{Timeout: 10 * time.Millisecond, SettleDelay: time.Millisecond})
	got, err := probe.Run(context.Background(), probePlan())
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 0 || got.URL != "https://fair.example.com/api/x" {
		t.Errorf("got %+v", got)
	}
}
