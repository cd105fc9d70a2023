// internal/discover/probe.go
package discover

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/engine/dynamic"
	"github.com/expo-works/scrape/pkg/models"
)

// ErrNoAPI means the probe completed but nothing captured looked like a
// directory data endpoint. Callers fall back to markup extraction.
var ErrNoAPI = errors.New("no plausible data API observed")

// Candidate is the probe's pick: the endpoint URL the detail click triggered
// and the response body it returned, for the planner to generalize.
type Candidate struct {
	URL   string
	Body  string
	Score int
}

// prober is the slice of a rendering session the probe drives. Satisfied by
// *dynamic.Session.
type prober interface {
	Navigate(ctx context.Context, url, waitSelector string) error
	Has(ctx context.Context, selector string) (bool, error)
	ClickWithin(ctx context.Context, containerSelector, buttonSelector string) error
	DismissConsent(ctx context.Context)
	Sleep(ctx context.Context, d time.Duration)
}

// watcher is the capture feed the probe reads. Satisfied by *dynamic.Observer.
type watcher interface {
	Clear()
	Len() int
	Captures() []dynamic.Capture
	Stop()
}

// Options bounds a probe run.
type Options struct {
	// Timeout caps the whole quiescence wait after the click.
	Timeout time.Duration

	// SettleDelay is the final grace period once traffic goes quiet.
	SettleDelay time.Duration
}

func (o *Options) fillDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 1500 * time.Millisecond
	}
}

// Probe clicks into one item and identifies the JSON endpoint that serves its
// detail data.
type Probe struct {
	sess   prober
	obs    watcher
	scorer *Scorer
	opts   Options
}

// New creates a probe over an open session and its JSON observer.
func New(sess prober, obs watcher, scorer *Scorer, opts Options) *Probe {
	opts.fillDefaults()
	if scorer == nil {
		scorer = NewScorer(DefaultWeights())
	}
	return &Probe{sess: sess, obs: obs, scorer: scorer, opts: opts}
}

// Run renders the listing, clicks the first item's detail control, and returns
// the best-scoring JSON response the click triggered.
func (p *Probe) Run(ctx context.Context, plan *models.ExtractionPlan) (*Candidate, error) {
	if err := p.sess.Navigate(ctx, plan.URL, plan.WaitSelector); err != nil {
		return nil, err
	}
	p.sess.DismissConsent(ctx)

	container := plan.Target.ItemContainerSelector
	present, err := p.sess.Has(ctx, container)
	if err != nil {
		return nil, err
	}
	if !present {
		log.Warn().Str("selector", container).Msg("No item container rendered, cannot probe")
		return nil, ErrNoAPI
	}

	button := plan.Target.DetailButtonSelector
	if button == "" {
		button = plan.Target.DetailLinkSelector
	}
	if button == "" {
		return nil, ErrNoAPI
	}

	// Only responses triggered by the click should be scored.
	p.obs.Clear()

	if err := p.sess.ClickWithin(ctx, container, button); err != nil {
		log.Warn().Err(err).Str("button", button).Msg("Detail control click failed")
		return nil, ErrNoAPI
	}

	p.awaitQuiescence(ctx)
	p.sess.Sleep(ctx, p.opts.SettleDelay)

	captures := p.obs.Captures()
	p.obs.Stop()

	log.Debug().Int("captures", len(captures)).Msg("Scoring captured responses")
	return p.best(captures)
}

// awaitQuiescence polls the capture count until it holds still, bounded by the
// probe timeout. The wire protocol has no network-idle signal, so stability of
// the observed count is the proxy.
func (p *Probe) awaitQuiescence(ctx context.Context) {
	deadline := time.Now().Add(p.opts.Timeout)
	const interval = 250 * time.Millisecond
	stableNeeded := 4

	last := p.obs.Len()
	stable := 0
	for time.Now().Before(deadline) && stable < stableNeeded {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		n := p.obs.Len()
		if n == last {
			stable++
		} else {
			stable = 0
			last = n
		}
	}
}

// best scores every capture and returns the winner. Only a negative score
// disqualifies a capture; a zero-scoring winner still counts.
func (p *Probe) best(captures []dynamic.Capture) (*Candidate, error) {
	var winner *Candidate
	for _, c := range captures {
		score := p.scorer.Score(c.URL, c.Body)
		log.Debug().Str("url", c.URL).Int("score", score).Msg("Scored response")
		if score < 0 {
			continue
		}
		if winner == nil || score > winner.Score {
			winner = &Candidate{URL: c.URL, Body: string(c.Body), Score: score}
		}
	}
	if winner == nil {
		return nil, ErrNoAPI
	}
	log.Info().Str("url", winner.URL).Int("score", winner.Score).Msg("Identified candidate data API")
	return winner, nil
}
