// internal/engine/dynamic/observe.go
package dynamic

import (
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/engine"
)

// Capture is one JSON-bodied network response seen by an Observer.
type Capture struct {
	URL  string
	Body []byte
}

// Observer records every JSON-bodied response the page receives. Bodies are
// retrieved asynchronously once loading finishes, so Len and Captures are the
// only views callers should use.
type Observer struct {
	mu       sync.Mutex
	active   bool
	pending  map[network.RequestID]string
	captures []Capture
}

// ObserveJSON attaches a response observer to the session and enables the
// network domain. The observer stays attached for the session's lifetime;
// use Stop to quit recording.
func (s *Session) ObserveJSON() (*Observer, error) {
	obs := &Observer{
		active:  true,
		pending: make(map[network.RequestID]string),
	}

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			if !obs.isActive() {
				return
			}
			mime := strings.ToLower(ev.Response.MimeType)
			if !strings.Contains(mime, "json") {
				return
			}
			obs.trackPending(ev.RequestID, ev.Response.URL)
		case *network.EventLoadingFinished:
			url, ok := obs.takePending(ev.RequestID)
			if !ok {
				return
			}
			// Body retrieval needs the target executor and must not block
			// the event dispatch goroutine.
			go func(id network.RequestID, url string) {
				c := chromedp.FromContext(s.ctx)
				if c == nil || c.Target == nil {
					return
				}
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(s.ctx, c.Target))
				if err != nil {
					log.Debug().Err(err).Str("url", truncate(url, 100)).Msg("Failed to read response body")
					return
				}
				obs.add(url, body)
			}(ev.RequestID, url)
		}
	})

	if err := chromedp.Run(s.ctx, network.Enable()); err != nil {
		return nil, engine.NewRenderError(s.currentURL, "observe", err)
	}
	return obs, nil
}

func (o *Observer) isActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Observer) trackPending(id network.RequestID, url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		o.pending[id] = url
	}
}

func (o *Observer) takePending(id network.RequestID) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	url, ok := o.pending[id]
	if ok {
		delete(o.pending, id)
	}
	return url, ok
}

func (o *Observer) add(url string, body []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return
	}
	o.captures = append(o.captures, Capture{URL: url, Body: body})
}

// Clear discards everything captured so far. The probe calls it right before
// clicking so only post-click responses are scored.
func (o *Observer) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.captures = nil
	o.pending = make(map[network.RequestID]string)
}

// Len returns the number of completed captures.
func (o *Observer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.captures)
}

// Captures returns a snapshot of completed captures.
func (o *Observer) Captures() []Capture {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Capture, len(o.captures))
	copy(out, o.captures)
	return out
}

// Stop ends recording; already-captured responses remain readable.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
