// internal/engine/dynamic/session.go
package dynamic

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/internal/engine"
)

// Options configures a rendering session.
type Options struct {
	Headless  bool
	UserAgent string
	Proxy     string
	// RemoteDebuggerURL connects to a remote DevTools endpoint instead of
	// launching a local browser.
	RemoteDebuggerURL string
	// NavTimeout bounds a single navigation; WaitTimeout bounds a
	// wait-for-selector; OpTimeout bounds everything else.
	NavTimeout  time.Duration
	WaitTimeout time.Duration
	OpTimeout   time.Duration
}

func (o *Options) fillDefaults() {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 60 * time.Second
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 15 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 15 * time.Second
	}
}

// Session owns one browser process (or remote connection) for the duration of
// a crawl. It is created by the top-level scrape call, passed into every
// sub-routine that renders, and torn down deterministically via Close.
type Session struct {
	opts        Options
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	currentURL  string
}

var _ engine.Browser = (*Session)(nil)

// NewSession launches (or connects to) the rendering driver.
func NewSession(opts Options) (*Session, error) {
	opts.fillDefaults()

	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if opts.RemoteDebuggerURL != "" {
		log.Info().Str("endpoint", opts.RemoteDebuggerURL).Msg("Connecting to remote browser")
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteDebuggerURL)
	} else {
		allocOpts := []chromedp.ExecAllocatorOption{
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-background-networking", true),
			chromedp.Flag("disable-breakpad", true),
			chromedp.Flag("disable-client-side-phishing-detection", true),
			chromedp.Flag("disable-default-apps", true),
			chromedp.Flag("disable-hang-monitor", true),
			chromedp.Flag("disable-prompt-on-repost", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
			chromedp.Flag("disable-sync", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("window-size", "1920,1080"),
			chromedp.UserAgent(opts.UserAgent),
		}
		if path := FindChrome(); path != "" {
			allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
		}
		if opts.Headless {
			allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag("headless", false))
		}
		if opts.Proxy != "" {
			allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Warm up so launch failures surface here, not mid-crawl
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start rendering session: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Msg("Rendering session ready")

	return &Session{
		opts:        opts,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      browserCancel,
	}, nil
}

// Close tears the session down. Safe to call once per session, including after
// mid-crawl errors.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
	log.Debug().Msg("Rendering session closed")
}

// run executes chromedp actions bounded by timeout, honoring caller cancellation.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, tcancel := context.WithTimeout(s.ctx, timeout)
	defer tcancel()
	stop := context.AfterFunc(ctx, tcancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

// Navigate opens the URL, waiting for waitSelector when given and briefly for
// initial scripts otherwise.
func (s *Session) Navigate(ctx context.Context, url, waitSelector string) error {
	log.Debug().Str("url", url).Str("wait_selector", waitSelector).Msg("Rendering page")

	if err := s.run(ctx, s.opts.NavTimeout, chromedp.Navigate(url)); err != nil {
		return engine.NewRenderError(url, "navigate", err)
	}
	s.currentURL = url

	if waitSelector != "" {
		if err := s.run(ctx, s.opts.WaitTimeout, chromedp.WaitVisible(waitSelector, chromedp.ByQuery)); err != nil {
			return engine.NewRenderError(url, "wait", err)
		}
		return nil
	}

	// No wait selector: give client-side rendering a moment to settle
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Sleep(3*time.Second)); err != nil {
		return engine.NewRenderError(url, "wait", err)
	}
	return nil
}

// Markup returns the serialized current document.
func (s *Session) Markup(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", engine.NewRenderError(s.currentURL, "markup", err)
	}
	return html, nil
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Location(&loc)); err != nil {
		return "", engine.NewRenderError(s.currentURL, "markup", err)
	}
	return loc, nil
}

// ClickVisible clicks the first visible match via a script-level click, which
// stays reliable when overlays intercept pointer events.
func (s *Session) ClickVisible(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		if (!(r.width || r.height)) return false;
		if (getComputedStyle(el).visibility === 'hidden') return false;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	})()`, selector)
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, engine.NewRenderError(s.currentURL, "click", err)
	}
	return clicked, nil
}

// WaitFor blocks until an element matching selector is visible, bounded by the
// wait timeout.
func (s *Session) WaitFor(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.opts.WaitTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return engine.NewRenderError(s.currentURL, "wait", err)
	}
	return nil
}

// Count returns the number of elements matching selector.
func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Evaluate(script, &n)); err != nil {
		return 0, engine.NewRenderError(s.currentURL, "click", err)
	}
	return n, nil
}

// ClickNth clicks the i-th element matching selector.
func (s *Session) ClickNth(ctx context.Context, selector string, i int) error {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%q);
		if (els.length <= %d) return false;
		els[%d].scrollIntoView({block: 'center'});
		els[%d].click();
		return true;
	})()`, selector, i, i, i)
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return engine.NewRenderError(s.currentURL, "click", err)
	}
	if !clicked {
		return engine.NewRenderError(s.currentURL, "click", fmt.Errorf("no element %d for selector %q", i, selector))
	}
	return nil
}

// ScrollToBottom scrolls to the document bottom and returns the new scroll height.
func (s *Session) ScrollToBottom(ctx context.Context) (int64, error) {
	var height int64
	script := `(() => {
		window.scrollTo(0, document.body.scrollHeight);
		return document.body.scrollHeight;
	})()`
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Evaluate(script, &height)); err != nil {
		return 0, engine.NewRenderError(s.currentURL, "scroll", err)
	}
	return height, nil
}

// ClickWithin performs a script-level click on the first element matching
// buttonSelector inside the first containerSelector match.
func (s *Session) ClickWithin(ctx context.Context, containerSelector, buttonSelector string) error {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const container = document.querySelector(%q);
		if (!container) return false;
		const btn = container.querySelector(%q);
		if (!btn) return false;
		btn.scrollIntoView({block: 'center'});
		btn.click();
		return true;
	})()`, containerSelector, buttonSelector)
	if err := s.run(ctx, s.opts.OpTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return engine.NewRenderError(s.currentURL, "click", err)
	}
	if !clicked {
		return engine.NewRenderError(s.currentURL, "click",
			fmt.Errorf("no %q inside %q", buttonSelector, containerSelector))
	}
	return nil
}

// Has reports whether at least one element matches selector.
func (s *Session) Has(ctx context.Context, selector string) (bool, error) {
	n, err := s.Count(ctx, selector)
	return n > 0, err
}

// Sleep pauses inside the browser context, bounded like any other op.
func (s *Session) Sleep(ctx context.Context, d time.Duration) {
	_ = s.run(ctx, d+time.Second, chromedp.Sleep(d))
}

// ConsentSelectors are probed in order; the first visible match is clicked.
// Cookie/consent overlays otherwise swallow the probe's detail-button click.
var ConsentSelectors = []string{
	"[class*='cookie'] [class*='accept']",
	"[class*='cookie'] [class*='agree']",
	"[class*='consent'] button",
	"#onetrust-accept-btn-handler",
	".cc-accept",
	"[data-testid='uc-accept-all-button']",
	"button[id*='accept']",
}

// DismissConsent clicks the first visible consent control, if any.
func (s *Session) DismissConsent(ctx context.Context) {
	for _, sel := range ConsentSelectors {
		clicked, err := s.ClickVisible(ctx, sel)
		if err != nil {
			continue
		}
		if clicked {
			log.Debug().Str("selector", sel).Msg("Dismissed consent overlay")
			s.Sleep(ctx, time.Second)
			return
		}
	}
}
