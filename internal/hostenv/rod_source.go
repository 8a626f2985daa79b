package hostenv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Options configure the browser attachment.
type Options struct {
	// DebuggerURL attaches to an already-running Chrome via its DevTools
	// websocket. Empty launches a fresh instance instead.
	DebuggerURL string
	Headless    bool
	// HostURLSubstring picks the tab to observe among open targets.
	HostURLSubstring string
	// PollInterval is the cadence of the URL+DOM snapshot loop.
	PollInterval time.Duration
	// MutationInterval is the cadence of the mutation-counter drain loop;
	// it is faster than the poll so result screens are noticed promptly.
	MutationInterval time.Duration
	Selectors        types.SelectorConfig
	// BodyURLFilters selects which response bodies are worth fetching.
	// A body is fetched when its URL contains any of these substrings.
	BodyURLFilters []string
}

// DefaultBodyURLFilters covers the game API, server-rendered game pages, and
// the map provider's panorama metadata endpoints.
func DefaultBodyURLFilters() []string {
	return []string{
		"/api/v3/games",
		"/api/v3/challenges",
		"/_next/data/",
		"SingleImageSearch",
		"GetMetadata",
	}
}

func (o Options) withDefaults() Options {
	if o.HostURLSubstring == "" {
		o.HostURLSubstring = "geoguessr.com"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MutationInterval <= 0 {
		o.MutationInterval = 250 * time.Millisecond
	}
	if o.Selectors == nil {
		o.Selectors = types.DefaultSelectorConfig()
	}
	if o.BodyURLFilters == nil {
		o.BodyURLFilters = DefaultBodyURLFilters()
	}
	return o
}

// RodSource observes one browser tab over CDP.
type RodSource struct {
	opts   Options
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

func NewRodSource(sink Sink, opts Options, logger *slog.Logger) *RodSource {
	return &RodSource{
		opts:   opts.withDefaults(),
		sink:   sink,
		logger: logger,
	}
}

// Run connects, attaches to the host tab, and drives the observation loops
// until ctx is cancelled.
func (r *RodSource) Run(ctx context.Context) error {
	if err := r.connect(ctx); err != nil {
		return err
	}

	page, err := r.attachPage(ctx)
	if err != nil {
		return err
	}

	r.startNetworkStream(ctx, page)
	go r.mutationLoop(ctx)
	return r.pollLoop(ctx)
}

// Close tears down the browser connection. A launched browser exits; an
// attached one only loses our websocket.
func (r *RodSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	r.page = nil
	return err
}

func (r *RodSource) connect(ctx context.Context) error {
	controlURL := r.opts.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(r.opts.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	r.mu.Lock()
	r.browser = browser
	r.mu.Unlock()
	r.logger.Info("browser connected", slog.Bool("attached", r.opts.DebuggerURL != ""))
	return nil
}

// attachPage waits for a tab whose URL matches the host substring. The user
// may not have the game open yet, so this retries until ctx cancellation.
func (r *RodSource) attachPage(ctx context.Context) (*rod.Page, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		if page := r.findHostPage(); page != nil {
			info, err := page.Info()
			if err == nil {
				r.logger.Info("attached to host tab", slog.String("url", info.URL))
			}
			r.mu.Lock()
			r.page = page
			r.mu.Unlock()
			return page, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *RodSource) findHostPage() *rod.Page {
	r.mu.Lock()
	browser := r.browser
	r.mu.Unlock()
	if browser == nil {
		return nil
	}

	pages, err := browser.Pages()
	if err != nil {
		return nil
	}
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, r.opts.HostURLSubstring) {
			return page
		}
	}
	return nil
}

// startNetworkStream subscribes to response lifecycle events and fetches the
// bodies that pass the URL filter once loading finishes. Fetching a body is a
// read of the browser's own buffer; the page never sees it.
func (r *RodSource) startNetworkStream(ctx context.Context, page *rod.Page) {
	_ = proto.NetworkEnable{}.Call(page)

	var mu sync.Mutex
	pending := make(map[proto.NetworkRequestID]string)

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil || !r.wantBody(ev.Response.URL) {
				return
			}
			mu.Lock()
			pending[ev.RequestID] = ev.Response.URL
			mu.Unlock()
		},
		func(ev *proto.NetworkLoadingFinished) {
			mu.Lock()
			url, ok := pending[ev.RequestID]
			delete(pending, ev.RequestID)
			mu.Unlock()
			if !ok {
				return
			}

			res, err := proto.NetworkGetResponseBody{RequestID: ev.RequestID}.Call(page)
			if err != nil {
				r.logger.Debug("response body unavailable",
					slog.String("url", url), slog.Any("error", err))
				return
			}
			body := []byte(res.Body)
			if res.Base64Encoded {
				decoded, err := base64.StdEncoding.DecodeString(res.Body)
				if err != nil {
					return
				}
				body = decoded
			}
			r.sink.OnNetworkBody(ctx, body)
		},
	)
	go wait()
}

func (r *RodSource) wantBody(url string) bool {
	for _, filter := range r.opts.BodyURLFilters {
		if strings.Contains(url, filter) {
			return true
		}
	}
	return false
}

func (r *RodSource) currentPage() *rod.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

// pollLoop delivers one URL plus DOM snapshot per interval. Snapshot failures
// (mid-navigation, tab closed) are skipped; the tab is re-acquired when lost.
func (r *RodSource) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		page := r.currentPage()
		info, err := page.Info()
		if err != nil {
			r.logger.Warn("host tab lost, re-attaching", slog.Any("error", err))
			page, err = r.attachPage(ctx)
			if err != nil {
				return err
			}
			r.startNetworkStream(ctx, page)
			continue
		}

		snap, err := r.snapshotDOM(ctx, page)
		if err != nil {
			continue
		}
		r.sink.Tick(ctx, types.URLSnapshot{Raw: info.URL}, snap)
	}
}

// mutationLoop drains a page-side mutation counter faster than the poll so
// the result screen is reacted to within a fraction of a second.
func (r *RodSource) mutationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.opts.MutationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		page := r.currentPage()

		// Idempotent; a navigation wipes the hook and this restores it.
		_, _ = page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS:      installMutationHookJS,
			ByValue: true,
		})

		res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS:      drainMutationsJS,
			ByValue: true,
		})
		if err != nil || res == nil || res.Value.Nil() {
			continue
		}
		if res.Value.Int() == 0 {
			continue
		}

		info, err := page.Info()
		if err != nil {
			continue
		}
		snap, err := r.snapshotDOM(ctx, page)
		if err != nil {
			continue
		}
		r.sink.OnDOMMutation(ctx, types.URLSnapshot{Raw: info.URL}, snap)
	}
}

// snapshotDOM evaluates the selector config in the page and returns one
// observation per concept: first visible match wins, falling back to the
// first hidden match so text is still delivered with Visible=false.
func (r *RodSource) snapshotDOM(ctx context.Context, page *rod.Page) (types.DOMSnapshot, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      snapshotJS,
		JSArgs:  []interface{}{r.opts.Selectors},
		ByValue: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("dom snapshot: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var decoded map[string]struct {
		Text    string `json:"text"`
		Visible bool   `json:"visible"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	snap := make(types.DOMSnapshot, len(decoded))
	for concept, obs := range decoded {
		snap[concept] = types.DOMObservation{Text: obs.Text, Visible: obs.Visible}
	}
	return snap, nil
}

const snapshotJS = `
(config) => {
	const out = {};
	for (const [concept, selectors] of Object.entries(config)) {
		let fallback = null;
		for (const sel of selectors) {
			let el;
			try { el = document.querySelector(sel); } catch (e) { continue; }
			if (!el) continue;
			const text = (el.innerText || '').trim();
			if (el.offsetParent !== null) {
				out[concept] = { text, visible: true };
				fallback = null;
				break;
			}
			if (!fallback) fallback = { text, visible: false };
		}
		if (fallback) out[concept] = fallback;
	}
	return out;
}
`

const installMutationHookJS = `
() => {
	if (window.__pdHooked) return true;
	window.__pdHooked = true;
	window.__pdMutations = 0;
	const obs = new MutationObserver(() => { window.__pdMutations++; });
	obs.observe(document.documentElement || document.body, { childList: true, subtree: true });
	return true;
}
`

const drainMutationsJS = `
() => {
	const n = window.__pdMutations || 0;
	window.__pdMutations = 0;
	return n;
}
`
