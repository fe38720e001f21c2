package portal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Default browser parameters.
const (
	DefaultWidth         = 1280
	DefaultHeight        = 720
	DefaultActionTimeout = 20 * time.Second

	// idleQuietWindow is how long the network must stay quiet to count as idle.
	idleQuietWindow = 500 * time.Millisecond
	idleCheckEvery  = 100 * time.Millisecond
	// clickStartGrace is how long a wait after a click holds out for the
	// click's first request before treating the click as network-free.
	clickStartGrace = 3 * time.Second
)

// BrowserOptions defines how Chromium is launched.
type BrowserOptions struct {
	Headless bool

	// ProfileDir is the persistent user data directory. Cookies stored here
	// let later runs skip the venue and login gates.
	ProfileDir string

	// ExecPath optionally selects the Chromium binary.
	ExecPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// ActionTimeout bounds single actions such as Navigate, Fill or Click.
	ActionTimeout time.Duration
}

// Browser is a Chromium instance driven through chromedp. It is scoped to
// one run: Launch it, use it as a Page, and Close it on every path.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once

	timeout time.Duration
	idle    *idleTracker
}

var _ Page = (*Browser)(nil)

// Launch starts Chromium with a persistent profile. The browser lives
// until Close is called or parent is cancelled.
func Launch(parent context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.ProfileDir == "" {
		return nil, fmt.Errorf("portal: ProfileDir is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if err := os.MkdirAll(opts.ProfileDir, 0o700); err != nil {
		return nil, fmt.Errorf("portal: creating profile dir: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     opts.ActionTimeout,
		idle:        newIdleTracker(),
	}
	chromedp.ListenTarget(ctx, b.idle.observe)

	// The first Run starts the browser; it must use ctx itself, not a
	// derived timeout context, or the browser would die with the timeout.
	if err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	); err != nil {
		b.Close()
		return nil, fmt.Errorf("portal: launching browser: %w", err)
	}
	return b, nil
}

// Close shuts the browser down and waits for the process to exit.
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
	})
	return err
}

// run executes actions on the browser, bounded by timeout and by ctx.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, b.timeout, chromedp.Navigate(url))
}

func (b *Browser) Reload(ctx context.Context) error {
	return b.run(ctx, b.timeout, chromedp.Reload())
}

func (b *Browser) Visible(ctx context.Context, sel string, timeout time.Duration) bool {
	return b.WaitVisible(ctx, sel, timeout) == nil
}

func (b *Browser) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (b *Browser) Fill(ctx context.Context, sel, value string) error {
	return b.run(ctx, b.timeout,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

func (b *Browser) Click(ctx context.Context, sel string) error {
	b.idle.arm()
	return b.run(ctx, b.timeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

func (b *Browser) LinkCount(ctx context.Context, text string) (int, error) {
	var nodes []*cdp.Node
	err := b.run(ctx, b.timeout, chromedp.Nodes(linkXPath(text), &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	return len(nodes), err
}

func (b *Browser) ClickLink(ctx context.Context, text string) error {
	b.idle.arm()
	return b.run(ctx, b.timeout, chromedp.Click(linkXPath(text), chromedp.BySearch, chromedp.NodeVisible))
}

func (b *Browser) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return b.idle.wait(ctx, timeout)
}

func (b *Browser) Title(ctx context.Context) (string, error) {
	var title string
	err := b.run(ctx, b.timeout, chromedp.Title(&title))
	return title, err
}

func (b *Browser) HTML(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, b.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Screenshot captures the full page as PNG.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	err := b.run(ctx, b.timeout, chromedp.FullScreenshot(&png, 90))
	return png, err
}

// Control describes a form control found on the page.
type Control struct {
	Tag   string `json:"tag"`
	Type  string `json:"type,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
}

const controlsJS = `(() => {
	const inputs = Array.from(document.querySelectorAll('input')).map(i => ({tag: 'input', type: i.type, id: i.id, name: i.name, value: i.value}));
	const buttons = Array.from(document.querySelectorAll('button')).map(b => ({tag: 'button', id: b.id, text: b.innerText}));
	return inputs.concat(buttons);
})()`

// Controls lists the inputs and buttons on the current page. Password
// values are blanked.
func (b *Browser) Controls(ctx context.Context) ([]Control, error) {
	var out []Control
	if err := b.run(ctx, b.timeout, chromedp.Evaluate(controlsJS, &out)); err != nil {
		return nil, err
	}
	for i := range out {
		if strings.EqualFold(out[i].Type, "password") {
			out[i].Value = ""
		}
	}
	return out, nil
}

// linkXPath matches links whose text contains label.
func linkXPath(label string) string {
	return "//a[contains(normalize-space(.), " + xpathLiteral(label) + ")]"
}

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// idleTracker counts in-flight requests from network events.
//
// After arm, the network does not count as idle until some request or
// frame load has started, or startGrace has passed. Chrome announces a
// click's navigation only after the click command returns.
type idleTracker struct {
	mu         sync.Mutex
	inflight   map[network.RequestID]struct{}
	lastChange time.Time

	armed      bool
	armedAt    time.Time
	startGrace time.Duration
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight:   make(map[network.RequestID]struct{}),
		lastChange: time.Now(),
		startGrace: clickStartGrace,
	}
}

// arm marks the start of an action expected to hit the network.
func (t *idleTracker) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = true
	t.armedAt = time.Now()
}

func (t *idleTracker) observe(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	case *page.EventFrameStartedLoading:
	default:
		return
	}
	t.armed = false
	t.lastChange = time.Now()
}

func (t *idleTracker) idleFor() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		if time.Since(t.armedAt) < t.startGrace {
			return 0, false
		}
		t.armed = false
	}
	if len(t.inflight) > 0 {
		return 0, false
	}
	return time.Since(t.lastChange), true
}

func (t *idleTracker) wait(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(idleCheckEvery)
	defer tick.Stop()

	for {
		if d, ok := t.idleFor(); ok && d >= idleQuietWindow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("portal: network not idle after %s", timeout)
		case <-tick.C:
		}
	}
}
