package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/logger"
)

// DefaultActionTimeout bounds every single browser round trip.
const DefaultActionTimeout = 15 * time.Second

// BrowserOptions configures the Chrome instance driven by Browser.
type BrowserOptions struct {
	// Headless hides the window. Applying usually needs a visible, logged-in profile.
	Headless bool
	// UserDataDir points Chrome at an existing profile so the session is already signed in.
	UserDataDir string
	// ExecPath overrides the Chrome binary.
	ExecPath string
	// ActionTimeout bounds each browser action.
	ActionTimeout time.Duration
	Markers       Markers
	Logger        *zap.SugaredLogger
}

// Browser is a live View backed by chromedp.
type Browser struct {
	ctx     context.Context
	markers Markers
	timeout time.Duration
	log     *zap.SugaredLogger
}

func allocatorOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// NewBrowser starts Chrome and opens one tab. The returned cancel func closes the browser.
// Requires Chrome/Chromium to be installed on the system.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, context.CancelFunc, error) {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.Markers.Selectors == nil {
		opts.Markers = DefaultMarkers()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Logger
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// The first Run launches the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, &Error{Op: "launch", Message: "failed to start browser", Cause: err}
	}

	opts.Logger.Infow("browser started", "headless", opts.Headless, "user_data_dir", opts.UserDataDir)
	return &Browser{
		ctx:     tabCtx,
		markers: opts.Markers,
		timeout: opts.ActionTimeout,
		log:     opts.Logger,
	}, cancel, nil
}

// run executes actions on the tab, bounded by the action timeout and by ctx.
func (b *Browser) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return &Error{Op: op, Message: "browser action failed", Cause: err}
	}
	return nil
}

// Location returns the current tab URL.
func (b *Browser) Location(ctx context.Context) (string, error) {
	var url string
	if err := b.run(ctx, "location", chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Navigate loads url and waits for the body to be ready.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.log.Debugw("navigating", "url", url)
	return b.run(ctx, "navigate", chromedp.Navigate(url), chromedp.WaitReady("body"))
}

// FindByRole queries the role's selector under scope without waiting for matches.
func (b *Browser) FindByRole(ctx context.Context, scope Node, role Role) ([]Node, error) {
	sel := b.markers.Selector(role)
	if sel == "" {
		return nil, nil
	}
	return b.queryAll(ctx, scope, sel)
}

// FindByLabelSubstring queries elements whose aria-label contains label.
func (b *Browser) FindByLabelSubstring(ctx context.Context, scope Node, label string) ([]Node, error) {
	if label == "" {
		return nil, nil
	}
	return b.queryAll(ctx, scope, labelSelector(label))
}

// FindByLabel queries buttons whose aria-label equals label.
func (b *Browser) FindByLabel(ctx context.Context, scope Node, label string) ([]Node, error) {
	if label == "" {
		return nil, nil
	}
	return b.queryAll(ctx, scope, buttonLabelSelector(label))
}

func (b *Browser) queryAll(ctx context.Context, scope Node, sel string) ([]Node, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if scope != nil {
		parent, ok := scope.(*cdp.Node)
		if !ok || parent == nil {
			return nil, foreignNode("find", scope)
		}
		opts = append(opts, chromedp.FromNode(parent))
	}

	var found []*cdp.Node
	if err := b.run(ctx, "find", chromedp.Nodes(sel, &found, opts...)); err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(found))
	for _, n := range found {
		out = append(out, n)
	}
	return out, nil
}

// TextContains reports whether the text content under scope contains text.
func (b *Browser) TextContains(ctx context.Context, scope Node, text string) (bool, error) {
	var content string
	var action chromedp.Action
	if scope == nil {
		action = chromedp.TextContent("body", &content, chromedp.ByQuery)
	} else {
		n, ok := scope.(*cdp.Node)
		if !ok || n == nil {
			return false, foreignNode("text", scope)
		}
		action = chromedp.TextContent([]cdp.NodeID{n.NodeID}, &content, chromedp.ByNodeID)
	}
	if err := b.run(ctx, "text", action); err != nil {
		return false, err
	}
	return strings.Contains(normalizeText(content), text), nil
}

// Text returns the normalized text content of n.
func (b *Browser) Text(ctx context.Context, n Node) (string, error) {
	node, ok := n.(*cdp.Node)
	if !ok || node == nil {
		return "", foreignNode("text", n)
	}
	var content string
	if err := b.run(ctx, "text", chromedp.TextContent([]cdp.NodeID{node.NodeID}, &content, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return normalizeText(content), nil
}

// Click scrolls n into view and clicks its center.
func (b *Browser) Click(ctx context.Context, n Node) error {
	node, ok := n.(*cdp.Node)
	if !ok || node == nil {
		return foreignNode("click", n)
	}
	return b.run(ctx, "click", chromedp.MouseClickNode(node))
}

// ScrollToBottom scrolls the window to the end of the document.
func (b *Browser) ScrollToBottom(ctx context.Context) error {
	return b.run(ctx, "scroll", chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// HTML returns the rendered document.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, "snapshot", chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// RenderHTML renders a page in a short-lived browser and returns the rendered HTML.
// settle is waited after the body is ready so client-side rendering can finish.
func RenderHTML(ctx context.Context, url string, opts BrowserOptions, timeout, settle time.Duration) (string, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	log.Infow("rendering page", "url", url)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	log.Infow("rendered page", "bytes", len(html))
	return html, nil
}
