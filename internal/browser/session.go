// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/intercept"
	"github.com/valpere/uiverify/internal/utils"
)

// ErrSessionClosed is returned by page operations after Close
var ErrSessionClosed = errors.New("browser session is closed")

// markerVar holds the navigation token stamped on the current document
const markerVar = "window.__uiverifyNav"

// Session owns one browser process and one page
type Session struct {
	config      *Config
	logger      utils.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	stats       *Stats
	mocks       *intercept.Registry

	navSeq     atomic.Int64
	listenOnce sync.Once
	fetchMu    sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// NewSession launches a browser and opens its page. The browser lives until
// Close is called or ctx is done.
func NewSession(ctx context.Context, config *Config, logger utils.Logger) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.LaunchFailure(fmt.Errorf("invalid browser config: %w", err))
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	}

	if config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}

	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}

	for name, value := range config.Flags {
		opts = append(opts, chromedp.Flag(name, flagValue(value)))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Errorf),
		chromedp.WithLogf(logger.Debugf),
	)

	s := &Session{
		config:      config,
		logger:      logger,
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		stats:       &Stats{},
		mocks:       intercept.NewRegistry(),
	}

	if err := s.launch(ctx); err != nil {
		s.Close()
		return nil, errors.LaunchFailure(err)
	}

	logger.Debugf("browser session started (%dx%d, headless=%t)", config.ViewportWidth, config.ViewportHeight, config.Headless)
	return s, nil
}

// launch starts the browser. The first Run binds the browser's lifetime to
// its context, so it gets the session context and the timeout is enforced here.
func (s *Session) launch(ctx context.Context) error {
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(s.config.ViewportWidth), int64(s.config.ViewportHeight)),
	}
	if s.config.ColorScheme != ColorSchemeDefault {
		tasks = append(tasks, colorSchemeAction(s.config.ColorScheme))
	}

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, tasks)
	}()

	var timeout <-chan time.Time
	if s.config.LaunchTimeout > 0 {
		timer := time.NewTimer(s.config.LaunchTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-timeout:
		return fmt.Errorf("browser did not start within %s", s.config.LaunchTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func flagValue(v string) interface{} {
	switch strings.ToLower(v) {
	case "", "true":
		return true
	case "false":
		return false
	}
	return v
}

func colorSchemeAction(scheme ColorScheme) chromedp.Action {
	features := []*emulation.MediaFeature{{Name: "prefers-color-scheme", Value: string(scheme)}}
	return emulation.SetEmulatedMedia().WithFeatures(features)
}

// scoped derives a context that runs on the session's page but ends when
// the caller's context does.
func (s *Session) scoped(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if s.closed.Load() {
		return nil, nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		return runCtx, func() {
			stop()
			cancelDeadline()
			cancel()
		}, nil
	}

	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, done, err := s.scoped(ctx)
	if err != nil {
		return err
	}
	defer done()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) eval(ctx context.Context, expression string, out interface{}) error {
	s.stats.Evaluations.Add(1)

	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(expression).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("javascript exception: %s", describeException(exc))
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

func describeException(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return exc.Exception.Description
	}
	return exc.Text
}

// navigateResult is the Page.navigate response
type navigateResult struct {
	FrameID   string `json:"frameId"`
	LoaderID  string `json:"loaderId"`
	ErrorText string `json:"errorText"`
}

// Navigate issues a navigation without waiting for the load to finish.
// The current document is stamped first so Location can tell when a new
// document replaced it.
func (s *Session) Navigate(ctx context.Context, url string) (*NavigationResult, error) {
	start := time.Now()

	marker := fmt.Sprintf("nav-%d", s.navSeq.Add(1))
	quoted, _ := json.Marshal(marker)
	if err := s.eval(ctx, markerVar+" = "+string(quoted), nil); err != nil {
		s.logger.Debugf("could not stamp document before navigation: %v", err)
	}

	var res navigateResult
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("page load error %s", res.ErrorText)
		}
		return nil
	}))

	s.stats.recordNavigation(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	return &NavigationResult{
		URL:          url,
		SameDocument: res.LoaderID == "",
		Marker:       marker,
	}, nil
}

// Location reports the page address, its readiness and navigation marker
func (s *Session) Location(ctx context.Context) (*Location, error) {
	var loc Location
	expr := `({href: location.href, readyState: document.readyState, marker: String(` + markerVar + ` || "")})`
	if err := s.eval(ctx, expr, &loc); err != nil {
		return nil, fmt.Errorf("failed to read location: %w", err)
	}
	return &loc, nil
}

// Inspect resolves l and returns the state of the first match
func (s *Session) Inspect(ctx context.Context, l *Locator) (*ElementState, error) {
	return s.locate(ctx, l, "inspect", nil)
}

func (s *Session) locate(ctx context.Context, l *Locator, op string, arg interface{}) (*ElementState, error) {
	if err := l.Validate(); err != nil {
		return nil, errors.InvalidScenario("%v", err)
	}
	expr, err := locatorExpression(l, op, arg)
	if err != nil {
		return nil, err
	}

	var st ElementState
	if err := s.eval(ctx, expr, &st); err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", op, l, err)
	}
	if st.Error != "" {
		return nil, errors.InvalidScenario("invalid locator %s: %s", l, st.Error)
	}
	return &st, nil
}

func (s *Session) mustLocate(ctx context.Context, l *Locator, op string, arg interface{}) (*ElementState, error) {
	st, err := s.locate(ctx, l, op, arg)
	if err != nil {
		return nil, err
	}
	if !st.Found {
		return nil, fmt.Errorf("no element matches %s", l)
	}
	return st, nil
}

// Click clicks the element l resolves to
func (s *Session) Click(ctx context.Context, l *Locator) error {
	st, err := s.mustLocate(ctx, l, "scroll", nil)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.Click(refSelector(st.Ref), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", l, err)
	}
	return nil
}

// Fill replaces the value of a form control and fires input and change events
func (s *Session) Fill(ctx context.Context, l *Locator, value string) error {
	_, err := s.mustLocate(ctx, l, "fill", value)
	return err
}

// Hover moves the mouse over the center of the element l resolves to
func (s *Session) Hover(ctx context.Context, l *Locator) error {
	st, err := s.mustLocate(ctx, l, "scroll", nil)
	if err != nil {
		return err
	}
	x, y := st.Box.Center()
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to hover %s: %w", l, err)
	}
	return nil
}

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"tab":        kb.Tab,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"space":      " ",
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
}

// keySequence maps a key name such as "Escape" to the keys chromedp sends;
// anything else is typed literally.
func keySequence(key string) string {
	if k, ok := namedKeys[strings.ToLower(key)]; ok {
		return k
	}
	return key
}

// Press sends key to the element l resolves to, or to the focused element when l is nil
func (s *Session) Press(ctx context.Context, l *Locator, key string) error {
	if l != nil {
		if _, err := s.mustLocate(ctx, l, "focus", nil); err != nil {
			return err
		}
	}
	if err := s.run(ctx, chromedp.KeyEvent(keySequence(key))); err != nil {
		return fmt.Errorf("failed to press %s: %w", key, err)
	}
	return nil
}

// Evaluate runs script in the page and decodes its JSON-serializable result into out
func (s *Session) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := s.eval(ctx, script, out); err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// ScrollIntoView scrolls until the element l resolves to is centered
func (s *Session) ScrollIntoView(ctx context.Context, l *Locator) error {
	_, err := s.mustLocate(ctx, l, "scroll", nil)
	return err
}

// ScrollTo scrolls the window to the given offsets
func (s *Session) ScrollTo(ctx context.Context, x, y int) error {
	return s.eval(ctx, fmt.Sprintf("window.scrollTo(%d, %d)", x, y), nil)
}

// ScrollToBottom scrolls the window to the end of the document
func (s *Session) ScrollToBottom(ctx context.Context) error {
	return s.eval(ctx, "window.scrollTo(0, document.documentElement.scrollHeight)", nil)
}

// SetViewport resizes the page viewport
func (s *Session) SetViewport(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", width, height)
	}
	if err := s.run(ctx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return fmt.Errorf("viewport change failed: %w", err)
	}
	s.config.ViewportWidth = width
	s.config.ViewportHeight = height
	return nil
}

// EmulateColorScheme sets the prefers-color-scheme media feature
func (s *Session) EmulateColorScheme(ctx context.Context, scheme ColorScheme) error {
	if !scheme.Valid() {
		return fmt.Errorf("unsupported color scheme %q", scheme)
	}
	if err := s.run(ctx, colorSchemeAction(scheme)); err != nil {
		return fmt.Errorf("color scheme emulation failed: %w", err)
	}
	return nil
}

// Screenshot captures the viewport, or the whole scrollable page when fullPage is set, as PNG
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := s.run(ctx, action); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	s.stats.Screenshots.Add(1)
	return buf, nil
}

// ScreenshotElement captures the element l resolves to as PNG
func (s *Session) ScreenshotElement(ctx context.Context, l *Locator) ([]byte, error) {
	st, err := s.mustLocate(ctx, l, "scroll", nil)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := s.run(ctx, chromedp.Screenshot(refSelector(st.Ref), &buf, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("element screenshot of %s failed: %w", l, err)
	}
	s.stats.Screenshots.Add(1)
	return buf, nil
}

// HTML returns the serialized document
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Stats returns browser statistics
func (s *Session) Stats() *Stats {
	return s.stats
}

// Config returns the configuration the session runs with
func (s *Session) Config() *Config {
	return s.config
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close shuts the page and the browser process down. Only the first call
// does anything; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		s.cancel()
		s.allocCancel()
		s.logger.Debug("browser session closed")
	})
	return s.closeErr
}
