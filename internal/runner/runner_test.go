// internal/runner/runner_test.go
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/intercept"
	"github.com/valpere/uiverify/internal/utils"
)

// fakePage is a scripted browser: every navigation loads at once and
// elements become visible after a number of inspections.
type fakePage struct {
	mu sync.Mutex

	href     string
	marker   int
	navErr   error
	html     string
	evalOut  interface{}
	shotErr  error
	elements map[string]*browser.ElementState
	revealAt map[string]int
	inspects map[string]int

	routes  []intercept.Mock
	clicks  []string
	fills   map[string]string
	actions []string
	closes  atomic.Int32
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: make(map[string]*browser.ElementState),
		revealAt: make(map[string]int),
		inspects: make(map[string]int),
		fills:    make(map[string]string),
	}
}

// show makes l resolve to a visible element; after n > 0 inspections only
func (p *fakePage) show(l *browser.Locator, attrs map[string]string, n int) {
	p.elements[l.String()] = &browser.ElementState{Found: true, Count: 1, Visible: true, Tag: "a", Attributes: attrs}
	if n > 0 {
		p.revealAt[l.String()] = n
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) (*browser.NavigationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navErr != nil {
		return nil, p.navErr
	}
	prev := fmt.Sprintf("doc-%d", p.marker)
	p.marker++
	p.href = url
	p.actions = append(p.actions, "goto "+url)
	return &browser.NavigationResult{URL: url, Marker: prev}, nil
}

func (p *fakePage) Location(ctx context.Context) (*browser.Location, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &browser.Location{Href: p.href, ReadyState: "complete", Marker: fmt.Sprintf("doc-%d", p.marker)}, nil
}

func (p *fakePage) Inspect(ctx context.Context, l *browser.Locator) (*browser.ElementState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := l.String()
	p.inspects[key]++

	st, ok := p.elements[key]
	if !ok {
		return &browser.ElementState{}, nil
	}
	if p.inspects[key] <= p.revealAt[key] {
		hidden := *st
		hidden.Visible = false
		return &hidden, nil
	}
	return st, nil
}

func (p *fakePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return []byte("\x89PNG page"), nil
}

func (p *fakePage) ScreenshotElement(ctx context.Context, l *browser.Locator) ([]byte, error) {
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return []byte("\x89PNG " + l.String()), nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) { return p.html, nil }

func (p *fakePage) Route(ctx context.Context, m intercept.Mock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.href != "" {
		return fmt.Errorf("route installed after navigation")
	}
	p.routes = append(p.routes, m)
	return nil
}

func (p *fakePage) RouteHits() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	hits := make(map[string]int64, len(p.routes))
	for _, m := range p.routes {
		hits[m.Pattern] = 1
	}
	return hits
}

func (p *fakePage) record(action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, action)
	return nil
}

func (p *fakePage) Click(ctx context.Context, l *browser.Locator) error {
	p.mu.Lock()
	p.clicks = append(p.clicks, l.String())
	p.mu.Unlock()
	return p.record("click " + l.String())
}

func (p *fakePage) Fill(ctx context.Context, l *browser.Locator, value string) error {
	p.mu.Lock()
	p.fills[l.String()] = value
	p.mu.Unlock()
	return p.record("fill " + l.String())
}

func (p *fakePage) Hover(ctx context.Context, l *browser.Locator) error {
	return p.record("hover " + l.String())
}

func (p *fakePage) Press(ctx context.Context, l *browser.Locator, key string) error {
	return p.record("press " + key)
}

func (p *fakePage) Evaluate(ctx context.Context, script string, out interface{}) error {
	if ptr, ok := out.(*interface{}); ok {
		*ptr = p.evalOut
	}
	return p.record("eval")
}

func (p *fakePage) ScrollIntoView(ctx context.Context, l *browser.Locator) error {
	return p.record("scroll " + l.String())
}

func (p *fakePage) ScrollTo(ctx context.Context, x, y int) error {
	return p.record(fmt.Sprintf("scroll %d,%d", x, y))
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error { return p.record("scroll bottom") }

func (p *fakePage) SetViewport(ctx context.Context, width, height int) error {
	return p.record(fmt.Sprintf("viewport %dx%d", width, height))
}

func (p *fakePage) EmulateColorScheme(ctx context.Context, scheme browser.ColorScheme) error {
	return p.record("scheme " + string(scheme))
}

func (p *fakePage) Close() error {
	p.closes.Add(1)
	return nil
}

func launcherFor(page *fakePage) Launcher {
	return func(context.Context, *browser.Config, utils.Logger) (Page, error) {
		return page, nil
	}
}

func newTestRunner(page *fakePage, opts ...Option) *Runner {
	return New(append([]Option{WithLauncher(launcherFor(page)), WithPollInterval(5 * time.Millisecond)}, opts...)...)
}

func scenario(t *testing.T, steps ...config.Step) *config.Scenario {
	t.Helper()
	sc := &config.Scenario{
		Name:         "fake run",
		BaseURL:      "http://localhost:3000",
		ArtifactsDir: t.TempDir(),
		Steps:        steps,
	}
	sc.Browser.Headless = true
	sc.Timeouts.Wait = 200 * time.Millisecond
	sc.Timeouts.Assert = 200 * time.Millisecond
	require.NoError(t, config.Prepare(sc))
	return sc
}

func TestRun_Passes(t *testing.T) {
	page := newFakePage()
	testClient := browser.Text("Test Client")
	book := browser.Role("link", "Book a Session")
	page.show(testClient, nil, 2)
	page.show(book, map[string]string{"href": "#/contact"}, 0)

	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/#/about"},
		config.Step{Action: config.ActionWait, Locator: testClient},
		config.Step{Action: config.ActionClick, Locator: book},
		config.Step{Action: config.ActionAssertAttribute, Locator: book, Attribute: "href", Value: "#/contact"},
		config.Step{Action: config.ActionScreenshot, Path: "verification/about.png"},
	)
	sc.Mocks = []config.MockConfig{{Mock: intercept.Mock{Pattern: "**/rest/v1/testimonials*", Status: 200, Body: "[]"}}}

	res := newTestRunner(page).Run(context.Background(), sc)

	require.True(t, res.Passed(), res.Error)
	assert.Equal(t, -1, res.FailedStep)
	assert.Len(t, res.Steps, 5)
	assert.Equal(t, int32(1), page.closes.Load())
	assert.Equal(t, "http://localhost:3000/#/about", page.href)
	assert.Equal(t, int64(1), res.MockHits["**/rest/v1/testimonials*"])

	require.Len(t, res.Artifacts, 1)
	assert.FileExists(t, res.Artifacts[0].Path)
	assert.Equal(t, filepath.Join(sc.ArtifactsDir, "verification", "about.png"), res.Artifacts[0].Path)

	assert.Equal(t, []State{
		StateIdle, StateSessionOpen, StateNavigating, StateWaiting,
		StateInteracting, StateAsserting, StateCapturing, StateClosed,
	}, res.Trace)
}

func TestRun_ConditionNotMet(t *testing.T) {
	page := newFakePage()
	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/#/"},
		config.Step{Action: config.ActionWait, Locator: browser.CSS("footer")},
		config.Step{Action: config.ActionScreenshot, Path: "verification/footer.png"},
	)

	res := newTestRunner(page).Run(context.Background(), sc)

	require.False(t, res.Passed())
	assert.Equal(t, 1, res.FailedStep)
	assert.Equal(t, "ConditionNotMet", res.ErrorKind)
	assert.Equal(t, errors.KindConditionNotMet, errors.KindOf(res.Err))
	require.Len(t, res.Steps, 3)
	assert.Equal(t, StatusFailed, res.Steps[1].Status)
	assert.Equal(t, StatusSkipped, res.Steps[2].Status)
	assert.Equal(t, int32(1), page.closes.Load())

	require.Len(t, res.Artifacts, 1, "error screenshot")
	assert.Equal(t, filepath.Join(sc.ArtifactsDir, sc.ErrorScreenshot), res.Artifacts[0].Path)
	assert.Equal(t, []State{StateIdle, StateSessionOpen, StateNavigating, StateWaiting, StateCapturing, StateClosed}, res.Trace)
}

func TestRun_ErrorScreenshotDisabled(t *testing.T) {
	page := newFakePage()
	sc := scenario(t, config.Step{Action: config.ActionAssertVisible, Locator: browser.CSS("dialog")})
	sc.ErrorScreenshot = "-"

	res := newTestRunner(page).Run(context.Background(), sc)

	require.False(t, res.Passed())
	assert.Equal(t, "AssertionMismatch", res.ErrorKind)
	assert.Empty(t, res.Artifacts)
	assert.NotContains(t, res.Trace, StateCapturing)
}

func TestRun_LaunchFailure(t *testing.T) {
	launch := func(context.Context, *browser.Config, utils.Logger) (Page, error) {
		return nil, fmt.Errorf("chrome not found")
	}
	sc := scenario(t, config.Step{Action: config.ActionGoto, URL: "/"})

	res := New(WithLauncher(launch)).Run(context.Background(), sc)

	require.False(t, res.Passed())
	assert.Equal(t, "LaunchFailure", res.ErrorKind)
	assert.Equal(t, -1, res.FailedStep)
	assert.Equal(t, []State{StateIdle, StateClosed}, res.Trace)
	assert.Contains(t, res.Summary(), "before the first step")
}

func TestRun_NavigationTimeout(t *testing.T) {
	page := newFakePage()
	page.navErr = fmt.Errorf("net::ERR_CONNECTION_REFUSED")
	sc := scenario(t, config.Step{Action: config.ActionGoto, URL: "/#/"})

	res := newTestRunner(page).Run(context.Background(), sc)

	require.False(t, res.Passed())
	assert.Equal(t, "NavigationTimeout", res.ErrorKind)
	assert.Contains(t, res.Error, "http://localhost:3000/#/")
}

func TestRun_AutoWaitBeforeInteraction(t *testing.T) {
	page := newFakePage()
	menu := browser.Label("Open main menu")
	page.show(menu, nil, 3)

	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/#/"},
		config.Step{Action: config.ActionClick, Locator: menu},
	)

	res := newTestRunner(page).Run(context.Background(), sc)

	require.True(t, res.Passed(), res.Error)
	assert.Equal(t, []string{menu.String()}, page.clicks)
	assert.GreaterOrEqual(t, page.inspects[menu.String()], 4)
}

func TestRun_Interactions(t *testing.T) {
	page := newFakePage()
	email := browser.Label("Email")
	heading := browser.Role("heading", "Book")
	page.show(email, nil, 0)
	page.show(heading, nil, 0)

	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/#/admin/login"},
		config.Step{Action: config.ActionFill, Locator: email, Value: "admin@example.com"},
		config.Step{Action: config.ActionPress, Key: "Enter"},
		config.Step{Action: config.ActionHover, Locator: email},
		config.Step{Action: config.ActionScroll, Locator: heading},
		config.Step{Action: config.ActionScroll, To: config.ScrollTop},
		config.Step{Action: config.ActionScroll, To: config.ScrollBottom},
		config.Step{Action: config.ActionViewport, Width: 375, Height: 667},
		config.Step{Action: config.ActionColorScheme, ColorScheme: browser.ColorSchemeLight},
		config.Step{Action: config.ActionLog, Message: "done"},
	)

	res := newTestRunner(page).Run(context.Background(), sc)

	require.True(t, res.Passed(), res.Error)
	assert.Equal(t, "admin@example.com", page.fills[email.String()])
	assert.Equal(t, []string{
		"goto http://localhost:3000/#/admin/login",
		"fill " + email.String(),
		"press Enter",
		"hover " + email.String(),
		"scroll " + heading.String(),
		"scroll 0,0",
		"scroll bottom",
		"viewport 375x667",
		"scheme light",
	}, page.actions)
}

func TestRun_EvalExpect(t *testing.T) {
	tests := []struct {
		name   string
		out    interface{}
		expect string
		pass   bool
	}{
		{"bool matches", false, "false", true},
		{"string matches", "dark", "dark", true},
		{"number matches", float64(3), "3", true},
		{"mismatch", true, "false", false},
		{"no expectation", "anything", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			page.evalOut = tt.out
			sc := scenario(t,
				config.Step{Action: config.ActionGoto, URL: "/"},
				config.Step{Action: config.ActionEval, Script: "document.documentElement.classList.contains('dark')", Expect: tt.expect},
			)

			res := newTestRunner(page).Run(context.Background(), sc)
			assert.Equal(t, tt.pass, res.Passed(), res.Error)
			if !tt.pass {
				assert.Equal(t, "AssertionMismatch", res.ErrorKind)
			}
		})
	}
}

func TestRun_ArtifactFailureIsWarning(t *testing.T) {
	page := newFakePage()
	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/"},
		config.Step{Action: config.ActionScreenshot, Path: "verification/same.png"},
		config.Step{Action: config.ActionScreenshot, Path: "verification/same.png"},
		config.Step{Action: config.ActionSnapshot, Path: "verification/page.html"},
	)
	page.html = "<html><body><p>ok</p></body></html>"

	res := newTestRunner(page).Run(context.Background(), sc)

	require.True(t, res.Passed(), res.Error)
	assert.Len(t, res.Artifacts, 2)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "already written")

	data, err := os.ReadFile(filepath.Join(sc.ArtifactsDir, "verification", "page.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>ok</p>")
}

func TestRun_Audit(t *testing.T) {
	page := newFakePage()
	page.html = `<html><body><img src="a.jpg"><a href="#/contact">Contact</a></body></html>`

	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/"},
		config.Step{Action: config.ActionAudit, Rules: []string{"img-alt"}},
	)
	res := newTestRunner(page).Run(context.Background(), sc)
	require.True(t, res.Passed(), res.Error)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "img-alt", res.Findings[0].Rule)

	page = newFakePage()
	page.html = `<html><body><img src="a.jpg"></body></html>`
	sc = scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/"},
		config.Step{Action: config.ActionAudit, FailOnFindings: true},
	)
	res = newTestRunner(page).Run(context.Background(), sc)
	require.False(t, res.Passed())
	assert.Equal(t, "AssertionMismatch", res.ErrorKind)
}

func TestRun_RunTimeout(t *testing.T) {
	page := newFakePage()
	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/"},
		config.Step{Action: config.ActionWait, Delay: time.Second},
	)
	sc.Timeouts.Run = 50 * time.Millisecond

	start := time.Now()
	res := newTestRunner(page).Run(context.Background(), sc)

	require.False(t, res.Passed())
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int32(1), page.closes.Load())
}

type countingMetrics struct {
	mu    sync.Mutex
	steps int
	runs  []string
	shots int
}

func (m *countingMetrics) RecordStep(string, string, string, time.Duration) {
	m.mu.Lock()
	m.steps++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordRun(_, status, _ string, _ time.Duration) {
	m.mu.Lock()
	m.runs = append(m.runs, status)
	m.mu.Unlock()
}

func (m *countingMetrics) RecordMockHits(string, map[string]int64) {}

func (m *countingMetrics) RecordArtifact(string, int) {
	m.mu.Lock()
	m.shots++
	m.mu.Unlock()
}

func TestRun_Metrics(t *testing.T) {
	metrics := &countingMetrics{}
	page := newFakePage()
	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/"},
		config.Step{Action: config.ActionScreenshot, Path: "shot.png"},
	)

	newTestRunner(page, WithMetrics(metrics)).Run(context.Background(), sc)

	assert.Equal(t, 2, metrics.steps)
	assert.Equal(t, []string{"passed"}, metrics.runs)
	assert.Equal(t, 1, metrics.shots)
}

func TestRunSuite(t *testing.T) {
	var launched atomic.Int32
	pages := make(chan *fakePage, 3)
	launch := func(context.Context, *browser.Config, utils.Logger) (Page, error) {
		launched.Add(1)
		p := newFakePage()
		pages <- p
		return p, nil
	}

	ok := scenario(t, config.Step{Action: config.ActionGoto, URL: "/"})
	failing := scenario(t, config.Step{Action: config.ActionAssertVisible, Locator: browser.CSS("missing")})
	failing.Name = "failing"
	failing.ErrorScreenshot = "-"
	other := scenario(t, config.Step{Action: config.ActionLog, Message: "hi"})
	other.Name = "other"

	r := New(WithLauncher(launch), WithPollInterval(5*time.Millisecond))
	results := r.RunSuite(context.Background(), []*config.Scenario{ok, failing, other}, 2)

	require.Len(t, results, 3)
	assert.True(t, results[0].Passed())
	assert.False(t, results[1].Passed())
	assert.Equal(t, "other", results[2].Scenario)
	assert.False(t, AllPassed(results))
	assert.Equal(t, int32(3), launched.Load())

	close(pages)
	for p := range pages {
		assert.Equal(t, int32(1), p.closes.Load())
	}
}

func TestExec(t *testing.T) {
	page := newFakePage()
	sc := scenario(t,
		config.Step{Action: config.ActionGoto, URL: "/"},
		config.Step{Action: config.ActionWait, Locator: browser.Text("Latest Words"), Timeout: 30 * time.Millisecond},
	)
	dir := t.TempDir()
	sc.Reports = []config.OutputConfig{{Format: "json", File: filepath.Join(dir, "runs.json")}}
	sc.Metrics.TextfilePath = filepath.Join(dir, "uiverify.prom")

	var out bytes.Buffer
	code := Exec(context.Background(), sc, &out, WithLauncher(launcherFor(page)), WithPollInterval(5*time.Millisecond))

	assert.Equal(t, errors.ExitCondition, code)
	assert.True(t, strings.HasPrefix(out.String(), "FAIL fake run at step 2 (wait)"), out.String())

	report, err := os.ReadFile(filepath.Join(dir, "runs.json"))
	require.NoError(t, err)
	assert.Contains(t, string(report), `"error_kind": "ConditionNotMet"`)

	prom, err := os.ReadFile(sc.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `uiverify_runs_total{error_kind="ConditionNotMet",scenario="fake run",status="failed"} 1`)
}

func TestExec_Passes(t *testing.T) {
	sc := scenario(t, config.Step{Action: config.ActionGoto, URL: "/"})

	var out bytes.Buffer
	code := Exec(context.Background(), sc, &out, WithLauncher(launcherFor(newFakePage())))

	assert.Equal(t, errors.ExitOK, code)
	assert.True(t, strings.HasPrefix(out.String(), "PASS fake run (1 steps"), out.String())
}

func TestExec_NilScenario(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, errors.ExitInvalidScenario, Exec(context.Background(), nil, &out))
}
