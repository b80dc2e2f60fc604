// Package runner executes verification scenarios against a browser session.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/uiverify/internal/artifact"
	"github.com/valpere/uiverify/internal/assert"
	"github.com/valpere/uiverify/internal/audit"
	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/intercept"
	"github.com/valpere/uiverify/internal/navigate"
	"github.com/valpere/uiverify/internal/utils"
)

// errorScreenshotTimeout bounds the diagnostic capture after a failure
const errorScreenshotTimeout = 10 * time.Second

// Page is the browser surface a run drives. *browser.Session implements it.
type Page interface {
	navigate.Page
	artifact.Page

	Route(ctx context.Context, m intercept.Mock) error
	RouteHits() map[string]int64
	Click(ctx context.Context, l *browser.Locator) error
	Fill(ctx context.Context, l *browser.Locator, value string) error
	Hover(ctx context.Context, l *browser.Locator) error
	Press(ctx context.Context, l *browser.Locator, key string) error
	Evaluate(ctx context.Context, script string, out interface{}) error
	ScrollIntoView(ctx context.Context, l *browser.Locator) error
	ScrollTo(ctx context.Context, x, y int) error
	ScrollToBottom(ctx context.Context) error
	SetViewport(ctx context.Context, width, height int) error
	EmulateColorScheme(ctx context.Context, scheme browser.ColorScheme) error
	Close() error
}

// Launcher opens the page a scenario runs on
type Launcher func(ctx context.Context, cfg *browser.Config, logger utils.Logger) (Page, error)

// ChromeLauncher starts a headless Chrome session
func ChromeLauncher(ctx context.Context, cfg *browser.Config, logger utils.Logger) (Page, error) {
	s, err := browser.NewSession(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Metrics receives run measurements. monitoring.Metrics implements it.
type Metrics interface {
	RecordStep(scenario, action, status string, d time.Duration)
	RecordRun(scenario, status, errorKind string, d time.Duration)
	RecordMockHits(scenario string, hits map[string]int64)
	RecordArtifact(kind string, bytes int)
}

type nopMetrics struct{}

func (nopMetrics) RecordStep(string, string, string, time.Duration) {}
func (nopMetrics) RecordRun(string, string, string, time.Duration) {}
func (nopMetrics) RecordMockHits(string, map[string]int64) {}
func (nopMetrics) RecordArtifact(string, int) {}

// Runner executes scenarios. It is safe for concurrent use; every Run opens its own page.
type Runner struct {
	launch       Launcher
	logger       utils.Logger
	metrics      Metrics
	pollInterval time.Duration
}

// Option configures a Runner
type Option func(*Runner)

// WithLauncher replaces the browser launcher
func WithLauncher(l Launcher) Option {
	return func(r *Runner) { r.launch = l }
}

// WithLogger sets the logger
func WithLogger(l utils.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records measurements of every run
func WithMetrics(m Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithPollInterval sets how often waits and assertions re-check the page
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}

// New creates a runner that launches Chrome unless another launcher is given
func New(opts ...Option) *Runner {
	r := &Runner{
		launch:       ChromeLauncher,
		logger:       utils.NewNopLogger(),
		metrics:      nopMetrics{},
		pollInterval: navigate.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = utils.NewNopLogger()
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	return r
}

// run is the state of one scenario execution
type run struct {
	sc      *config.Scenario
	page    Page
	logger  utils.Logger
	ctrl    *navigate.Controller
	eval    *assert.Evaluator
	capture *artifact.Capturer
	states  *stateMachine
	result  *Result
}

// Run executes sc from Idle to Closed. The page is closed exactly once on every
// path; a failure is recorded in the result, never returned.
func (r *Runner) Run(ctx context.Context, sc *config.Scenario) *Result {
	res := newResult(sc.Name)
	states := newStateMachine()
	logger := r.logger.WithField("scenario", sc.Name)

	defer func() {
		res.Duration = time.Since(res.StartedAt)
		res.Trace = states.history()
		r.metrics.RecordRun(sc.Name, string(res.Status), res.ErrorKind, res.Duration)
		for _, a := range res.Artifacts {
			r.metrics.RecordArtifact(a.Kind, a.Bytes)
		}
		if len(res.MockHits) > 0 {
			r.metrics.RecordMockHits(sc.Name, res.MockHits)
		}
	}()

	if sc.Timeouts.Run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeouts.Run)
		defer cancel()
	}

	logger.Infof("starting %s (%d steps)", sc.Name, len(sc.Steps))

	browserCfg := sc.Browser
	page, err := r.launch(ctx, &browserCfg, logger.WithField("component", "browser"))
	if err != nil {
		if errors.KindOf(err) != errors.KindLaunchFailure {
			err = errors.LaunchFailure(err)
		}
		res.fail(-1, err)
		_ = states.to(StateClosed)
		logger.Errorf("%v", err)
		return res
	}
	_ = states.to(StateSessionOpen)

	x := &run{
		sc:      sc,
		page:    page,
		logger:  logger,
		states:  states,
		result:  res,
		capture: artifact.NewCapturer(page, sc.ArtifactsDir, logger),
	}
	defer x.close()

	if err := x.open(ctx, r.pollInterval); err != nil {
		res.fail(-1, err)
		x.errorScreenshot(ctx)
		return res
	}

	for i, step := range sc.Steps {
		sr := StepResult{Index: i, Name: step.Description(), Action: step.Action, Status: StatusPassed}
		start := time.Now()

		err := x.step(ctx, step)
		sr.Duration = time.Since(start)
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
		}
		res.Steps = append(res.Steps, sr)
		r.metrics.RecordStep(sc.Name, string(step.Action), string(sr.Status), sr.Duration)

		if err != nil {
			logger.Errorf("step %d/%d %s failed after %s: %v", i+1, len(sc.Steps), sr.Name, sr.Duration.Round(time.Millisecond), err)
			res.fail(i, err)
			for j := i + 1; j < len(sc.Steps); j++ {
				res.Steps = append(res.Steps, StepResult{Index: j, Name: sc.Steps[j].Description(), Action: sc.Steps[j].Action, Status: StatusSkipped})
			}
			x.errorScreenshot(ctx)
			return res
		}
		logger.Infof("step %d/%d %s ok (%s)", i+1, len(sc.Steps), sr.Name, sr.Duration.Round(time.Millisecond))
	}

	logger.Infof("%s passed", sc.Name)
	return res
}

// open installs the scenario's mocks before any navigation and builds the helpers
func (x *run) open(ctx context.Context, poll time.Duration) error {
	for _, mc := range x.sc.Mocks {
		m, err := mc.Resolve(x.sc.SourceDir)
		if err != nil {
			return err
		}
		if err := x.page.Route(ctx, m); err != nil {
			return fmt.Errorf("failed to install mock %s: %w", m.Pattern, err)
		}
		x.logger.Debugf("mocking %s with status %d", m.Pattern, m.Status)
	}

	ctrl, err := navigate.NewController(x.page, x.sc.BaseURL, x.logger)
	if err != nil {
		return err
	}
	ctrl.PollInterval = poll
	x.ctrl = ctrl

	x.eval = assert.NewEvaluator(x.page, x.sc.Timeouts.Assert, x.logger)
	x.eval.PollInterval = poll
	return nil
}

func (x *run) waitTimeout(step config.Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return x.sc.Timeouts.Wait
}

// step executes one step in the state its action belongs to
func (x *run) step(ctx context.Context, step config.Step) error {
	if err := x.states.to(stateFor(step.Action)); err != nil {
		return err
	}

	switch step.Action {
	case config.ActionGoto:
		timeout := step.Timeout
		if timeout <= 0 {
			timeout = x.sc.Timeouts.Navigation
		}
		return x.ctrl.Goto(ctx, step.URL, timeout)

	case config.ActionWait:
		cond, err := waitCondition(step)
		if err != nil {
			return err
		}
		return x.ctrl.WaitFor(ctx, cond, x.waitTimeout(step))

	case config.ActionClick:
		return x.interact(ctx, step, func(ctx context.Context) error { return x.page.Click(ctx, step.Locator) })

	case config.ActionFill:
		return x.interact(ctx, step, func(ctx context.Context) error { return x.page.Fill(ctx, step.Locator, step.Value) })

	case config.ActionHover:
		return x.interact(ctx, step, func(ctx context.Context) error { return x.page.Hover(ctx, step.Locator) })

	case config.ActionPress:
		return x.interact(ctx, step, func(ctx context.Context) error { return x.page.Press(ctx, step.Locator, step.Key) })

	case config.ActionEval:
		return x.evaluate(ctx, step)

	case config.ActionScroll:
		if step.Locator != nil {
			return x.interact(ctx, step, func(ctx context.Context) error { return x.page.ScrollIntoView(ctx, step.Locator) })
		}
		return x.bounded(ctx, step, func(ctx context.Context) error {
			if step.To == config.ScrollTop {
				return x.page.ScrollTo(ctx, 0, 0)
			}
			return x.page.ScrollToBottom(ctx)
		})

	case config.ActionViewport:
		return x.bounded(ctx, step, func(ctx context.Context) error { return x.page.SetViewport(ctx, step.Width, step.Height) })

	case config.ActionColorScheme:
		return x.bounded(ctx, step, func(ctx context.Context) error { return x.page.EmulateColorScheme(ctx, step.ColorScheme) })

	case config.ActionAssertVisible:
		return x.eval.AssertVisible(ctx, step.Locator, step.Timeout)

	case config.ActionAssertHidden:
		return x.eval.AssertHidden(ctx, step.Locator, step.Timeout)

	case config.ActionAssertAttribute:
		return x.eval.Evaluate(ctx, assert.Expectation{
			Kind:      assert.KindAttribute,
			Locator:   step.Locator,
			Attribute: step.Attribute,
			Expected:  step.Value,
			Prefix:    step.Prefix,
			Timeout:   step.Timeout,
		})

	case config.ActionAssertNoAttribute:
		return x.eval.AssertNoAttribute(ctx, step.Locator, step.Attribute, step.Value, step.Timeout)

	case config.ActionAssertText:
		return x.eval.AssertText(ctx, step.Locator, step.Text, step.Exact, step.Timeout)

	case config.ActionScreenshot:
		return x.screenshot(ctx, step)

	case config.ActionSnapshot:
		return x.snapshot(ctx, step)

	case config.ActionAudit:
		return x.audit(ctx, step)

	case config.ActionLog:
		x.logger.Infof("%s", step.Message)
		return nil
	}

	return errors.InvalidScenario("unknown action %q", step.Action)
}

func waitCondition(step config.Step) (navigate.Condition, error) {
	switch {
	case step.Locator != nil && step.State == config.StateHidden:
		return navigate.Hidden(step.Locator), nil
	case step.Locator != nil:
		return navigate.Visible(step.Locator), nil
	case step.URL != "":
		return navigate.URLMatches(step.URL)
	case step.Delay > 0:
		return navigate.Delay(step.Delay), nil
	}
	return nil, errors.InvalidScenario("wait needs a locator, url or delay")
}

// interact waits for the step's locator to be visible, then runs fn within the wait timeout
func (x *run) interact(ctx context.Context, step config.Step, fn func(context.Context) error) error {
	if step.Locator != nil {
		if err := x.ctrl.WaitFor(ctx, navigate.Visible(step.Locator), x.waitTimeout(step)); err != nil {
			return err
		}
	}
	return x.bounded(ctx, step, fn)
}

func (x *run) bounded(ctx context.Context, step config.Step, fn func(context.Context) error) error {
	bctx, cancel := context.WithTimeout(ctx, x.waitTimeout(step))
	defer cancel()
	return fn(bctx)
}

func (x *run) evaluate(ctx context.Context, step config.Step) error {
	var out interface{}
	if err := x.bounded(ctx, step, func(ctx context.Context) error { return x.page.Evaluate(ctx, step.Script, &out) }); err != nil {
		return err
	}
	if step.Expect == "" {
		return nil
	}
	got := stringify(out)
	if got != step.Expect {
		return errors.AssertionMismatch("script "+summarize(step.Script), step.Expect, got, nil)
	}
	return nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

func summarize(script string) string {
	s := strings.Join(strings.Fields(script), " ")
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return fmt.Sprintf("%q", s)
}

func (x *run) screenshot(ctx context.Context, step config.Step) error {
	target := artifact.Viewport()
	switch {
	case step.Locator != nil:
		if err := x.ctrl.WaitFor(ctx, navigate.Visible(step.Locator), x.waitTimeout(step)); err != nil {
			return err
		}
		target = artifact.Element(step.Locator)
	case step.IsFullPage():
		target = artifact.FullPage()
	}

	var a *artifact.Artifact
	err := x.bounded(ctx, step, func(ctx context.Context) error {
		var err error
		a, err = x.capture.Capture(ctx, target, step.Path)
		return err
	})
	return x.recordArtifact(a, err)
}

func (x *run) snapshot(ctx context.Context, step config.Step) error {
	var a *artifact.Artifact
	err := x.bounded(ctx, step, func(ctx context.Context) error {
		var err error
		a, err = x.capture.CaptureHTML(ctx, step.Path)
		return err
	})
	return x.recordArtifact(a, err)
}

// recordArtifact keeps written artifacts; write failures are warnings and never fail the run
func (x *run) recordArtifact(a *artifact.Artifact, err error) error {
	if err != nil {
		if errors.KindOf(err) == errors.KindArtifactWriteFailure {
			x.logger.Warnf("%v", err)
			x.result.warn("%v", err)
			return nil
		}
		return err
	}
	x.result.Artifacts = append(x.result.Artifacts, *a)
	return nil
}

func (x *run) audit(ctx context.Context, step config.Step) error {
	auditor, err := audit.New(step.Rules...)
	if err != nil {
		return errors.InvalidScenario("%v", err)
	}

	var html string
	if err := x.bounded(ctx, step, func(ctx context.Context) error {
		var err error
		html, err = x.page.HTML(ctx)
		return err
	}); err != nil {
		return err
	}

	findings, err := auditor.Run(html)
	if err != nil {
		return err
	}
	for _, f := range findings {
		x.logger.Warnf("audit: %s", f)
	}
	x.result.Findings = append(x.result.Findings, findings...)

	if step.FailOnFindings && len(findings) > 0 {
		return errors.AssertionMismatch("document", "no accessibility findings",
			fmt.Sprintf("%d findings, first: %s", len(findings), findings[0]), nil)
	}
	return nil
}

// errorScreenshot captures the page after a failure when the session is still usable
func (x *run) errorScreenshot(ctx context.Context) {
	if !x.sc.ErrorScreenshotEnabled() {
		return
	}
	if err := x.states.to(StateCapturing); err != nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorScreenshotTimeout)
	defer cancel()

	a, err := x.capture.Capture(cctx, artifact.Viewport(), x.sc.ErrorScreenshot)
	if err != nil {
		x.logger.Warnf("error screenshot failed: %v", err)
		x.result.warn("error screenshot failed: %v", err)
		return
	}
	x.result.Artifacts = append(x.result.Artifacts, *a)
}

// close tears the page down and moves the run to Closed
func (x *run) close() {
	x.result.MockHits = x.page.RouteHits()
	_ = x.states.to(StateClosed)
	if err := x.page.Close(); err != nil {
		x.logger.Warnf("failed to close browser: %v", err)
		x.result.warn("failed to close browser: %v", err)
	}
}
