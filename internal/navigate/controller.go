// internal/navigate/controller.go
package navigate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/utils"
)

// Default per-call timeouts
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultWaitTimeout       = 10 * time.Second
)

// Page is the part of a browser session the controller drives
type Page interface {
	Navigate(ctx context.Context, url string) (*browser.NavigationResult, error)
	Location(ctx context.Context) (*browser.Location, error)
	Inspect(ctx context.Context, l *browser.Locator) (*browser.ElementState, error)
}

// Controller moves a page between routes and waits for conditions on it
type Controller struct {
	page         Page
	baseURL      *url.URL
	logger       utils.Logger
	PollInterval time.Duration
}

// NewController creates a controller resolving relative URLs against baseURL.
// An empty baseURL only accepts absolute URLs.
func NewController(page Page, baseURL string, logger utils.Logger) (*Controller, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	c := &Controller{page: page, logger: logger, PollInterval: DefaultPollInterval}

	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.InvalidScenario("base URL %q must be absolute", baseURL)
		}
		c.baseURL = u
	}
	return c, nil
}

// Resolve turns a route such as "#/about" or "/admin" into an absolute URL
func (c *Controller) Resolve(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.InvalidScenario("invalid URL %q: %v", raw, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if c.baseURL == nil {
		return "", errors.InvalidScenario("relative URL %q needs a base URL", raw)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Goto navigates to raw and waits until the new document has loaded.
// It fails with NavigationTimeout when that takes longer than timeout or the
// browser reports a load error.
func (c *Controller) Goto(ctx context.Context, raw string, timeout time.Duration) error {
	target, err := c.Resolve(raw)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}

	start := time.Now()
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Debugf("navigating to %s", target)
	nav, err := c.page.Navigate(gctx, target)
	if err != nil {
		return errors.NavigationTimeout(target, time.Since(start), err)
	}

	err = Poll(gctx, c.PollInterval, func(ctx context.Context) (bool, error) {
		loc, err := c.page.Location(ctx)
		if err != nil {
			return false, err
		}
		if strings.HasPrefix(loc.Href, "chrome-error://") {
			return false, Permanent(fmt.Errorf("browser showed an error page for %s", target))
		}
		if loc.ReadyState != "complete" {
			return false, nil
		}
		return nav.SameDocument || loc.Marker != nav.Marker, nil
	})
	elapsed := time.Since(start)
	if err != nil {
		return errors.NavigationTimeout(target, elapsed, err)
	}

	c.logger.Debugf("loaded %s in %s", target, elapsed.Round(time.Millisecond))
	return nil
}

// WaitFor blocks until cond holds, failing with ConditionNotMet after timeout
func (c *Controller) WaitFor(ctx context.Context, cond Condition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	start := time.Now()

	if d, ok := cond.(*delayCondition); ok {
		return c.sleep(ctx, d.d)
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var observed string
	err := Poll(wctx, c.PollInterval, func(ctx context.Context) (bool, error) {
		met, obs, err := cond.Check(ctx, c.page)
		if obs != "" {
			observed = obs
		}
		return met, err
	})
	if errors.KindOf(err) == errors.KindInvalidScenario {
		return err
	}
	if err != nil {
		return errors.ConditionNotMet(cond.String(), observed, time.Since(start), err)
	}

	c.logger.Debugf("%s after %s", cond, time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
