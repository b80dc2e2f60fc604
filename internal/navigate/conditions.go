// internal/navigate/conditions.go
package navigate

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/utils"
)

// Condition is something WaitFor blocks on
type Condition interface {
	// Check evaluates the condition once and returns what it saw
	Check(ctx context.Context, page Page) (met bool, observed string, err error)
	String() string
}

type elementCondition struct {
	locator *browser.Locator
	hidden  bool
}

// Visible holds once an element matching l is rendered
func Visible(l *browser.Locator) Condition {
	return &elementCondition{locator: l}
}

// Hidden holds once no element matching l is rendered
func Hidden(l *browser.Locator) Condition {
	return &elementCondition{locator: l, hidden: true}
}

// Text holds once an element containing s is visible
func Text(s string) Condition {
	return Visible(browser.Text(s))
}

// Role holds once an element with the role and accessible name is visible
func Role(role, name string) Condition {
	return Visible(browser.Role(role, name))
}

// Selector holds once an element matching the CSS selector is visible
func Selector(css string) Condition {
	return Visible(browser.CSS(css))
}

func (c *elementCondition) Check(ctx context.Context, page Page) (bool, string, error) {
	st, err := page.Inspect(ctx, c.locator)
	if err != nil {
		return false, "", err
	}
	observed := describeState(st)
	if c.hidden {
		return !st.Found || !st.Visible, observed, nil
	}
	return st.Found && st.Visible, observed, nil
}

func (c *elementCondition) String() string {
	if c.hidden {
		return c.locator.String() + " hidden"
	}
	return c.locator.String() + " visible"
}

func describeState(st *browser.ElementState) string {
	switch {
	case !st.Found:
		return "no matching element"
	case !st.Visible:
		return fmt.Sprintf("<%s> present but not visible (%d matches)", st.Tag, st.Count)
	default:
		return fmt.Sprintf("<%s> visible (%d matches)", st.Tag, st.Count)
	}
}

type urlCondition struct {
	glob *utils.Glob
}

// URLMatches holds once the page address matches the glob pattern
func URLMatches(pattern string) (Condition, error) {
	glob, err := utils.CompileGlob(pattern)
	if err != nil {
		return nil, err
	}
	return &urlCondition{glob: glob}, nil
}

func (c *urlCondition) Check(ctx context.Context, page Page) (bool, string, error) {
	loc, err := page.Location(ctx)
	if err != nil {
		return false, "", err
	}
	return c.glob.Match(loc.Href), loc.Href, nil
}

func (c *urlCondition) String() string {
	return fmt.Sprintf("url matches %q", c.glob)
}

// delayCondition is a fixed pause; WaitFor sleeps instead of polling it
type delayCondition struct {
	d time.Duration
}

// Delay always holds after d. Prefer a real condition where one exists.
func Delay(d time.Duration) Condition {
	return &delayCondition{d: d}
}

func (c *delayCondition) Check(context.Context, Page) (bool, string, error) {
	return true, "", nil
}

func (c *delayCondition) String() string {
	return "delay " + c.d.String()
}
