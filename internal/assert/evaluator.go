// internal/assert/evaluator.go
package assert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/navigate"
	"github.com/valpere/uiverify/internal/utils"
)

// DefaultTimeout bounds an assertion that declares no timeout of its own
const DefaultTimeout = 5 * time.Second

// absent is reported as the observed value of a missing attribute
const absent = "<absent>"

// Inspector resolves locators to element state
type Inspector interface {
	Inspect(ctx context.Context, l *browser.Locator) (*browser.ElementState, error)
}

// Kind is what an Expectation checks
type Kind string

const (
	KindVisible     Kind = "visible"
	KindHidden      Kind = "hidden"
	KindAttribute   Kind = "attribute"
	KindNoAttribute Kind = "no_attribute"
	KindText        Kind = "text"
)

// Expectation is one declared check. For KindNoAttribute an empty Expected
// means the attribute must be absent; otherwise it must not equal Expected.
// Prefix relaxes KindAttribute to a prefix match.
type Expectation struct {
	Kind      Kind
	Locator   *browser.Locator
	Attribute string
	Expected  string
	Exact     bool
	Prefix    bool
	Timeout   time.Duration
}

func (e Expectation) expectedString() string {
	switch e.Kind {
	case KindVisible, KindHidden:
		return string(e.Kind)
	case KindAttribute:
		if e.Prefix {
			return fmt.Sprintf("%s^=%q", e.Attribute, e.Expected)
		}
		return fmt.Sprintf("%s=%q", e.Attribute, e.Expected)
	case KindNoAttribute:
		if e.Expected == "" {
			return fmt.Sprintf("no %s attribute", e.Attribute)
		}
		return fmt.Sprintf("%s!=%q", e.Attribute, e.Expected)
	default:
		if e.Exact {
			return e.Expected
		}
		return "contains " + e.Expected
	}
}

// Evaluator checks expectations against a page
type Evaluator struct {
	page         Inspector
	logger       utils.Logger
	timeout      time.Duration
	PollInterval time.Duration
}

// NewEvaluator creates an evaluator; timeout applies to expectations without one
func NewEvaluator(page Inspector, timeout time.Duration, logger utils.Logger) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Evaluator{page: page, logger: logger, timeout: timeout, PollInterval: navigate.DefaultPollInterval}
}

// Evaluate blocks until exp holds or its timeout elapses. A failure is an
// AssertionMismatch carrying the last observed value.
func (e *Evaluator) Evaluate(ctx context.Context, exp Expectation) error {
	if err := exp.Locator.Validate(); err != nil {
		return errors.InvalidScenario("%s assertion: %v", exp.Kind, err)
	}
	if (exp.Kind == KindAttribute || exp.Kind == KindNoAttribute) && exp.Attribute == "" {
		return errors.InvalidScenario("%s assertion on %s needs an attribute name", exp.Kind, exp.Locator)
	}

	timeout := exp.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	observed := "no matching element"
	err := navigate.Poll(actx, e.PollInterval, func(ctx context.Context) (bool, error) {
		st, err := e.page.Inspect(ctx, exp.Locator)
		if err != nil {
			return false, err
		}
		ok, obs := check(exp, st)
		observed = obs
		return ok, nil
	})
	if errors.KindOf(err) == errors.KindInvalidScenario {
		return err
	}
	if err != nil {
		return errors.AssertionMismatch(exp.Locator.String(), exp.expectedString(), observed, err)
	}

	e.logger.Debugf("%s is %s after %s", exp.Locator, exp.expectedString(), time.Since(start).Round(time.Millisecond))
	return nil
}

func check(exp Expectation, st *browser.ElementState) (bool, string) {
	switch exp.Kind {
	case KindVisible:
		if !st.Found {
			return false, "no matching element"
		}
		if !st.Visible {
			return false, "hidden"
		}
		return true, "visible"

	case KindHidden:
		if st.Found && st.Visible {
			return false, "visible"
		}
		return true, "hidden"

	case KindAttribute:
		if !st.Found {
			return false, "no matching element"
		}
		v, ok := st.Attribute(exp.Attribute)
		if !ok {
			return false, absent
		}
		if exp.Prefix {
			return strings.HasPrefix(v, exp.Expected), v
		}
		return v == exp.Expected, v

	case KindNoAttribute:
		if !st.Found {
			return false, "no matching element"
		}
		v, ok := st.Attribute(exp.Attribute)
		if !ok {
			return true, absent
		}
		if exp.Expected == "" {
			return false, v
		}
		return v != exp.Expected, v

	case KindText:
		if !st.Found {
			return false, "no matching element"
		}
		return TextMatches(st.Text, exp.Expected, exp.Exact), st.Text
	}
	return false, fmt.Sprintf("unknown expectation %q", exp.Kind)
}

// AssertVisible waits for l to be rendered
func (e *Evaluator) AssertVisible(ctx context.Context, l *browser.Locator, timeout time.Duration) error {
	return e.Evaluate(ctx, Expectation{Kind: KindVisible, Locator: l, Timeout: timeout})
}

// AssertHidden waits for l to be absent or not rendered
func (e *Evaluator) AssertHidden(ctx context.Context, l *browser.Locator, timeout time.Duration) error {
	return e.Evaluate(ctx, Expectation{Kind: KindHidden, Locator: l, Timeout: timeout})
}

// AssertAttribute waits for attribute name of l to equal expected
func (e *Evaluator) AssertAttribute(ctx context.Context, l *browser.Locator, name, expected string, timeout time.Duration) error {
	return e.Evaluate(ctx, Expectation{Kind: KindAttribute, Locator: l, Attribute: name, Expected: expected, Timeout: timeout})
}

// AssertNoAttribute waits for attribute name of l to be absent, or to differ from value when value is set
func (e *Evaluator) AssertNoAttribute(ctx context.Context, l *browser.Locator, name, value string, timeout time.Duration) error {
	return e.Evaluate(ctx, Expectation{Kind: KindNoAttribute, Locator: l, Attribute: name, Expected: value, Timeout: timeout})
}

// AssertText waits for the text of l to match expected
func (e *Evaluator) AssertText(ctx context.Context, l *browser.Locator, expected string, exact bool, timeout time.Duration) error {
	return e.Evaluate(ctx, Expectation{Kind: KindText, Locator: l, Expected: expected, Exact: exact, Timeout: timeout})
}
