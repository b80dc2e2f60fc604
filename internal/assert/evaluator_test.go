// internal/assert/evaluator_test.go
package assert

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/errors"
)

// fakeInspector returns a scripted sequence of states per locator; the last
// state repeats once the sequence is exhausted.
type fakeInspector struct {
	mu     sync.Mutex
	states map[string][]*browser.ElementState
	err    error
}

func (f *fakeInspector) Inspect(ctx context.Context, l *browser.Locator) (*browser.ElementState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	seq := f.states[l.String()]
	if len(seq) == 0 {
		return &browser.ElementState{}, nil
	}
	st := seq[0]
	if len(seq) > 1 {
		f.states[l.String()] = seq[1:]
	}
	return st, nil
}

func newEvaluator(states map[string][]*browser.ElementState) *Evaluator {
	e := NewEvaluator(&fakeInspector{states: states}, 100*time.Millisecond, nil)
	e.PollInterval = 5 * time.Millisecond
	return e
}

func link(attrs map[string]string) *browser.ElementState {
	return &browser.ElementState{Found: true, Count: 1, Visible: true, Tag: "a", Attributes: attrs}
}

func TestEvaluator_AssertAttribute(t *testing.T) {
	portfolio := browser.Role("link", "Portfolio")
	e := newEvaluator(map[string][]*browser.ElementState{
		portfolio.String(): {link(nil), link(map[string]string{"aria-current": "page"})},
	})

	err := e.AssertAttribute(context.Background(), portfolio, "aria-current", "page", 0)
	require.NoError(t, err)
}

func TestEvaluator_AssertAttributeMismatch(t *testing.T) {
	about := browser.Role("link", "About")
	e := newEvaluator(map[string][]*browser.ElementState{
		about.String(): {link(map[string]string{"aria-current": "false"})},
	})

	err := e.AssertAttribute(context.Background(), about, "aria-current", "page", 30*time.Millisecond)

	var verr *errors.Error
	require.True(t, errors.As(err, &verr), "expected *errors.Error, got %v", err)
	require.Equal(t, errors.KindAssertionMismatch, verr.Kind)
	require.Equal(t, `role=link[name="About"]`, verr.Locator)
	require.Equal(t, `aria-current="page"`, verr.Expected)
	require.Equal(t, "false", verr.Observed)
}

func TestEvaluator_AssertAttributePrefix(t *testing.T) {
	book := browser.CSS("a").At(0)
	e := newEvaluator(map[string][]*browser.ElementState{
		book.String(): {link(map[string]string{"aria-label": "Book the Wedding package", "href": "#/contact"})},
	})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, Expectation{Kind: KindAttribute, Locator: book, Attribute: "aria-label", Expected: "Book ", Prefix: true}))

	err := e.Evaluate(ctx, Expectation{Kind: KindAttribute, Locator: book, Attribute: "aria-label", Expected: "Reserve", Prefix: true, Timeout: 30 * time.Millisecond})
	var verr *errors.Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, `aria-label^="Reserve"`, verr.Expected)
}

func TestEvaluator_AssertNoAttribute(t *testing.T) {
	about := browser.Role("link", "About")
	home := browser.Role("link", "Home")
	e := newEvaluator(map[string][]*browser.ElementState{
		about.String(): {link(nil)},
		home.String():  {link(map[string]string{"aria-current": "page"})},
	})
	ctx := context.Background()

	require.NoError(t, e.AssertNoAttribute(ctx, about, "aria-current", "", 0))
	require.NoError(t, e.AssertNoAttribute(ctx, about, "aria-current", "page", 0))

	err := e.AssertNoAttribute(ctx, home, "aria-current", "page", 30*time.Millisecond)
	require.Equal(t, errors.KindAssertionMismatch, errors.KindOf(err))

	err = e.AssertNoAttribute(ctx, home, "aria-current", "", 30*time.Millisecond)
	require.Equal(t, errors.KindAssertionMismatch, errors.KindOf(err))
}

func TestEvaluator_AssertVisibleAndHidden(t *testing.T) {
	dialog := browser.Role("dialog", "New Portfolio Item")
	e := newEvaluator(map[string][]*browser.ElementState{
		dialog.String(): {
			{Found: false},
			{Found: true, Count: 1, Visible: true, Tag: "div"},
			{Found: true, Count: 1, Visible: true, Tag: "div"},
			{Found: false},
		},
	})
	ctx := context.Background()

	require.NoError(t, e.AssertVisible(ctx, dialog, 0))
	require.NoError(t, e.AssertHidden(ctx, dialog, 0))
}

func TestEvaluator_AssertVisibleNotFound(t *testing.T) {
	e := newEvaluator(nil)

	err := e.AssertVisible(context.Background(), browser.Text("Test Client"), 20*time.Millisecond)

	var verr *errors.Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "visible", verr.Expected)
	require.Equal(t, "no matching element", verr.Observed)
}

func TestEvaluator_AssertText(t *testing.T) {
	counter := browser.CSS("#vision-count")
	e := newEvaluator(map[string][]*browser.ElementState{
		counter.String(): {
			{Found: true, Visible: true, Text: "0/2000"},
			{Found: true, Visible: true, Text: " 11/2000\n"},
		},
	})

	require.NoError(t, e.AssertText(context.Background(), counter, "11/2000", true, 0))
}

func TestEvaluator_InspectErrorsBecomeMismatch(t *testing.T) {
	e := NewEvaluator(&fakeInspector{err: fmt.Errorf("execution context was destroyed")}, 20*time.Millisecond, nil)
	e.PollInterval = 5 * time.Millisecond

	err := e.AssertVisible(context.Background(), browser.CSS("footer"), 0)
	require.Equal(t, errors.KindAssertionMismatch, errors.KindOf(err))
	require.Contains(t, err.Error(), "execution context was destroyed")
}

func TestEvaluator_InvalidLocatorFailsFast(t *testing.T) {
	e := NewEvaluator(&fakeInspector{err: errors.InvalidScenario("invalid locator css=div[")}, 5*time.Second, nil)
	e.PollInterval = 5 * time.Millisecond

	start := time.Now()
	err := e.AssertVisible(context.Background(), browser.CSS("div["), 0)
	require.Equal(t, errors.KindInvalidScenario, errors.KindOf(err))
	require.Less(t, time.Since(start), time.Second)
}

func TestEvaluator_InvalidExpectation(t *testing.T) {
	e := newEvaluator(nil)
	ctx := context.Background()

	err := e.AssertVisible(ctx, &browser.Locator{}, 0)
	require.Equal(t, errors.KindInvalidScenario, errors.KindOf(err))

	err = e.AssertAttribute(ctx, browser.CSS("a"), "", "page", 0)
	require.Equal(t, errors.KindInvalidScenario, errors.KindOf(err))
}

func TestTextMatches(t *testing.T) {
	tests := []struct {
		actual, expected string
		exact            bool
		want             bool
	}{
		{"Test Client", "Test Client", true, true},
		{"  Test\n Client ", "Test Client", true, true},
		{"Test Client", "test client", true, false},
		{"Meet Test Client today", "test client", false, true},
		{"Cafe\u0301", "Caf\u00e9", true, true},
		{"BOOK A SESSION", "Book a Session", false, true},
		{"Real Client", "Test Client", false, false},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%q~%q exact=%t", tt.actual, tt.expected, tt.exact)
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, TextMatches(tt.actual, tt.expected, tt.exact))
		})
	}
}
