// internal/errors/errors.go - Verification failure taxonomy
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a verification failure
type Kind int

const (
	KindInternal Kind = iota
	KindLaunchFailure
	KindNavigationTimeout
	KindConditionNotMet
	KindAssertionMismatch
	KindArtifactWriteFailure
	KindInvalidScenario
)

// String returns the name used in logs and reports
func (k Kind) String() string {
	switch k {
	case KindLaunchFailure:
		return "LaunchFailure"
	case KindNavigationTimeout:
		return "NavigationTimeout"
	case KindConditionNotMet:
		return "ConditionNotMet"
	case KindAssertionMismatch:
		return "AssertionMismatch"
	case KindArtifactWriteFailure:
		return "ArtifactWriteFailure"
	case KindInvalidScenario:
		return "InvalidScenario"
	default:
		return "Internal"
	}
}

// Fatal reports whether a failure of this kind aborts the run.
// Artifact write failures are downgraded to warnings by the runner.
func (k Kind) Fatal() bool {
	return k != KindArtifactWriteFailure
}

// Error carries the diagnostic context of a failed operation
type Error struct {
	Kind      Kind          `json:"kind"`
	Message   string        `json:"message"`
	URL       string        `json:"url,omitempty"`
	Condition string        `json:"condition,omitempty"`
	Locator   string        `json:"locator,omitempty"`
	Expected  string        `json:"expected,omitempty"`
	Observed  string        `json:"observed,omitempty"`
	Path      string        `json:"path,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Cause     error         `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Message)

	switch e.Kind {
	case KindNavigationTimeout:
		fmt.Fprintf(&b, " (url=%s elapsed=%s)", e.URL, e.Elapsed.Round(time.Millisecond))
	case KindConditionNotMet:
		fmt.Fprintf(&b, " (condition=%s elapsed=%s", e.Condition, e.Elapsed.Round(time.Millisecond))
		if e.Observed != "" {
			fmt.Fprintf(&b, " observed=%q", e.Observed)
		}
		b.WriteString(")")
	case KindAssertionMismatch:
		fmt.Fprintf(&b, " (locator=%s expected=%q observed=%q)", e.Locator, e.Expected, e.Observed)
	case KindArtifactWriteFailure:
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrLaunchFailure        = &Error{Kind: KindLaunchFailure}
	ErrNavigationTimeout    = &Error{Kind: KindNavigationTimeout}
	ErrConditionNotMet      = &Error{Kind: KindConditionNotMet}
	ErrAssertionMismatch    = &Error{Kind: KindAssertionMismatch}
	ErrArtifactWriteFailure = &Error{Kind: KindArtifactWriteFailure}
	ErrInvalidScenario      = &Error{Kind: KindInvalidScenario}
)

// LaunchFailure reports that the browser could not be started
func LaunchFailure(cause error) *Error {
	return &Error{Kind: KindLaunchFailure, Message: "failed to launch browser", Cause: cause}
}

// NavigationTimeout reports a navigation that did not complete in time
func NavigationTimeout(url string, elapsed time.Duration, cause error) *Error {
	return &Error{
		Kind:    KindNavigationTimeout,
		Message: "navigation did not complete",
		URL:     url,
		Elapsed: elapsed,
		Cause:   cause,
	}
}

// ConditionNotMet reports a wait whose condition never held
func ConditionNotMet(condition, observed string, elapsed time.Duration, cause error) *Error {
	return &Error{
		Kind:      KindConditionNotMet,
		Message:   "condition not satisfied within timeout",
		Condition: condition,
		Observed:  observed,
		Elapsed:   elapsed,
		Cause:     cause,
	}
}

// AssertionMismatch reports an expectation that did not hold
func AssertionMismatch(locator, expected, observed string, cause error) *Error {
	return &Error{
		Kind:     KindAssertionMismatch,
		Message:  "expectation not met",
		Locator:  locator,
		Expected: expected,
		Observed: observed,
		Cause:    cause,
	}
}

// ArtifactWriteFailure reports an artifact that could not be written
func ArtifactWriteFailure(path string, cause error) *Error {
	return &Error{Kind: KindArtifactWriteFailure, Message: "failed to write artifact", Path: path, Cause: cause}
}

// InvalidScenario reports a scenario that cannot be executed as declared
func InvalidScenario(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidScenario, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is a re-export so callers importing this package keep access to errors.As
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Is is a re-export of the standard errors.Is
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// New is a re-export of the standard errors.New
func New(text string) error {
	return stderrors.New(text)
}

// Join is a re-export of the standard errors.Join
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
