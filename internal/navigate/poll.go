// internal/navigate/poll.go
package navigate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/valpere/uiverify/internal/errors"
)

// DefaultPollInterval is the pause between two evaluations of a condition
const DefaultPollInterval = 100 * time.Millisecond

// finalCheckTimeout bounds the check made once the deadline has passed
const finalCheckTimeout = 500 * time.Millisecond

// ErrPollTimeout is returned when the context ends before a check succeeds
var ErrPollTimeout = errors.New("condition not reached before deadline")

// CheckFunc reports whether a polled condition holds. Errors are remembered
// and polling continues, unless the error is wrapped with Permanent or is an
// InvalidScenario error.
type CheckFunc func(ctx context.Context) (bool, error)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as one that polling cannot recover from
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Poll runs check immediately and then at most once per interval until it
// succeeds or ctx is done.
func Poll(ctx context.Context, interval time.Duration, check CheckFunc) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait gives up early when the next slot is past the deadline.
			// The condition may still turn true before then.
			<-ctx.Done()
			return finalCheck(ctx, check, lastErr)
		}

		ok, err := check(ctx)
		if ok {
			return nil
		}
		if err != nil {
			if stop := unrecoverable(err); stop != nil {
				return stop
			}
			lastErr = err
		}

		if ctx.Err() != nil {
			return pollTimeout(lastErr)
		}
	}
}

// finalCheck evaluates check once more after ctx ended, on a short context
// detached from it
func finalCheck(ctx context.Context, check CheckFunc, lastErr error) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalCheckTimeout)
	defer cancel()

	ok, err := check(fctx)
	if ok {
		return nil
	}
	if err != nil {
		if stop := unrecoverable(err); stop != nil {
			return stop
		}
		lastErr = err
	}
	return pollTimeout(lastErr)
}

// unrecoverable returns the error polling must stop on, or nil
func unrecoverable(err error) error {
	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	if errors.KindOf(err) == errors.KindInvalidScenario {
		return err
	}
	return nil
}

func pollTimeout(lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("%w, last error: %v", ErrPollTimeout, lastErr)
	}
	return ErrPollTimeout
}
