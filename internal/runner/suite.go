// internal/runner/suite.go
package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/uiverify/internal/config"
)

// RunSuite runs scenarios with at most concurrency sessions open at once.
// Each scenario gets its own page, so they share no browser state. Results
// keep the order of scenarios; a nil scenario leaves a nil result.
func (r *Runner) RunSuite(ctx context.Context, scenarios []*config.Scenario, concurrency int) []*Result {
	results := make([]*Result, len(scenarios))
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, sc := range scenarios {
		if sc == nil {
			continue
		}
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.Run(gctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// AllPassed reports whether every result passed
func AllPassed(results []*Result) bool {
	for _, res := range results {
		if res == nil || !res.Passed() {
			return false
		}
	}
	return true
}
