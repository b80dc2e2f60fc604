// internal/runner/result.go
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/valpere/uiverify/internal/artifact"
	"github.com/valpere/uiverify/internal/audit"
	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
)

// Status is the outcome of a run or a step
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records one executed step
type StepResult struct {
	Index    int           `json:"index" yaml:"index"`
	Name     string        `json:"name" yaml:"name"`
	Action   config.Action `json:"action" yaml:"action"`
	Status   Status        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of one scenario run
type Result struct {
	Scenario   string              `json:"scenario" yaml:"scenario"`
	Status     Status              `json:"status" yaml:"status"`
	StartedAt  time.Time           `json:"started_at" yaml:"started_at"`
	Duration   time.Duration       `json:"duration" yaml:"duration"`
	FailedStep int                 `json:"failed_step" yaml:"failed_step"`
	ErrorKind  string              `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	Steps      []StepResult        `json:"steps" yaml:"steps"`
	Artifacts  []artifact.Artifact `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	MockHits   map[string]int64    `json:"mock_hits,omitempty" yaml:"mock_hits,omitempty"`
	Findings   []audit.Finding     `json:"findings,omitempty" yaml:"findings,omitempty"`
	Warnings   []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Trace      []State             `json:"trace" yaml:"trace"`

	// Err is the error that failed the run, nil when it passed
	Err error `json:"-" yaml:"-"`
}

func newResult(name string) *Result {
	return &Result{
		Scenario:   name,
		Status:     StatusPassed,
		StartedAt:  time.Now(),
		FailedStep: -1,
	}
}

// Passed reports whether every step succeeded
func (r *Result) Passed() bool {
	return r.Status == StatusPassed
}

func (r *Result) fail(step int, err error) {
	r.Status = StatusFailed
	r.FailedStep = step
	r.Err = err
	r.Error = err.Error()
	r.ErrorKind = errors.KindOf(err).String()
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Summary is a one-line description of the outcome
func (r *Result) Summary() string {
	if r.Passed() {
		return fmt.Sprintf("PASS %s (%d steps, %s)", r.Scenario, len(r.Steps), r.Duration.Round(time.Millisecond))
	}
	where := "before the first step"
	if r.FailedStep >= 0 && r.FailedStep < len(r.Steps) {
		s := r.Steps[r.FailedStep]
		where = fmt.Sprintf("at step %d (%s)", s.Index+1, s.Name)
	}
	return fmt.Sprintf("FAIL %s %s after %s: %s", r.Scenario, where, r.Duration.Round(time.Millisecond), r.Error)
}

// Record flattens the result into a report row
func (r *Result) Record() map[string]interface{} {
	paths := make([]string, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		paths = append(paths, a.Path)
	}
	trace := make([]string, 0, len(r.Trace))
	for _, s := range r.Trace {
		trace = append(trace, string(s))
	}
	var hits int64
	for _, n := range r.MockHits {
		hits += n
	}

	return map[string]interface{}{
		"scenario":    r.Scenario,
		"status":      string(r.Status),
		"started_at":  r.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms": r.Duration.Milliseconds(),
		"steps":       len(r.Steps),
		"failed_step": r.FailedStep,
		"error_kind":  r.ErrorKind,
		"error":       r.Error,
		"artifacts":   strings.Join(paths, ";"),
		"mock_hits":   hits,
		"findings":    len(r.Findings),
		"warnings":    len(r.Warnings),
		"trace":       strings.Join(trace, ">"),
	}
}

// Records flattens several results
func Records(results []*Result) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r.Record())
		}
	}
	return out
}
