// pkg/api/api.go
package api

import (
	"context"
	"fmt"

	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/monitoring"
	"github.com/valpere/uiverify/internal/runner"
	"github.com/valpere/uiverify/internal/scenarios"
)

// Client runs verifications from Go code
type Client struct {
	runner  *runner.Runner
	metrics *monitoring.MetricsManager
}

// NewClient creates a client. Options customise the underlying runner.
func NewClient(opts ...Option) *Client {
	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	return &Client{
		runner:  runner.New(append([]Option{runner.WithMetrics(metrics)}, opts...)...),
		metrics: metrics,
	}
}

// Verify runs one scenario
func (c *Client) Verify(ctx context.Context, sc *Scenario) (*Result, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario cannot be nil")
	}
	if err := config.Prepare(sc); err != nil {
		return nil, err
	}
	return c.runner.Run(ctx, sc), nil
}

// VerifyFile loads and runs a scenario file
func (c *Client) VerifyFile(ctx context.Context, path string) (*Result, error) {
	sc, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return c.runner.Run(ctx, sc), nil
}

// VerifyBuiltin runs a built-in verification against baseURL, or against its
// default origin when baseURL is empty
func (c *Client) VerifyBuiltin(ctx context.Context, name, baseURL string) (*Result, error) {
	b, ok := scenarios.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown built-in verification %q", name)
	}
	sc, err := b.Scenario(baseURL)
	if err != nil {
		return nil, err
	}
	return c.runner.Run(ctx, sc), nil
}

// VerifyAll runs scenarios with at most concurrency sessions at once
func (c *Client) VerifyAll(ctx context.Context, list []*Scenario, concurrency int) []*Result {
	return c.runner.RunSuite(ctx, list, concurrency)
}

// WriteMetrics writes the metrics gathered so far in Prometheus text format
func (c *Client) WriteMetrics(path string) error {
	return c.metrics.WriteTextfile(path)
}

// LoadScenario parses a YAML scenario
func LoadScenario(data []byte) (*Scenario, error) {
	return config.LoadFromBytes(data)
}

// Builtins lists the built-in verification names
func Builtins() []string {
	return scenarios.Names()
}
