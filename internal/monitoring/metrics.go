// internal/monitoring/metrics.go
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager holds the Prometheus metrics of verification runs. Every
// manager has its own registry, so several can coexist in one process.
type MetricsManager struct {
	registry *prometheus.Registry

	// Run metrics
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec

	// Step metrics
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	// Mock and artifact metrics
	mockHits      *prometheus.CounterVec
	artifacts     *prometheus.CounterVec
	artifactBytes *prometheus.HistogramVec

	// Report metrics
	reportsTotal   *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec

	namespace string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string            `json:"namespace" yaml:"namespace"`
	Labels          map[string]string `json:"labels" yaml:"labels"`
	EnableGoMetrics bool              `json:"enable_go_metrics" yaml:"enable_go_metrics"`
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "uiverify"
	}

	mm := &MetricsManager{
		registry:  prometheus.NewRegistry(),
		namespace: config.Namespace,
	}
	if config.EnableGoMetrics {
		mm.registry.MustRegister(collectors.NewGoCollector())
	}

	var reg prometheus.Registerer = mm.registry
	if len(config.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), reg)
	}
	mm.initializeMetrics(promauto.With(reg))

	return mm
}

func (mm *MetricsManager) initializeMetrics(f promauto.Factory) {
	mm.runsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Name:      "runs_total",
			Help:      "Total number of scenario runs",
		},
		[]string{"scenario", "status", "error_kind"},
	)

	mm.runDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Name:      "run_duration_seconds",
			Help:      "Scenario run duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"scenario"},
	)

	mm.lastRun = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run of the scenario passed, 0 otherwise",
		},
		[]string{"scenario"},
	)

	mm.stepsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "step",
			Name:      "executed_total",
			Help:      "Total number of executed steps",
		},
		[]string{"scenario", "action", "status"},
	)

	mm.stepDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "step",
			Name:      "duration_seconds",
			Help:      "Step duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"action"},
	)

	mm.mockHits = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "mock",
			Name:      "hits_total",
			Help:      "Requests answered by a route mock",
		},
		[]string{"scenario", "pattern"},
	)

	mm.artifacts = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "artifact",
			Name:      "written_total",
			Help:      "Artifacts written to disk",
		},
		[]string{"kind"},
	)

	mm.artifactBytes = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "artifact",
			Name:      "size_bytes",
			Help:      "Artifact size in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"kind"},
	)

	mm.reportsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "report",
			Name:      "writes_total",
			Help:      "Report writes by format and status",
		},
		[]string{"format", "status"},
	)

	mm.reportDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "report",
			Name:      "write_duration_seconds",
			Help:      "Report write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format"},
	)
}

// Run metrics
func (mm *MetricsManager) RecordRun(scenario, status, errorKind string, duration time.Duration) {
	mm.runsTotal.WithLabelValues(scenario, status, errorKind).Inc()
	mm.runDuration.WithLabelValues(scenario).Observe(duration.Seconds())
	if status == "passed" {
		mm.lastRun.WithLabelValues(scenario).Set(1)
	} else {
		mm.lastRun.WithLabelValues(scenario).Set(0)
	}
}

// Step metrics
func (mm *MetricsManager) RecordStep(scenario, action, status string, duration time.Duration) {
	mm.stepsTotal.WithLabelValues(scenario, action, status).Inc()
	mm.stepDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordMockHits(scenario string, hits map[string]int64) {
	for pattern, n := range hits {
		mm.mockHits.WithLabelValues(scenario, pattern).Add(float64(n))
	}
}

func (mm *MetricsManager) RecordArtifact(kind string, bytes int) {
	mm.artifacts.WithLabelValues(kind).Inc()
	mm.artifactBytes.WithLabelValues(kind).Observe(float64(bytes))
}

// Report metrics
func (mm *MetricsManager) RecordReport(format string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	mm.reportsTotal.WithLabelValues(format, status).Inc()
	mm.reportDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// Registry exposes the underlying registry, mainly for tests
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector. The file is replaced atomically.
func (mm *MetricsManager) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, mm.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// MetricsHandler returns an HTTP handler for metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves the metrics until ctx is done
func (mm *MetricsManager) StartMetricsServer(ctx context.Context, address, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, mm.MetricsHandler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
