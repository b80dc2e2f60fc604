// internal/runner/main.go
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/monitoring"
	"github.com/valpere/uiverify/internal/output"
	"github.com/valpere/uiverify/internal/scenarios"
	"github.com/valpere/uiverify/internal/utils"
)

// LogLevelEnv selects the log level of verification executables
const LogLevelEnv = "UIVERIFY_LOG_LEVEL"

// Main runs sc the way a flag-less verification executable does: logs and
// diagnostics go to stdout and the return value is the process exit code.
func Main(sc *config.Scenario) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := utils.NewLoggerWithLevel(utils.ParseLogLevel(os.Getenv(LogLevelEnv)))
	return Exec(ctx, sc, os.Stdout, WithLogger(logger))
}

// MainBuiltin runs the named built-in verification
func MainBuiltin(name string) int {
	sc, err := scenarios.Get(name)
	if err != nil {
		fmt.Fprint(os.Stdout, errors.NewService().FormatErrorForCLI(err))
		return errors.NewService().GetExitCode(err)
	}
	return Main(sc)
}

// Exec runs sc, writes its reports and metrics and prints the outcome to stdout
func Exec(ctx context.Context, sc *config.Scenario, stdout io.Writer, opts ...Option) int {
	service := errors.NewService()
	if sc == nil {
		err := errors.InvalidScenario("no scenario to run")
		fmt.Fprint(stdout, service.FormatErrorForCLI(err))
		return service.GetExitCode(err)
	}

	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	r := New(append([]Option{WithMetrics(metrics)}, opts...)...)

	res := r.Run(ctx, sc)
	report(ctx, r.logger, sc, []*Result{res}, metrics)

	fmt.Fprintln(stdout, res.Summary())
	for _, a := range res.Artifacts {
		fmt.Fprintf(stdout, "  %s: %s\n", a.Kind, a.Path)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "  warning: %s\n", w)
	}

	if res.Passed() {
		return errors.ExitOK
	}
	fmt.Fprint(stdout, service.FormatErrorForCLI(res.Err))
	return service.GetExitCode(res.Err)
}

// report writes results to the scenario's report sinks and metrics textfile.
// Failures are logged; they never change the verdict.
func report(ctx context.Context, logger utils.Logger, sc *config.Scenario, results []*Result, metrics *monitoring.MetricsManager) {
	if len(sc.Reports) > 0 {
		m := output.NewManager(sc.Reports, logger).WithRecorder(metrics)
		if err := m.Write(context.WithoutCancel(ctx), Records(results)); err != nil {
			logger.Warnf("report writing failed: %v", err)
		}
	}
	if sc.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(sc.Metrics.TextfilePath); err != nil {
			logger.Warnf("%v", err)
		} else {
			logger.Debugf("metrics written to %s", sc.Metrics.TextfilePath)
		}
	}
}

// WriteReports writes suite results to the given sinks and metrics textfile
func WriteReports(ctx context.Context, logger utils.Logger, reports []config.OutputConfig, textfile string, results []*Result, metrics *monitoring.MetricsManager) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if metrics == nil {
		metrics = monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	}
	sc := &config.Scenario{Reports: reports, Metrics: config.MetricsConfig{TextfilePath: textfile}}
	report(ctx, logger, sc, results, metrics)
}
