// cmd/uiverify/main.go - command line entry point for scripted UI verifications
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/fixture"
	"github.com/valpere/uiverify/internal/monitoring"
	"github.com/valpere/uiverify/internal/runner"
	"github.com/valpere/uiverify/internal/scenarios"
	"github.com/valpere/uiverify/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Global error service instance
var errorService = errors.NewService()

// stdout receives results and diagnostics
var stdout io.Writer = os.Stdout

func main() {
	os.Exit(dispatch(os.Args[1:]))
}

// dispatch routes a command line to its command and returns the exit code
func dispatch(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	verbose := hasFlag(args, "-v") || hasFlag(args, "--verbose")
	errorService = errorService.WithVerbose(verbose)

	command, rest := args[0], args[1:]
	switch command {
	case "run":
		files := positional(rest)
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "Error: scenario file required\n")
			fmt.Fprintf(os.Stderr, "Usage: uiverify run <scenario.yaml>...\n")
			return 1
		}
		return runFiles(files, rest, verbose)

	case "builtin":
		return runBuiltins(positional(rest), rest, verbose)

	case "list":
		listBuiltins()
		return 0

	case "validate":
		files := positional(rest)
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "Error: scenario file required\n")
			fmt.Fprintf(os.Stderr, "Usage: uiverify validate <scenario.yaml>\n")
			return 1
		}
		return validateScenario(files[0], verbose)

	case "template":
		template, err := generateTemplate(rest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprint(stdout, template)
		return 0

	case "watch":
		files := positional(rest)
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "Error: scenario file required\n")
			fmt.Fprintf(os.Stderr, "Usage: uiverify watch <scenario.yaml>\n")
			return 1
		}
		return watchScenario(files[0], verbose)

	case "fixture":
		return serveFixture(flagValue(rest, "--addr", "127.0.0.1:3000"), verbose)

	case "version", "--version":
		printVersion()
		return 0

	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		return 1
	}
}

func newLogger(verbose bool) utils.Logger {
	if verbose {
		return utils.NewLoggerWithLevel(utils.DebugLevel)
	}
	return utils.NewLoggerWithLevel(utils.ParseLogLevel(os.Getenv(runner.LogLevelEnv)))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runFiles runs scenario files; a single file honours its own reports,
// several files run as a suite
func runFiles(files, args []string, verbose bool) int {
	var list []*config.Scenario
	for _, file := range files {
		sc, err := config.LoadFromFile(file)
		if err != nil {
			fmt.Fprint(stdout, errorService.FormatErrorForCLI(err))
			return errorService.GetExitCode(err)
		}
		list = append(list, sc)
	}
	return execute(list, args, verbose)
}

func runBuiltins(names, args []string, verbose bool) int {
	if hasFlag(args, "--all") {
		names = scenarios.Names()
	}
	if len(names) == 0 {
		fmt.Fprintf(os.Stderr, "Error: built-in name required\n")
		fmt.Fprintf(os.Stderr, "Usage: uiverify builtin <name>... | --all\n")
		return 1
	}

	baseURL := flagValue(args, "--base-url", "")
	var list []*config.Scenario
	for _, name := range names {
		b, ok := scenarios.Lookup(name)
		if !ok {
			err := errors.InvalidScenario("unknown built-in verification %q (available: %s)", name, strings.Join(scenarios.Names(), ", "))
			fmt.Fprint(stdout, errorService.FormatErrorForCLI(err))
			return errorService.GetExitCode(err)
		}
		sc, err := b.Scenario(baseURL)
		if err != nil {
			fmt.Fprint(stdout, errorService.FormatErrorForCLI(err))
			return errorService.GetExitCode(err)
		}
		list = append(list, sc)
	}
	return execute(list, args, verbose)
}

func execute(list []*config.Scenario, args []string, verbose bool) int {
	ctx, stop := signalContext()
	defer stop()
	logger := newLogger(verbose)

	if len(list) == 1 && !hasFlag(args, "--report") && !hasFlag(args, "--metrics-textfile") {
		return runner.Exec(ctx, list[0], stdout, runner.WithLogger(logger))
	}
	return runSuite(ctx, logger, list, args)
}

func runSuite(ctx context.Context, logger utils.Logger, list []*config.Scenario, args []string) int {
	concurrency, err := strconv.Atoi(flagValue(args, "--concurrency", "1"))
	if err != nil || concurrency < 1 {
		fmt.Fprintf(os.Stderr, "Error: --concurrency must be a positive integer\n")
		return 1
	}
	reports, err := parseReports(flagValues(args, "--report"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	r := runner.New(runner.WithLogger(logger), runner.WithMetrics(metrics))

	start := time.Now()
	results := r.RunSuite(ctx, list, concurrency)
	runner.WriteReports(ctx, logger, reports, flagValue(args, "--metrics-textfile", ""), results, metrics)

	failed := 0
	exitCode := errors.ExitOK
	for _, res := range results {
		fmt.Fprintln(stdout, res.Summary())
		if !res.Passed() {
			failed++
			if exitCode == errors.ExitOK {
				exitCode = errorService.GetExitCode(res.Err)
			}
		}
	}
	fmt.Fprintf(stdout, "%d/%d verifications passed in %s\n", len(results)-failed, len(results), time.Since(start).Round(time.Millisecond))
	return exitCode
}

// parseReports reads --report values of the form format=target
func parseReports(values []string) ([]config.OutputConfig, error) {
	var reports []config.OutputConfig
	for _, v := range values {
		format, target, ok := strings.Cut(v, "=")
		if !ok || format == "" || target == "" {
			return nil, fmt.Errorf("invalid --report %q, expected format=target", v)
		}
		cfg := config.OutputConfig{Format: format}
		switch format {
		case "postgresql", "mysql", "mongodb":
			cfg.ConnectionString = target
		default:
			cfg.File = target
		}
		reports = append(reports, cfg)
	}
	return reports, nil
}

func listBuiltins() {
	for _, b := range scenarios.All() {
		fmt.Fprintf(stdout, "  %-20s %s (%s)\n", b.Name, b.Description, b.DefaultBaseURL)
	}
}

func validateScenario(file string, verbose bool) int {
	sc, err := config.LoadFromFile(file)
	if err != nil {
		fmt.Fprint(stdout, errorService.FormatErrorForCLI(err))
		return errorService.GetExitCode(err)
	}

	result := sc.ValidateWithDetails()
	for _, w := range result.Warnings {
		fmt.Fprintf(stdout, "⚠ %s\n", w)
	}
	if verbose {
		fmt.Fprintf(stdout, "Scenario details:\n")
		fmt.Fprintf(stdout, "  Name: %s\n", sc.Name)
		fmt.Fprintf(stdout, "  Base URL: %s\n", sc.BaseURL)
		fmt.Fprintf(stdout, "  Steps: %d\n", len(sc.Steps))
		fmt.Fprintf(stdout, "  Mocks: %d\n", len(sc.Mocks))
	}

	fmt.Fprintf(stdout, "✓ Scenario file '%s' is valid\n", file)
	return 0
}

func generateTemplate(args []string) (string, error) {
	template := config.GenerateTemplate(flagValue(args, "--type", "basic"))

	yamlData, err := yaml.Marshal(template)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template to YAML: %w", err)
	}
	return string(yamlData), nil
}

// watchScenario runs the scenario now and again every time the file changes
func watchScenario(file string, verbose bool) int {
	ctx, stop := signalContext()
	defer stop()
	logger := newLogger(verbose)

	sc, err := config.LoadFromFile(file)
	if err != nil {
		fmt.Fprint(stdout, errorService.FormatErrorForCLI(err))
		return errorService.GetExitCode(err)
	}

	watcher, err := config.NewWatcher(file, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer watcher.Close()

	changes := make(chan *config.Scenario, 1)
	watcher.OnChange(func(sc *config.Scenario) {
		select {
		case changes <- sc:
		default:
		}
	})

	last := runner.Exec(ctx, sc, stdout, runner.WithLogger(logger))
	fmt.Fprintf(stdout, "Watching %s for changes (Ctrl+C to stop)\n", file)
	for {
		select {
		case <-ctx.Done():
			return last
		case sc := <-changes:
			last = runner.Exec(ctx, sc, stdout, runner.WithLogger(logger))
		}
	}
}

func serveFixture(addr string, verbose bool) int {
	ctx, stop := signalContext()
	defer stop()

	srv := fixture.New(newLogger(verbose))
	baseURL, err := srv.Start(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Fixture site at %s (set %s=%s to verify against it)\n", baseURL, scenarios.BaseURLEnv, baseURL)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// hasFlag checks if a flag is present in command line arguments
func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}
	return false
}

// flagValue returns the last value given for flag, as "--flag value" or "--flag=value"
func flagValue(args []string, flag, def string) string {
	values := flagValues(args, flag)
	if len(values) == 0 {
		return def
	}
	return values[len(values)-1]
}

func flagValues(args []string, flag string) []string {
	var values []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == flag && i+1 < len(args):
			values = append(values, args[i+1])
			i++
		case strings.HasPrefix(args[i], flag+"="):
			values = append(values, strings.TrimPrefix(args[i], flag+"="))
		}
	}
	return values
}

// valueFlags take an argument
var valueFlags = map[string]bool{
	"--base-url":         true,
	"--concurrency":      true,
	"--report":           true,
	"--metrics-textfile": true,
	"--type":             true,
	"--addr":             true,
}

// positional returns the arguments that are neither flags nor flag values
func positional(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			if valueFlags[arg] {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}

// printUsage displays help information
func printUsage() {
	fmt.Fprintln(stdout, "uiverify - Scripted browser verification runner")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Usage:")
	fmt.Fprintln(stdout, "  uiverify run <scenario.yaml>...         Run scenario files")
	fmt.Fprintln(stdout, "  uiverify builtin <name>... | --all      Run built-in verifications")
	fmt.Fprintln(stdout, "  uiverify list                           List built-in verifications")
	fmt.Fprintln(stdout, "  uiverify validate <scenario.yaml>       Validate a scenario file")
	fmt.Fprintln(stdout, "  uiverify template [--type <type>]       Generate a scenario template")
	fmt.Fprintln(stdout, "  uiverify watch <scenario.yaml>          Re-run a scenario whenever it changes")
	fmt.Fprintln(stdout, "  uiverify fixture [--addr <host:port>]   Serve the local fixture site")
	fmt.Fprintln(stdout, "  uiverify version                        Show version information")
	fmt.Fprintln(stdout, "  uiverify help                           Show this help message")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Options:")
	fmt.Fprintln(stdout, "  -v, --verbose                           Enable debug logging")
	fmt.Fprintln(stdout, "  --base-url <url>                        Origin for built-ins (default: $"+scenarios.BaseURLEnv+" or their own)")
	fmt.Fprintln(stdout, "  --concurrency <n>                       Sessions open at once when running several scenarios")
	fmt.Fprintln(stdout, "  --report <format>=<target>              Write suite results (json, yaml, csv, excel, sqlite, postgresql, mysql, mongodb)")
	fmt.Fprintln(stdout, "  --metrics-textfile <path>               Write suite metrics in Prometheus text format")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Template types:")
	fmt.Fprintln(stdout, "  basic       Navigation and attribute checks (default)")
	fmt.Fprintln(stdout, "  mock        Mocked REST resource")
	fmt.Fprintln(stdout, "  modal       Modal dialog open and close")
}

// printVersion displays version information
func printVersion() {
	fmt.Fprintf(stdout, "uiverify %s\n", version)
	fmt.Fprintf(stdout, "Build time: %s\n", buildTime)
	fmt.Fprintf(stdout, "Git commit: %s\n", gitCommit)
}
