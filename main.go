package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nookcoding/e2e-harness/config"
	"github.com/nookcoding/e2e-harness/framework"
	"github.com/nookcoding/e2e-harness/loadgen"
	"github.com/nookcoding/e2e-harness/report"
	"github.com/nookcoding/e2e-harness/runner"
	"github.com/nookcoding/e2e-harness/scenariodef"
	"github.com/nookcoding/e2e-harness/target"
	"github.com/nookcoding/e2e-harness/target/browser"
	"github.com/nookcoding/e2e-harness/target/httptarget"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errRunFailed means the run completed but some scenario or load gate did not pass.
var errRunFailed = errors.New("run failed")

var (
	params commandParams
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "e2e-harness",
	Short: "Scenario verification harness",
	Long: `e2e-harness runs declarative scenarios against a web application, either in a real
browser or over plain HTTP, and drives load profiles against its APIs. Results are
written as console output, JUnit XML and JSON.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		if params.verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		cfg.DisableStacktrace = true
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [scenario files or directories...]",
	Short: "Run scenarios under every configured device",
	Long: `Runs every scenario found in the given files and directories (or the configured
scenario paths) once per device profile. Use --run and --skip with regular expressions
matching "scenario/device" to select instances.`,
	RunE: runScenarios,
}

var loadCmd = &cobra.Command{
	Use:   "load <plan file>...",
	Short: "Run load plans and evaluate their thresholds",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLoad,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	params.addPersistentFlags(rootCmd)
	params.addRunFlags(runCmd)
	params.addLoadFlags(loadCmd)
	rootCmd.AddCommand(runCmd, loadCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errRunFailed):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 2
	}
}

func runScenarios(cmd *cobra.Command, args []string) error {
	cfg, err := params.buildConfig(cmd)
	if err != nil {
		return usageError{err}
	}
	paths := args
	if len(paths) == 0 {
		paths = cfg.Scenarios
	}
	ctx := cmd.Context()

	if !params.watch {
		return runOnce(ctx, cfg, paths)
	}

	_ = runOnce(ctx, cfg, paths)
	watcher, err := newScenarioWatcher(paths, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Println("Watching for changes; press Ctrl+C to stop")
	return watcher.Run(ctx, func(ctx context.Context) {
		if err := runOnce(ctx, cfg, paths); err != nil && !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	})
}

func runOnce(ctx context.Context, cfg config.Config, paths []string) error {
	scenarios, err := scenariodef.LoadScenarios(paths...)
	if err != nil {
		return usageError{err}
	}
	if len(scenarios) == 0 {
		return usageErrorf("no scenarios found in %v", paths)
	}
	if err := awaitTarget(ctx, cfg); err != nil {
		return err
	}

	harnessLogger := framework.ZapLogger(logger)
	factory, closeTarget, err := openTargets(ctx, cfg, harnessLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTarget(); err != nil {
			logger.Warn("closing target", zap.Error(err))
		}
	}()

	fmt.Println()
	framework.PrintFilterDescription(os.Stdout, params.filters)
	fmt.Printf("Running %d scenarios on %d devices against %s\n", len(scenarios), len(cfg.DeviceList()), cfg.BaseURL)

	opts := cfg.RunnerOptions()
	opts.Filter = params.filters.AsFilter
	opts.Logger = harnessLogger
	opts.TestLogger = &ConsoleTestLogger{
		Out:                  os.Stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
		NoColor:              params.noColor || !report.IsTerminal(os.Stdout),
	}
	result := runner.New(opts).RunAll(ctx, params.name, scenarios, cfg.DeviceList(), factory)

	if err := writeReports(cfg, result); err != nil {
		return err
	}
	if !result.OK() {
		if hint := params.rerunCommand(filepath.Base(os.Args[0]), result); hint != "" {
			fmt.Printf("\nTo run the failed scenarios again:\n  %s\n", hint)
		}
		return errRunFailed
	}
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := params.buildConfig(cmd)
	if err != nil {
		return usageError{err}
	}
	var plans []scenariodef.LoadPlan
	for _, path := range args {
		plan, err := scenariodef.LoadPlanFile(path)
		if err != nil {
			return usageError{err}
		}
		if params.policy != "" {
			plan.Policy = params.policy
		}
		plans = append(plans, plan)
	}
	ctx := cmd.Context()
	if err := awaitTarget(ctx, cfg); err != nil {
		return err
	}

	result := scenariodef.Report{
		Name:      "load",
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	for _, plan := range plans {
		if ctx.Err() != nil {
			break
		}
		opts, err := loadgen.OptionsFromPlan(plan)
		if err != nil {
			return usageError{err}
		}
		opts.Logger = framework.ZapLogger(logger)
		gen, err := loadgen.New(opts)
		if err != nil {
			return usageError{err}
		}
		requests := loadgen.RequestsFromPlan(plan, cfg.BaseURL)
		fmt.Printf("Running load plan %s (%s, peak %d users)\n", plan.Name, plan.Profile().TotalDuration(), plan.Profile().PeakTarget())
		lr, err := gen.Run(ctx, plan.Name, plan.Profile(), loadgen.RoundRobin(requests...))
		if err != nil {
			return err
		}
		result.Load = append(result.Load, lr)
	}
	result.FinishedAt = time.Now()
	result.Recount()
	result = result.Freeze()

	if err := writeReports(cfg, result); err != nil {
		return err
	}
	if !result.OK() {
		return errRunFailed
	}
	return nil
}

func awaitTarget(ctx context.Context, cfg config.Config) error {
	if cfg.WaitFor.URL == "" {
		return nil
	}
	return framework.AwaitTarget(ctx, cfg.WaitFor.URL, cfg.WaitFor.Timeout.D(), os.Stdout)
}

// openTargets returns the factory for the configured target kind and a function that
// releases whatever the factory shares between instances.
func openTargets(ctx context.Context, cfg config.Config, log framework.Logger) (target.Factory, func() error, error) {
	if cfg.Target == config.TargetHTTP {
		return httptarget.NewFactory(&http.Client{}, log), func() error { return nil }, nil
	}
	launcher := browser.NewLauncher(cfg.Browser, log)
	if err := launcher.Start(ctx); err != nil {
		return nil, nil, err
	}
	return launcher.Factory(), launcher.Close, nil
}

// writeReports prints the console report and writes the file reports. It runs for partial
// results too, so an interrupted run still leaves its reports behind.
func writeReports(cfg config.Config, r scenariodef.Report) error {
	formats, err := report.ParseFormats(cfg.Reporters)
	if err != nil {
		return usageError{err}
	}
	sink := report.Sink{NoColor: params.noColor, ShowPassed: params.verbose}
	for _, f := range formats {
		if f == report.FormatConsole {
			fmt.Println()
			if err := sink.Write(os.Stdout, r, f); err != nil {
				return err
			}
		}
	}
	written, err := sink.WriteFiles(cfg.OutputDir, r, formats)
	for _, path := range written {
		fmt.Printf("Wrote %s\n", path)
	}
	return err
}
